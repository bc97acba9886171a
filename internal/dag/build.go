package dag

import (
	"context"
	"errors"

	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/registry"
)

type color int

const (
	white color = iota
	visiting
	visited
)

// builder holds the traversal state for a single Build call.
type builder struct {
	reg   *registry.Registry
	nodes []Node
	index map[string]int
	color map[string]color
	stack []string
}

// Build resolves root and everything it references into a Plan. It fails
// with *registry.UnknownTaskError or *CyclicDependencyError and never runs
// any action.
func Build(ctx context.Context, reg *registry.Registry, root string) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: resolving task.", "root", root)

	b := &builder{
		reg:   reg,
		index: make(map[string]int),
		color: make(map[string]color),
	}
	rootIdx, err := b.visit(root, "")
	if err != nil {
		var cycle *CyclicDependencyError
		if errors.As(err, &cycle) {
			logger.Debug("Build: cycle detected.", "path", cycle.Path)
		}
		return nil, err
	}

	logger.Debug("Build: plan resolved.", "root", root, "node_count", len(b.nodes))
	return &Plan{Root: rootIdx, Nodes: b.nodes}, nil
}

func (b *builder) visit(name, referrer string) (int, error) {
	switch b.color[name] {
	case visited:
		return b.index[name], nil
	case visiting:
		return 0, b.cycleTo(name)
	}

	task, err := b.reg.Lookup(name)
	if err != nil {
		var unknown *registry.UnknownTaskError
		if errors.As(err, &unknown) {
			return 0, &registry.UnknownTaskError{Name: name, Referrer: referrer}
		}
		return 0, err
	}

	b.color[name] = visiting
	b.stack = append(b.stack, name)

	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Task: task})
	b.index[name] = idx

	children := make([]int, 0, len(task.Children))
	for _, child := range task.Children {
		ci, err := b.visit(child, name)
		if err != nil {
			return 0, err
		}
		children = append(children, ci)
	}
	// b.nodes may have been reallocated while visiting children.
	b.nodes[idx].Children = children

	b.stack = b.stack[:len(b.stack)-1]
	b.color[name] = visited
	return idx, nil
}

// cycleTo builds the error for a back edge to name, which is on the stack.
func (b *builder) cycleTo(name string) error {
	start := 0
	for i, n := range b.stack {
		if n == name {
			start = i
			break
		}
	}
	path := make([]string, 0, len(b.stack)-start+1)
	path = append(path, b.stack[start:]...)
	path = append(path, name)
	return &CyclicDependencyError{Path: path}
}
