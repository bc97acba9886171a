package dag

import (
	"fmt"
	"strings"

	"github.com/vk/sitepipe/internal/registry"
)

// Node is one resolved task inside a Plan.
type Node struct {
	Task *registry.Task
	// Children holds indexes into Plan.Nodes, in declaration order.
	Children []int
}

// Name returns the task name of the node.
func (n *Node) Name() string {
	return n.Task.Name
}

// Plan is the resolved, acyclic composition of a root task. Every distinct
// task reachable from the root appears exactly once in Nodes.
type Plan struct {
	Root  int
	Nodes []Node
}

// RootNode returns the node of the requested task.
func (p *Plan) RootNode() *Node {
	return &p.Nodes[p.Root]
}

// Node returns the node stored at index i.
func (p *Plan) Node(i int) *Node {
	return &p.Nodes[i]
}

// Walk visits the plan as a tree, depth first, calling fn with the nesting
// depth of each node. Shared nodes are visited once per reference.
func (p *Plan) Walk(fn func(depth int, n *Node)) {
	var visit func(idx, depth int)
	visit = func(idx, depth int) {
		n := &p.Nodes[idx]
		fn(depth, n)
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	visit(p.Root, 0)
}

// String renders the plan as an indented tree, for --plan output and logs.
func (p *Plan) String() string {
	var sb strings.Builder
	p.Walk(func(depth int, n *Node) {
		sb.WriteString(strings.Repeat("  ", depth))
		if n.Task.IsLeaf() {
			sb.WriteString(n.Name())
		} else {
			fmt.Fprintf(&sb, "%s (%s)", n.Name(), n.Task.Mode)
		}
		sb.WriteByte('\n')
	})
	return sb.String()
}
