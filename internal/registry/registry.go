package registry

import (
	"context"
	"fmt"
	"sync"
)

// Action is the unit of work bound to a leaf task.
type Action func(ctx context.Context) error

// Mode selects how a composite task runs its children.
type Mode int

const (
	// Sequence runs children one after another and stops at the first failure.
	Sequence Mode = iota
	// Parallel starts every child at once and waits for all of them.
	Parallel
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case Sequence:
		return "series"
	case Parallel:
		return "parallel"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Definition describes a task before registration. Exactly one of Action or
// Children must be set.
type Definition struct {
	Description string
	Action      Action
	Mode        Mode
	Children    []string
}

// Task is a registered, immutable task record.
type Task struct {
	Name        string
	Description string
	Action      Action
	Mode        Mode
	Children    []string
}

// IsLeaf reports whether the task runs an action rather than other tasks.
func (t *Task) IsLeaf() bool {
	return t.Action != nil
}

// Registry stores tasks by name, remembering insertion order for listings.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	order []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Register adds a task. It fails with *DuplicateTaskError if the name is
// already taken, leaving the first registration in place.
func (r *Registry) Register(name string, def Definition) error {
	if name == "" {
		return fmt.Errorf("task name must not be empty")
	}
	if def.Action != nil && len(def.Children) > 0 {
		return fmt.Errorf("task %q: an action task cannot also have children", name)
	}
	if def.Action == nil && len(def.Children) == 0 {
		return fmt.Errorf("task %q: needs either an action or at least one child", name)
	}
	if def.Mode != Sequence && def.Mode != Parallel {
		return fmt.Errorf("task %q: unsupported mode %s", name, def.Mode)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[name]; exists {
		return &DuplicateTaskError{Name: name}
	}

	children := make([]string, len(def.Children))
	copy(children, def.Children)
	r.tasks[name] = &Task{
		Name:        name,
		Description: def.Description,
		Action:      def.Action,
		Mode:        def.Mode,
		Children:    children,
	}
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the task with the given name or *UnknownTaskError.
func (r *Registry) Lookup(name string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[name]
	if !ok {
		return nil, &UnknownTaskError{Name: name}
	}
	return t, nil
}

// Names returns all task names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
