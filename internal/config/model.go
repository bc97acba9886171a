package config

import "github.com/hashicorp/hcl/v2"

// Model is the unified representation of a loaded taskfile.
type Model struct {
	Tasks []*Task
	// Files lists the files the model was loaded from, in load order.
	Files []string
}

// Task is the format-agnostic representation of a `task` block. Exactly one
// of Action, Series or Parallel is set once the loader has validated it.
type Task struct {
	Name        string
	Description string
	Action      *Action
	Series      []string
	Parallel    []string
	// File is the taskfile the task was declared in.
	File string
}

// Action is an `action "<kind>"` block with its arguments left undecoded.
type Action struct {
	Kind string
	Body hcl.Body
}

// ActionKinds returns the distinct action kinds used by the model.
func (m *Model) ActionKinds() map[string]struct{} {
	kinds := make(map[string]struct{})
	for _, t := range m.Tasks {
		if t.Action != nil {
			kinds[t.Action.Kind] = struct{}{}
		}
	}
	return kinds
}
