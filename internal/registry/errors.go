package registry

import "fmt"

// DuplicateTaskError is returned when a task name is registered twice.
type DuplicateTaskError struct {
	Name string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %q is already registered", e.Name)
}

// UnknownTaskError is returned when a task name does not resolve. Referrer is
// the composite that named it, empty for a root lookup.
type UnknownTaskError struct {
	Name     string
	Referrer string
}

func (e *UnknownTaskError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("task %q references unknown task %q", e.Referrer, e.Name)
	}
	return fmt.Sprintf("unknown task %q", e.Name)
}
