package dag

import (
	"errors"
	"fmt"
	"strings"
)

// CyclicDependencyError reports a task that transitively depends on itself.
// Path starts and ends with the same task name.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Path, " -> ")
}

// ActionFailure is the failure of a single leaf task.
type ActionFailure struct {
	Task string
	Err  error
}

func (e *ActionFailure) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Task, e.Err)
}

func (e *ActionFailure) Unwrap() error { return e.Err }

// CompositeFailure aggregates every failed child of a parallel group, in the
// order the children were declared.
type CompositeFailure struct {
	Task   string
	Errors []error
}

func (e *CompositeFailure) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("task %q: %d of its parallel tasks failed: %s", e.Task, len(e.Errors), strings.Join(msgs, "; "))
}

func (e *CompositeFailure) Unwrap() []error { return e.Errors }

// LeafFailures flattens err into the leaf failures it contains, depth first.
func LeafFailures(err error) []*ActionFailure {
	var out []*ActionFailure
	var collect func(error)
	collect = func(err error) {
		if err == nil {
			return
		}
		var composite *CompositeFailure
		if errors.As(err, &composite) {
			for _, child := range composite.Errors {
				collect(child)
			}
			return
		}
		var leaf *ActionFailure
		if errors.As(err, &leaf) {
			out = append(out, leaf)
		}
	}
	collect(err)
	return out
}
