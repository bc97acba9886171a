package hcl

import (
	"context"
	"fmt"

	"github.com/vk/sitepipe/internal/config"
	"github.com/vk/sitepipe/internal/ctxlog"
)

// translateTask converts a decoded task block into the agnostic model and
// enforces that it is exactly one of: action, series, parallel.
func (l *Loader) translateTask(ctx context.Context, file string, b *taskBlock) (*config.Task, error) {
	logger := ctxlog.FromContext(ctx).With("task", b.Name)
	logger.Debug("Translating HCL task to config model.")

	kinds := 0
	if len(b.Actions) > 0 {
		kinds++
	}
	if b.Series != nil {
		kinds++
	}
	if b.Parallel != nil {
		kinds++
	}

	switch {
	case len(b.Actions) > 1:
		return nil, fmt.Errorf("%s: task %q declares %d action blocks, only one is allowed", file, b.Name, len(b.Actions))
	case kinds == 0:
		return nil, fmt.Errorf("%s: task %q needs an action block, series or parallel", file, b.Name)
	case kinds > 1:
		return nil, fmt.Errorf("%s: task %q must use only one of action, series or parallel", file, b.Name)
	case b.Series != nil && len(b.Series) == 0, b.Parallel != nil && len(b.Parallel) == 0:
		return nil, fmt.Errorf("%s: task %q has an empty task list", file, b.Name)
	}

	t := &config.Task{
		Name:     b.Name,
		Series:   b.Series,
		Parallel: b.Parallel,
		File:     file,
	}
	if b.Description != nil {
		t.Description = *b.Description
	}
	if len(b.Actions) == 1 {
		t.Action = &config.Action{Kind: b.Actions[0].Kind, Body: b.Actions[0].Body}
	}
	return t, nil
}
