package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/dag"
	"github.com/vk/sitepipe/internal/history"
)

// Run executes the invocation described by the app's configuration: it lists
// the tasks, prints the resolved plan, or runs the requested task.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "task", a.config.Task)

	switch {
	case a.config.List:
		return a.list()
	case a.config.Plan:
		plan, err := dag.Build(ctx, a.registry, a.config.Task)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(a.outW, plan.String())
		return err
	}

	plan, err := dag.Build(ctx, a.registry, a.config.Task)
	if err != nil {
		return fmt.Errorf("failed to resolve task %q: %w", a.config.Task, err)
	}
	a.logger.Debug("Plan resolved.", "nodes", len(plan.Nodes))

	journal, run := a.startHistory(ctx)
	if journal != nil {
		defer journal.Close()
		ctx, _ = ctxlog.With(ctx, "run_id", run.ID)
	}

	runErr := a.executor.Execute(ctx, plan)

	if journal != nil {
		// The run context may already be canceled by a signal; the journal
		// write still has to happen.
		if err := journal.Finish(context.WithoutCancel(ctx), run.ID, runErr); err != nil {
			a.logger.Warn("Could not record run result.", "run_id", run.ID, "error", err)
		}
	}

	if runErr != nil {
		fmt.Fprint(a.outW, renderFailureReport(a.config.Task, runErr))
	}
	a.logger.Debug("App.Run method finished.")
	return runErr
}

// startHistory opens the journal and records the start of a run. Journal
// problems never fail the invocation; they are logged and the run goes on
// unrecorded.
func (a *App) startHistory(ctx context.Context) (*history.Store, *history.Run) {
	if a.config.NoHistory {
		return nil, nil
	}
	store, err := history.Open(ctx, a.config.StateDir)
	if err != nil {
		a.logger.Warn("Run history unavailable.", "state_dir", a.config.StateDir, "error", err)
		return nil, nil
	}
	run, err := store.Start(ctx, a.config.Task, a.config.TaskfilePath)
	if err != nil {
		a.logger.Warn("Could not record run start.", "error", err)
		store.Close()
		return nil, nil
	}
	return store, run
}

func (a *App) list() error {
	names := a.registry.Names()
	width := 0
	for _, n := range names {
		width = max(width, len(n))
	}
	var sb strings.Builder
	for _, n := range names {
		t, err := a.registry.Lookup(n)
		if err != nil {
			return err
		}
		desc := t.Description
		if desc == "" && !t.IsLeaf() {
			desc = fmt.Sprintf("%s: %s", t.Mode, strings.Join(t.Children, ", "))
		}
		fmt.Fprintf(&sb, "%-*s  %s\n", width, n, desc)
	}
	_, err := fmt.Fprint(a.outW, sb.String())
	return err
}
