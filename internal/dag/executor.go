package dag

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/registry"
)

// Executor runs plans resolved from a registry.
type Executor struct {
	reg        *registry.Registry
	maxWorkers int
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxWorkers bounds how many children of one parallel group run at the
// same time. Zero or less means unbounded.
func WithMaxWorkers(n int) Option {
	return func(e *Executor) {
		e.maxWorkers = n
	}
}

// New creates an Executor bound to reg.
func New(reg *registry.Registry, opts ...Option) *Executor {
	e := &Executor{reg: reg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunTask resolves name into a fresh plan and executes it. Overlapping calls
// for the same task run independently.
func (e *Executor) RunTask(ctx context.Context, name string) error {
	plan, err := Build(ctx, e.reg, name)
	if err != nil {
		return err
	}
	return e.Execute(ctx, plan)
}

// Execute runs plan from its root. The result is the root node's result.
func (e *Executor) Execute(ctx context.Context, plan *Plan) error {
	logger := ctxlog.FromContext(ctx)
	root := plan.RootNode()
	logger.Info("▶ Starting task.", "task", root.Name(), "plan_nodes", len(plan.Nodes))

	start := time.Now()
	err := e.run(ctx, plan, plan.Root)
	if err != nil {
		logger.Error("✖ Task failed.", "task", root.Name(), "duration", time.Since(start), "error", err)
		return err
	}
	logger.Info("✔ Task finished.", "task", root.Name(), "duration", time.Since(start))
	return nil
}

func (e *Executor) run(ctx context.Context, plan *Plan, idx int) error {
	n := plan.Node(idx)
	if n.Task.IsLeaf() {
		return e.runLeaf(ctx, n)
	}
	switch n.Task.Mode {
	case registry.Sequence:
		return e.runSequence(ctx, plan, n)
	case registry.Parallel:
		return e.runParallel(ctx, plan, n)
	default:
		return fmt.Errorf("task %q: unsupported mode %s", n.Name(), n.Task.Mode)
	}
}

func (e *Executor) runLeaf(ctx context.Context, n *Node) (err error) {
	ctx, logger := ctxlog.With(ctx, "task", n.Name())

	// Cancellation only prevents actions from starting; nothing in flight is
	// interrupted by the executor itself.
	if cerr := ctx.Err(); cerr != nil {
		logger.Warn("Context canceled, not starting task.")
		return &ActionFailure{Task: n.Name(), Err: cerr}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &ActionFailure{Task: n.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	logger.Debug("Running action.")
	start := time.Now()
	if aerr := n.Task.Action(ctx); aerr != nil {
		logger.Debug("Action failed.", "duration", time.Since(start), "error", aerr)
		return &ActionFailure{Task: n.Name(), Err: aerr}
	}
	logger.Info("Finished.", "duration", time.Since(start))
	return nil
}

func (e *Executor) runSequence(ctx context.Context, plan *Plan, n *Node) error {
	logger := ctxlog.FromContext(ctx).With("task", n.Name())
	for i, c := range n.Children {
		if err := e.run(ctx, plan, c); err != nil {
			if rest := len(n.Children) - i - 1; rest > 0 {
				logger.Warn("Series stopped after failure.", "failed", plan.Node(c).Name(), "skipped", rest)
			}
			return err
		}
	}
	return nil
}

func (e *Executor) runParallel(ctx context.Context, plan *Plan, n *Node) error {
	errs := make([]error, len(n.Children))

	p := pool.New()
	if e.maxWorkers > 0 {
		p = p.WithMaxGoroutines(e.maxWorkers)
	}
	for i, c := range n.Children {
		p.Go(func() {
			errs[i] = e.run(ctx, plan, c)
		})
	}
	p.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return &CompositeFailure{Task: n.Name(), Errors: failed}
	}
	return nil
}
