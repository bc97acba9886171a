package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vk/sitepipe/internal/config"
	"github.com/vk/sitepipe/internal/credentials"
	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/dag"
	"github.com/vk/sitepipe/internal/deploy"
	"github.com/vk/sitepipe/internal/deploy/ftpqueue"
	"github.com/vk/sitepipe/internal/deploy/syncssh"
	"github.com/vk/sitepipe/internal/devserver"
	"github.com/vk/sitepipe/internal/handlers"
	"github.com/vk/sitepipe/internal/registry"
	"github.com/vk/sitepipe/internal/watcher"
	"github.com/vk/sitepipe/internal/webhost"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	executor *dag.Executor
	env      *handlers.Env
	closers  []io.Closer
}

type options struct {
	modules     []handlers.Module
	credentials credentials.Provider
	sync        deploy.Transferer
	ftp         deploy.Transferer
	watch       handlers.WatchFunc
	httpClient  *http.Client
}

// Option customises NewApp, mostly for tests.
type Option func(*options)

// WithModules replaces the built-in action modules.
func WithModules(mods ...handlers.Module) Option {
	return func(o *options) { o.modules = mods }
}

// WithCredentials replaces the FTP password provider.
func WithCredentials(p credentials.Provider) Option {
	return func(o *options) { o.credentials = p }
}

// WithTransferers replaces the SSH and FTP transfer implementations.
func WithTransferers(sync, ftp deploy.Transferer) Option {
	return func(o *options) {
		o.sync = sync
		o.ftp = ftp
	}
}

// WithWatch replaces the file watcher.
func WithWatch(fn handlers.WatchFunc) Option {
	return func(o *options) { o.watch = fn }
}

// WithHTTPClient replaces the client used by http_request actions.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func defaultWatch(ctx context.Context, patterns []string, onChange func(string)) (handlers.Subscription, error) {
	sub, err := watcher.Watch(ctx, patterns, onChange)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// NewApp loads the taskfile and builds the task registry. Every problem found
// here (taskfile syntax, unknown action kinds, bad arguments, duplicate or
// dangling task names, a missing webhost config) is returned as an error and
// nothing runs.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, opts ...Option) (*App, error) {
	o := &options{
		credentials: credentials.Default(),
		sync:        syncssh.New(),
		ftp:         ftpqueue.New(),
		watch:       defaultWatch,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.modules) == 0 {
		o.modules = coreModules()
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, converter, err := loader.Load(ctx, cfg.TaskfilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load taskfile: %w", err)
	}
	logger.Debug("Taskfile loaded.", "tasks", len(model.Tasks), "files", model.Files)

	hs := handlers.New()
	var closers []io.Closer
	for _, mod := range o.modules {
		mod.Register(hs)
		if c, ok := mod.(io.Closer); ok {
			closers = append(closers, c)
		}
	}
	logger.Debug("Action modules registered.", "kinds", hs.Kinds())

	var host *webhost.Config
	if usesAny(model, deployKinds) {
		host, err = webhost.Load(cfg.WebhostPath)
		if err != nil {
			return nil, err
		}
		logger.Debug("Webhost config loaded.", "address", host.Address)
	}

	a := &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		closers: closers,
	}
	a.env = &handlers.Env{
		Watch:      o.watch,
		LiveReload: devserver.NewBroadcast(),
		Deployer:   deploy.NewAdapter(host, deploy.Flags{All: cfg.All}, o.credentials, o.sync, o.ftp),
		HTTPClient: o.httpClient,
		Out:        outW,
	}

	reg, err := buildRegistry(ctx, model, hs, converter, a.env)
	if err != nil {
		return nil, err
	}
	a.registry = reg
	a.executor = dag.New(reg, dag.WithMaxWorkers(cfg.Workers))
	a.env.Runner = a.executor
	logger.Debug("Registry populated.", "tasks", reg.Len())

	return a, nil
}

// buildRegistry turns every task in model into a registry entry. Action
// arguments are decoded and validated here so that errors surface before
// anything runs.
func buildRegistry(ctx context.Context, model *config.Model, hs *handlers.Handlers, conv config.Converter, env *handlers.Env) (*registry.Registry, error) {
	reg := registry.New()
	refs := make(map[string][]string)

	for _, t := range model.Tasks {
		def := registry.Definition{Description: t.Description}
		switch {
		case t.Action != nil:
			action, taskRefs, err := bindAction(ctx, t, hs, conv, env)
			if err != nil {
				return nil, err
			}
			def.Action = action
			refs[t.Name] = taskRefs
		case len(t.Series) > 0:
			def.Mode = registry.Sequence
			def.Children = t.Series
		case len(t.Parallel) > 0:
			def.Mode = registry.Parallel
			def.Children = t.Parallel
		}
		if err := reg.Register(t.Name, def); err != nil {
			return nil, fmt.Errorf("%s: %w", t.File, err)
		}
	}

	for _, name := range reg.Names() {
		for _, ref := range refs[name] {
			if _, err := reg.Lookup(ref); err != nil {
				return nil, &registry.UnknownTaskError{Name: ref, Referrer: name}
			}
		}
	}
	return reg, nil
}

func bindAction(ctx context.Context, t *config.Task, hs *handlers.Handlers, conv config.Converter, env *handlers.Env) (registry.Action, []string, error) {
	h, ok := hs.Lookup(t.Action.Kind)
	if !ok {
		return nil, nil, fmt.Errorf("%s: task %q: unknown action kind %q (known: %v)", t.File, t.Name, t.Action.Kind, hs.Kinds())
	}
	input := h.NewInput()
	if err := conv.DecodeBody(ctx, t.Action.Body, input); err != nil {
		return nil, nil, fmt.Errorf("%s: task %q: %w", t.File, t.Name, err)
	}
	if v, ok := input.(handlers.Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%s: task %q: invalid %s arguments: %w", t.File, t.Name, t.Action.Kind, err)
		}
	}
	var refs []string
	if r, ok := input.(handlers.TaskRefs); ok {
		refs = r.ReferencedTasks()
	}
	return func(ctx context.Context) error {
		return h.Fn(ctx, env, input)
	}, refs, nil
}

func usesAny(model *config.Model, kinds []string) bool {
	used := model.ActionKinds()
	for _, k := range kinds {
		if _, ok := used[k]; ok {
			return true
		}
	}
	return false
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Close releases resources held by modules.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
