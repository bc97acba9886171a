// Package serve runs the development server and its watch rules.
package serve

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/devserver"
	"github.com/vk/sitepipe/internal/handlers"
)

// DefaultPort is used when the action sets none.
const DefaultPort = 3000

// Module implements the handlers.Module interface for this package.
type Module struct{}

// Watch is one `watch {}` block: when a file matching Paths changes, Run is
// executed and, if Reload is set, browsers reload afterwards. A block with
// only Reload reloads straight away.
type Watch struct {
	Paths  []string `hcl:"paths"`
	Run    string   `hcl:"run,optional"`
	Reload bool     `hcl:"reload,optional"`
}

// Input defines the arguments for the serve action.
type Input struct {
	Root string `hcl:"root"`
	Port int    `hcl:"port,optional"`
	Host string `hcl:"host,optional"`
	// OpenBrowser is accepted for compatibility and ignored.
	OpenBrowser bool    `hcl:"open_browser,optional"`
	Watches     []Watch `hcl:"watch,block"`
}

// Validate checks the arguments and applies defaults.
func (in *Input) Validate() error {
	if in.Root == "" {
		return errors.New("root must not be empty")
	}
	if in.Port == 0 {
		in.Port = DefaultPort
	}
	if in.Port < 0 || in.Port > 65535 {
		return fmt.Errorf("port %d is out of range", in.Port)
	}
	for i, w := range in.Watches {
		if len(w.Paths) == 0 {
			return fmt.Errorf("watch block %d: paths must not be empty", i+1)
		}
		if w.Run == "" && !w.Reload {
			return fmt.Errorf("watch block %d: set run, reload or both", i+1)
		}
	}
	return nil
}

// ReferencedTasks implements handlers.TaskRefs.
func (in *Input) ReferencedTasks() []string {
	var names []string
	for _, w := range in.Watches {
		if w.Run != "" {
			names = append(names, w.Run)
		}
	}
	return names
}

// OnRunServe serves Root until ctx is cancelled or the server fails; watch
// subscriptions end with it. Task runs triggered by watches happen in their
// own goroutines; a failing run is logged and the server keeps going.
// Overlapping runs of the same task are not merged.
func OnRunServe(ctx context.Context, env *handlers.Env, input *Input) error {
	// Watches live only as long as the server does.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := ctxlog.FromContext(ctx)
	srv := devserver.New(input.Root, fmt.Sprintf("%s:%d", input.Host, input.Port), logger)
	hub := srv.Hub()

	if env.LiveReload != nil {
		detach := env.LiveReload.Attach(hub)
		defer detach()
	}

	for _, w := range input.Watches {
		if env.Watch == nil {
			return errors.New("serve: file watching is not available")
		}
		sub, err := env.Watch(ctx, w.Paths, onChange(ctx, env, hub, w))
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		go func() {
			<-sub.Done()
			if err := sub.Err(); err != nil {
				logger.Error("Watch stopped; changes to these files are no longer picked up.", "paths", w.Paths, "error", err)
			}
		}()
	}

	return srv.Start(ctx)
}

func onChange(ctx context.Context, env *handlers.Env, hub *devserver.Hub, w Watch) func(string) {
	logger := ctxlog.FromContext(ctx)
	return func(path string) {
		if w.Run == "" {
			hub.Reload()
			return
		}
		go func() {
			logger.Info("Change detected, running task.", "path", path, "task", w.Run)
			if err := env.Runner.RunTask(ctx, w.Run); err != nil {
				logger.Error("Watch-triggered run failed.", "task", w.Run, "error", err)
				return
			}
			if w.Reload {
				hub.Reload()
			}
		}()
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(h *handlers.Handlers) {
	h.RegisterHandler("serve", handlers.Typed(OnRunServe))
}
