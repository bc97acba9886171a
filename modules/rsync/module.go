// Package rsync deploys a build directory by mirroring it over SSH.
package rsync

import (
	"context"
	"errors"

	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/deploy"
	"github.com/vk/sitepipe/internal/handlers"
)

// Module implements the handlers.Module interface for this package.
type Module struct{}

// Input defines the arguments for the rsync action.
type Input struct {
	Root  string `hcl:"root,optional"`
	Clean *bool  `hcl:"clean,optional"`
}

// Validate applies defaults: root "./dist", clean true.
func (in *Input) Validate() error {
	if in.Root == "" {
		in.Root = "./dist"
	}
	if in.Clean == nil {
		clean := true
		in.Clean = &clean
	}
	return nil
}

// OnRunRsync mirrors Root to the webhost. Update-only mode comes from the
// command line, not from the taskfile.
func OnRunRsync(ctx context.Context, env *handlers.Env, input *Input) error {
	if env.Deployer == nil {
		return errors.New("no deployer configured")
	}
	if err := input.Validate(); err != nil {
		return err
	}
	report, err := env.Deployer.Sync(ctx, deploy.SyncRequest{Root: input.Root, Clean: *input.Clean})
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Sync deploy complete.", "uploaded", len(report.Uploaded), "skipped", len(report.Skipped), "deleted", len(report.Deleted))
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(h *handlers.Handlers) {
	h.RegisterHandler("rsync", handlers.Typed(OnRunRsync))
}
