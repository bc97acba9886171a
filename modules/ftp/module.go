// Package ftp deploys a build directory over FTP.
package ftp

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/deploy"
	"github.com/vk/sitepipe/internal/handlers"
)

// Module implements the handlers.Module interface for this package.
type Module struct{}

// Input defines the arguments for the ftp action.
type Input struct {
	Root     string `hcl:"root,optional"`
	Parallel int    `hcl:"parallel,optional"`
}

// Validate applies defaults and checks the connection count.
func (in *Input) Validate() error {
	if in.Root == "" {
		in.Root = "./dist"
	}
	if in.Parallel < 0 {
		return fmt.Errorf("parallel must be positive, got %d", in.Parallel)
	}
	return nil
}

// OnRunFTP asks for the password, then uploads Root.
func OnRunFTP(ctx context.Context, env *handlers.Env, input *Input) error {
	if env.Deployer == nil {
		return errors.New("no deployer configured")
	}
	if err := input.Validate(); err != nil {
		return err
	}
	report, err := env.Deployer.FTP(ctx, deploy.FTPRequest{Root: input.Root, Parallel: input.Parallel})
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("FTP deploy complete.", "uploaded", len(report.Uploaded), "skipped", len(report.Skipped))
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(h *handlers.Handlers) {
	h.RegisterHandler("ftp", handlers.Typed(OnRunFTP))
}
