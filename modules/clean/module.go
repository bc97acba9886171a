// Package clean empties an output directory.
package clean

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/fsutil"
	"github.com/vk/sitepipe/internal/handlers"
)

// Module implements the handlers.Module interface for this package.
type Module struct{}

// Input defines the arguments for the clean action.
type Input struct {
	Path string `hcl:"path"`
}

// Validate refuses paths that would wipe the project or the file system.
func (in *Input) Validate() error {
	if in.Path == "" {
		return errors.New("path must not be empty")
	}
	switch c := filepath.Clean(in.Path); c {
	case ".", "..", string(filepath.Separator):
		return fmt.Errorf("refusing to clean %q", in.Path)
	}
	return nil
}

// OnRunClean removes everything under the path. A missing or empty
// directory is not an error.
func OnRunClean(ctx context.Context, _ *handlers.Env, input *Input) error {
	logger := ctxlog.FromContext(ctx)

	n, err := fsutil.EmptyDir(input.Path)
	if err != nil {
		return fmt.Errorf("cleaning %s: %w", input.Path, err)
	}
	logger.Info("Cleaned directory.", "path", input.Path, "removed", n)
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(h *handlers.Handlers) {
	h.RegisterHandler("clean", handlers.Typed(OnRunClean))
}
