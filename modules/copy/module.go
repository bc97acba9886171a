// Package copy mirrors globbed files into a destination directory.
package copy

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

// Input defines the arguments for the copy action.
type Input struct {
	Src  []string `hcl:"src"`
	Dest string   `hcl:"dest"`
	// Base, when set, replaces each pattern's static base as the root that
	// relative destination paths are computed from.
	Base string `hcl:"base,optional"`
}

// Validate checks the arguments.
func (in *Input) Validate() error {
	if len(in.Src) == 0 {
		return errors.New("src must list at least one pattern")
	}
	if in.Dest == "" {
		return errors.New("dest must not be empty")
	}
	return nil
}

// OnRunCopy copies every match, preserving paths relative to the glob base.
func OnRunCopy(ctx context.Context, _ *handlers.Env, input *Input) error {
	logger := ctxlog.FromContext(ctx)

	matches, err := fsutil.Glob(input.Src...)
	if err != nil {
		return err
	}

	var errs []error
	for _, m := range matches {
		rel := m.Rel
		if input.Base != "" {
			r, err := filepath.Rel(input.Base, m.Path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			rel = filepath.ToSlash(r)
		}
		if _, err := fsutil.CopyFile(m.Path, input.Dest, rel); err != nil {
			errs = append(errs, fmt.Errorf("copying %s: %w", m.Path, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info("Copied files.", "count", len(matches), "dest", input.Dest)
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(h *handlers.Handlers) {
	h.RegisterHandler("copy", handlers.Typed(OnRunCopy))
}
