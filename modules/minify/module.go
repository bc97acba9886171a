// Package minify provides the minify_js and minify_css actions.
package minify

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/fsutil"
	"github.com/vk/sitepipe/internal/handlers"
)

const (
	mediaJS  = "application/javascript"
	mediaCSS = "text/css"
)

// Module implements the handlers.Module interface for this package.
type Module struct{}

// Input defines the arguments shared by both minify actions.
type Input struct {
	Src  []string `hcl:"src"`
	Dest string   `hcl:"dest"`
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

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(mediaCSS, css.Minify)
	m.AddFunc(mediaJS, js.Minify)
	return m
}

func run(mediaType string) func(ctx context.Context, env *handlers.Env, input *Input) error {
	return func(ctx context.Context, _ *handlers.Env, input *Input) error {
		logger := ctxlog.FromContext(ctx).With("media_type", mediaType)
		m := newMinifier()

		matches, err := fsutil.Glob(input.Src...)
		if err != nil {
			return err
		}
		var saved int
		for _, match := range matches {
			data, err := os.ReadFile(match.Path)
			if err != nil {
				return err
			}
			out, err := m.Bytes(mediaType, data)
			if err != nil {
				return fmt.Errorf("minifying %s: %w", match.Path, err)
			}
			if _, err := fsutil.WriteFile(input.Dest, match.Rel, out); err != nil {
				return err
			}
			saved += len(data) - len(out)
		}
		logger.Info("Minified files.", "count", len(matches), "dest", input.Dest, "bytes_saved", saved)
		return nil
	}
}

// Register registers both handlers with the engine.
func (m *Module) Register(h *handlers.Handlers) {
	h.RegisterHandler("minify_js", handlers.Typed(run(mediaJS)))
	h.RegisterHandler("minify_css", handlers.Typed(run(mediaCSS)))
}
