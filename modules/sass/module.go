// Package sass compiles SCSS sources into vendor-prefixed CSS.
package sass

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/fsutil"
	"github.com/vk/sitepipe/internal/handlers"
)

// Module implements the handlers.Module interface for this package.
type Module struct {
	// Compiler defaults to Dart Sass.
	Compiler Compiler
}

// Input defines the arguments for the sass action.
type Input struct {
	Src          []string `hcl:"src"`
	Dest         string   `hcl:"dest"`
	Browsers     []string `hcl:"browsers,optional"`
	IncludePaths []string `hcl:"include_paths,optional"`
	Style        string   `hcl:"style,optional"`
	Inject       bool     `hcl:"inject,optional"`
	// AllowErrors logs per-file failures instead of failing the action.
	AllowErrors bool `hcl:"allow_errors,optional"`
}

// Validate checks the arguments.
func (in *Input) Validate() error {
	if len(in.Src) == 0 {
		return errors.New("src must list at least one pattern")
	}
	if in.Dest == "" {
		return errors.New("dest must not be empty")
	}
	switch Style(in.Style) {
	case "", StyleExpanded, StyleCompressed:
	default:
		return fmt.Errorf("style must be %q or %q, got %q", StyleExpanded, StyleCompressed, in.Style)
	}
	return nil
}

// FileError is a compile failure of one stylesheet.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e *FileError) Unwrap() error { return e.Err }

// run compiles every non-partial match. A failing file does not stop the
// others; all failures are returned together once the rest are written,
// unless AllowErrors is set.
func (m *Module) run(ctx context.Context, env *handlers.Env, input *Input) error {
	logger := ctxlog.FromContext(ctx)
	window := Window(input.Browsers)

	matches, err := fsutil.Glob(input.Src...)
	if err != nil {
		return err
	}

	var (
		errs    []error
		written []string
	)
	for _, match := range matches {
		if strings.HasPrefix(path.Base(match.Rel), "_") {
			continue
		}
		src, err := os.ReadFile(match.Path)
		if err != nil {
			errs = append(errs, &FileError{Path: match.Path, Err: err})
			continue
		}
		out, err := m.Compiler.Compile(ctx, Request{
			Path:         match.Path,
			Source:       string(src),
			IncludePaths: input.IncludePaths,
			Style:        Style(input.Style),
		})
		if err != nil {
			logger.Error("Sass compile error.", "file", match.Path, "error", err)
			errs = append(errs, &FileError{Path: match.Path, Err: err})
			continue
		}
		prefixed, err := Prefix([]byte(out), window)
		if err != nil {
			errs = append(errs, &FileError{Path: match.Path, Err: fmt.Errorf("prefixing: %w", err)})
			continue
		}
		rel := strings.TrimSuffix(match.Rel, path.Ext(match.Rel)) + ".css"
		if _, err := fsutil.WriteFile(input.Dest, rel, prefixed); err != nil {
			errs = append(errs, &FileError{Path: match.Path, Err: err})
			continue
		}
		written = append(written, rel)
	}

	logger.Info("Compiled stylesheets.", "count", len(written), "failed", len(errs), "dest", input.Dest)
	if input.Inject && len(written) > 0 && env != nil && env.LiveReload != nil {
		env.LiveReload.InjectCSS(written...)
	}
	if input.AllowErrors && len(errs) > 0 {
		logger.Warn("Stylesheets failed, continuing.", "failed", len(errs), "error", errors.Join(errs...))
		return nil
	}
	return errors.Join(errs...)
}

// Close releases the compiler when it holds a process.
func (m *Module) Close() error {
	if c, ok := m.Compiler.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(h *handlers.Handlers) {
	if m.Compiler == nil {
		m.Compiler = &DartSass{}
	}
	h.RegisterHandler("sass", handlers.Typed(m.run))
}
