package sass

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bep/godartsass/v2"
	"github.com/vk/sitepipe/internal/ctxlog"
)

// Style is the CSS output style.
type Style string

const (
	StyleExpanded   Style = "expanded"
	StyleCompressed Style = "compressed"
)

// Request is one stylesheet to compile.
type Request struct {
	Path         string
	Source       string
	IncludePaths []string
	Style        Style
}

// Compiler turns SCSS into CSS.
type Compiler interface {
	Compile(ctx context.Context, req Request) (string, error)
}

// DartSass compiles through the Dart Sass embedded protocol. The sass binary
// is located on PATH unless Binary is set, and started on first use.
type DartSass struct {
	Binary string

	once       sync.Once
	transpiler *godartsass.Transpiler
	startErr   error
}

// Compile implements Compiler.
func (d *DartSass) Compile(ctx context.Context, req Request) (string, error) {
	d.once.Do(func() {
		logger := ctxlog.FromContext(ctx)
		d.transpiler, d.startErr = godartsass.Start(godartsass.Options{
			DartSassEmbeddedFilename: d.Binary,
			LogEventHandler: func(e godartsass.LogEvent) {
				logger.Warn("Sass warning.", "message", e.Message)
			},
		})
	})
	if d.startErr != nil {
		return "", fmt.Errorf("starting dart sass: %w", d.startErr)
	}

	abs, err := filepath.Abs(req.Path)
	if err != nil {
		return "", err
	}
	style := godartsass.OutputStyleExpanded
	if req.Style == StyleCompressed {
		style = godartsass.OutputStyleCompressed
	}

	res, err := d.transpiler.Execute(godartsass.Args{
		Source:       req.Source,
		URL:          "file://" + filepath.ToSlash(abs),
		SourceSyntax: godartsass.SourceSyntaxSCSS,
		OutputStyle:  style,
		IncludePaths: append([]string{filepath.Dir(abs)}, req.IncludePaths...),
	})
	if err != nil {
		return "", err
	}
	return res.CSS, nil
}

// Close stops the embedded compiler process, if it was started.
func (d *DartSass) Close() error {
	if d.transpiler == nil {
		return nil
	}
	return d.transpiler.Close()
}
