package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/sitepipe/internal/config"
	"github.com/vk/sitepipe/internal/ctxlog"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct {
	environ []string
}

// NewLoader creates a loader whose expressions see the given environment.
// A nil environ means os.Environ().
func NewLoader(environ []string) *Loader {
	if environ == nil {
		environ = os.Environ()
	}
	return &Loader{environ: environ}
}

// Load parses every .hcl file found under paths and merges their tasks into a
// single model. A missing path is an error: a taskfile is always required.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := findAllHCLFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no taskfile found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	evalCtx := NewEvalContext(l.environ)
	parser := hclparse.NewParser()
	model := &config.Model{}

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, evalCtx, &root); diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, block := range root.Tasks {
			task, err := l.translateTask(ctx, file, block)
			if err != nil {
				return nil, nil, err
			}
			model.Tasks = append(model.Tasks, task)
		}
		model.Files = append(model.Files, file)
	}

	logger.Debug("HCL loading complete.", "tasks", len(model.Tasks))
	return model, NewConverter(evalCtx), nil
}

// findAllHCLFiles expands paths into a flat, deduplicated list of .hcl files.
func findAllHCLFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			all = append(all, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing taskfile %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return all, nil
}
