// Package fsutil provides the file system helpers shared by task actions:
// glob expansion relative to a pattern's static base, mirrored writes and
// directory erasure.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Match is a single file selected by a glob.
type Match struct {
	// Path is the file path usable with the os package.
	Path string
	// Rel is the slash-separated path relative to the glob base, i.e. the part
	// of the path that is preserved when mirroring into a destination.
	Rel string
}

// SplitPattern cleans pattern and splits it into its static base directory
// and the remaining glob, e.g. "./src/sass/**/*.scss" becomes
// ("src/sass", "**/*.scss").
func SplitPattern(pattern string) (base, glob string) {
	p := filepath.ToSlash(pattern)
	base, glob = doublestar.SplitPattern(p)
	base = path.Clean(base)
	return base, glob
}

// Glob expands every pattern and returns the matched regular files, sorted and
// deduplicated. A pattern whose base directory does not exist matches nothing.
func Glob(patterns ...string) ([]Match, error) {
	seen := make(map[string]struct{})
	var out []Match

	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
			return nil, fmt.Errorf("invalid glob pattern %q", pattern)
		}
		base, glob := SplitPattern(pattern)

		info, err := os.Stat(filepath.FromSlash(base))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error accessing %s: %w", base, err)
		}
		if !info.IsDir() {
			continue
		}

		rels, err := doublestar.Glob(os.DirFS(filepath.FromSlash(base)), glob, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pattern, err)
		}
		for _, rel := range rels {
			p := filepath.Join(filepath.FromSlash(base), filepath.FromSlash(rel))
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, Match{Path: p, Rel: rel})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// MatchAny reports whether name matches at least one of the patterns. Both
// sides are compared in cleaned, slash-separated form.
func MatchAny(patterns []string, name string) bool {
	target := path.Clean(filepath.ToSlash(name))
	for _, pattern := range patterns {
		p := strings.TrimPrefix(filepath.ToSlash(pattern), "./")
		if ok, err := doublestar.Match(p, target); err == nil && ok {
			return true
		}
	}
	return false
}
