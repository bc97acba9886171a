package fsutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files (slash paths relative to root) with fixed content.
func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0o644))
	}
}

func rels(ms []Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Rel
	}
	return out
}

func TestSplitPattern(t *testing.T) {
	testCases := []struct {
		pattern  string
		wantBase string
		wantGlob string
	}{
		{"./src/sass/**/*.scss", "src/sass", "**/*.scss"},
		{"./src/{**/*.html,img/*}", "src", "{**/*.html,img/*}"},
		{"dist/**/*", "dist", "**/*"},
	}
	for _, tc := range testCases {
		t.Run(tc.pattern, func(t *testing.T) {
			base, glob := SplitPattern(tc.pattern)
			assert.Equal(t, tc.wantBase, base)
			assert.Equal(t, tc.wantGlob, glob)
		})
	}
}

func TestGlob_BraceSetsAndBase(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"src/index.html",
		"src/about/team.html",
		"src/img/logo.png",
		"src/img/icons/x.svg",
		"src/js/app.js",
	)

	matches, err := Glob(filepath.Join(root, "src", "{**/*.html,img/*}"))
	require.NoError(t, err)

	assert.Equal(t, []string{"about/team.html", "img/logo.png", "index.html"}, rels(matches))
	assert.Equal(t, filepath.Join(root, "src", "index.html"), matches[2].Path)
}

func TestGlob_MissingBaseAndDedup(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/js/app.js")

	pattern := filepath.Join(root, "src", "js", "**", "*.js")
	matches, err := Glob(pattern, pattern, filepath.Join(root, "nope", "**", "*.js"))
	require.NoError(t, err)
	assert.Equal(t, []string{"app.js"}, rels(matches))
}

func TestGlob_InvalidPattern(t *testing.T) {
	_, err := Glob("src/[")
	assert.ErrorContains(t, err, "invalid glob pattern")
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"./src/**/*.{html,js}"}
	assert.True(t, MatchAny(patterns, "src/index.html"))
	assert.True(t, MatchAny(patterns, "./src/js/app.js"))
	assert.False(t, MatchAny(patterns, "src/sass/main.scss"))
}

func TestCopyFile_PreservesModTime(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/img/logo.png")
	src := filepath.Join(root, "src", "img", "logo.png")
	old := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, old, old))

	dest, err := CopyFile(src, filepath.Join(root, "dist"), "img/logo.png")
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "src/img/logo.png", string(data))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old))
}

func TestEmptyDir(t *testing.T) {
	t.Run("removes entries but keeps the directory", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, "dist/index.html", "dist/css/site.css")

		n, err := EmptyDir(filepath.Join(root, "dist"))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		entries, err := os.ReadDir(filepath.Join(root, "dist"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("missing directory is a no-op", func(t *testing.T) {
		n, err := EmptyDir(filepath.Join(t.TempDir(), "dist"))
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestWriteFile_CreatesParents(t *testing.T) {
	root := t.TempDir()
	dest, err := WriteFile(root, "css/deep/site.css", []byte("a{}"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "css", "deep", "site.css"), dest)
}
