package minify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/sitepipe/internal/handlers"
)

func runKind(t *testing.T, kind string, in *Input) error {
	t.Helper()
	h := handlers.New()
	(&Module{}).Register(h)
	rh, ok := h.Lookup(kind)
	require.True(t, ok)
	return rh.Fn(context.Background(), &handlers.Env{}, in)
}

func TestMinifyCSS(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "css")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "pages"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "pages", "home.css"), []byte("body {\n  color: #ff0000;\n  margin: 0px;\n}\n"), 0o644))
	dest := filepath.Join(root, "dist", "css")

	err := runKind(t, "minify_css", &Input{Src: []string{filepath.ToSlash(src) + "/**/*.css"}, Dest: dest})

	require.NoError(t, err)
	out, err := os.ReadFile(filepath.Join(dest, "pages", "home.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{color:red;margin:0}", string(out))
}

func TestMinifyJS(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "js")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "app.js"), []byte("function add(a, b) {\n  return a + b;\n}\n"), 0o644))
	dest := filepath.Join(root, "dist")

	err := runKind(t, "minify_js", &Input{Src: []string{filepath.ToSlash(src) + "/*.js"}, Dest: dest})

	require.NoError(t, err)
	out, err := os.ReadFile(filepath.Join(dest, "app.js"))
	require.NoError(t, err)
	assert.Less(t, len(out), len("function add(a, b) {\n  return a + b;\n}\n"))
	assert.Contains(t, string(out), "function add(")
}

func TestMinifyJS_SyntaxError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.js"), []byte("function ( {"), 0o644))

	err := runKind(t, "minify_js", &Input{Src: []string{filepath.ToSlash(root) + "/*.js"}, Dest: filepath.Join(root, "out")})

	assert.ErrorContains(t, err, "minifying")
	assert.NoFileExists(t, filepath.Join(root, "out", "bad.js"))
}
