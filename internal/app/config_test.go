package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/sitepipe/internal/dag"
	"github.com/vk/sitepipe/internal/hcl"
	"github.com/vk/sitepipe/internal/history"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		in      Config
		want    *Config
		wantErr string
	}{
		{
			name: "defaults",
			in:   Config{},
			want: &Config{
				TaskfilePath: DefaultTaskfile,
				Task:         DefaultTask,
				WebhostPath:  DefaultWebhost,
				StateDir:     DefaultStateDir,
				LogLevel:     "info",
				LogFormat:    "text",
			},
		},
		{
			name: "case is normalized",
			in:   Config{Task: "build", LogLevel: "DEBUG", LogFormat: "JSON", All: true},
			want: &Config{
				TaskfilePath: DefaultTaskfile,
				Task:         "build",
				WebhostPath:  DefaultWebhost,
				StateDir:     DefaultStateDir,
				LogLevel:     "debug",
				LogFormat:    "json",
				All:          true,
			},
		},
		{name: "bad format", in: Config{LogFormat: "xml"}, wantErr: "invalid log-format"},
		{name: "bad level", in: Config{LogLevel: "loud"}, wantErr: "invalid log-level"},
		{name: "negative workers", in: Config{Workers: -1}, wantErr: "invalid workers"},
		{name: "list and plan", in: Config{List: true, Plan: true}, wantErr: "cannot be combined"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewConfig(tc.in)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("NewConfig() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()

	loaded, err := LoadEnvFile(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.False(t, loaded)

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SITEPIPE_TEST_ENV_A=from-file\nSITEPIPE_TEST_ENV_B=from-file\n"), 0o644))
	t.Setenv("SITEPIPE_TEST_ENV_B", "from-shell")
	t.Setenv("SITEPIPE_TEST_ENV_A", "")
	os.Unsetenv("SITEPIPE_TEST_ENV_A")

	loaded, err = LoadEnvFile(path)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "from-file", os.Getenv("SITEPIPE_TEST_ENV_A"))
	assert.Equal(t, "from-shell", os.Getenv("SITEPIPE_TEST_ENV_B"), "existing variables win")
}

func TestWriteStockTaskfile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), DefaultTaskfile)

	require.NoError(t, WriteStockTaskfile(path, false))
	require.ErrorIs(t, WriteStockTaskfile(path, false), ErrTaskfileExists)

	require.NoError(t, os.WriteFile(path, []byte("# mine\n"), 0o644))
	require.NoError(t, WriteStockTaskfile(path, true))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, StockTaskfile, string(data))
}

func TestStockTaskfile_LoadsWithCoreModules(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultTaskfile)
	require.NoError(t, WriteStockTaskfile(path, false))
	webhost := filepath.Join(dir, DefaultWebhost)
	require.NoError(t, os.WriteFile(webhost, []byte(`{"address":"example.com","ssh":{"username":"me"},"ftp":{"username":"me"}}`), 0o644))

	cfg, err := NewConfig(Config{TaskfilePath: path, WebhostPath: webhost, NoHistory: true, LogLevel: "error"})
	require.NoError(t, err)
	a, err := NewApp(io.Discard, cfg, hcl.NewLoader(nil))
	require.NoError(t, err)
	defer a.Close()

	wantTasks := []string{
		"serve", "sass", "clean", "copy", "js", "css:minify", "css", "assets", "build",
		"serve:dist", "serveBuild", "rsync", "deploy", "ftp", "ftp-deploy", "default",
	}
	assert.Equal(t, wantTasks, a.Registry().Names())

	plan, err := dag.Build(context.Background(), a.Registry(), "deploy")
	require.NoError(t, err)
	want := `deploy (series)
  build (series)
    clean
    assets (parallel)
      copy
      js
      css (series)
        sass
        css:minify
  rsync
`
	assert.Equal(t, want, plan.String())
}

func TestPrintHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	var out bytes.Buffer
	require.NoError(t, PrintHistory(ctx, &out, filepath.Join(dir, "none"), 10))
	assert.Equal(t, "No runs recorded yet.\n", out.String())
	_, err := os.Stat(filepath.Join(dir, "none"))
	assert.True(t, os.IsNotExist(err), "printing must not create the state dir")

	store, err := history.Open(ctx, dir)
	require.NoError(t, err)
	ok, err := store.Start(ctx, "build", "sitepipe.hcl")
	require.NoError(t, err)
	require.NoError(t, store.Finish(ctx, ok.ID, nil))
	bad, err := store.Start(ctx, "deploy", "sitepipe.hcl")
	require.NoError(t, err)
	require.NoError(t, store.Finish(ctx, bad.ID, errors.New("ssh: handshake failed\nretry later")))
	require.NoError(t, store.Close())

	out.Reset()
	require.NoError(t, PrintHistory(ctx, &out, dir, 10))
	got := out.String()
	assert.Contains(t, got, "TASK")
	assert.Contains(t, got, "build")
	assert.Contains(t, got, "deploy")
	assert.Contains(t, got, "succeeded")
	assert.Contains(t, got, "ssh: handshake failed retry later")
}
