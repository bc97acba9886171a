package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/sitepipe/internal/app"
	"github.com/vk/sitepipe/internal/hcl"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	// StartupErr is set when NewApp itself failed; nothing ran.
	StartupErr bool
}

// Harness describes one invocation of the application against an in-memory
// taskfile.
type Harness struct {
	Taskfile string
	Task     string
	// Files are extra files written next to the taskfile, keyed by relative
	// path.
	Files map[string]string
	// Configure may adjust the config before NewApp is called.
	Configure func(cfg *app.Config)
	Options   []app.Option
}

// WriteTaskfile writes content as sitepipe.hcl in a fresh temp directory
// and returns its path.
func WriteTaskfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), app.DefaultTaskfile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// RunIntegrationTest runs h using a background context.
func RunIntegrationTest(t *testing.T, h Harness) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, h)
}

// RunIntegrationTestWithContext builds the app for h and runs it with ctx.
// History is written to a temp state dir.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, h Harness) *HarnessResult {
	t.Helper()

	path := WriteTaskfile(t, h.Taskfile)
	dir := filepath.Dir(path)
	for name, content := range h.Files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	cfg, err := app.NewConfig(app.Config{
		TaskfilePath: path,
		Task:         h.Task,
		WebhostPath:  filepath.Join(dir, app.DefaultWebhost),
		StateDir:     filepath.Join(dir, app.DefaultStateDir),
		LogLevel:     "debug",
		LogFormat:    "text",
	})
	require.NoError(t, err)
	if h.Configure != nil {
		h.Configure(cfg)
	}

	logBuffer := &SafeBuffer{}
	testApp, err := app.NewApp(logBuffer, cfg, hcl.NewLoader(os.Environ()), h.Options...)
	if err != nil {
		return &HarnessResult{LogOutput: logBuffer.String(), Err: err, StartupErr: true}
	}
	t.Cleanup(func() { testApp.Close() })

	runErr := testApp.Run(ctx)

	if os.Getenv("SITEPIPE_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}
	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
	}
}

// Must fails the test if the run did not succeed.
func (r *HarnessResult) Must(t *testing.T) *HarnessResult {
	t.Helper()
	require.NoError(t, r.Err, fmt.Sprintf("logs:\n%s", r.LogOutput))
	return r
}
