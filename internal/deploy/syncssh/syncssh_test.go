package syncssh

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/sitepipe/internal/deploy"
)

// dirFS is a RemoteFS backed by a local directory.
type dirFS struct {
	root    string
	creates []string
	closed  bool
}

func (d *dirFS) p(rp string) string { return filepath.Join(d.root, filepath.FromSlash(rp)) }

func (d *dirFS) Stat(p string) (os.FileInfo, error) { return os.Stat(d.p(p)) }
func (d *dirFS) MkdirAll(p string) error           { return os.MkdirAll(d.p(p), 0o755) }
func (d *dirFS) Create(p string) (io.WriteCloser, error) {
	d.creates = append(d.creates, p)
	return os.Create(d.p(p))
}
func (d *dirFS) Chtimes(p string, a, m time.Time) error { return os.Chtimes(d.p(p), a, m) }
func (d *dirFS) Remove(p string) error                  { return os.Remove(d.p(p)) }
func (d *dirFS) RemoveDirectory(p string) error         { return os.Remove(d.p(p)) }
func (d *dirFS) ReadDir(p string) ([]os.FileInfo, error) {
	entries, err := os.ReadDir(d.p(p))
	if err != nil {
		return nil, err
	}
	infos := make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}
func (d *dirFS) Close() error { d.closed = true; return nil }

func writeFile(t *testing.T, root, rel, content string, mtime time.Time) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(p, mtime, mtime))
}

func setup(t *testing.T) (localDir string, remote *dirFS) {
	t.Helper()
	localDir = t.TempDir()
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeFile(t, localDir, "index.html", "<h1>hi</h1>", old)
	writeFile(t, localDir, "css/main.css", "body{}", old)
	writeFile(t, localDir, "js/app.js", "x()", old)
	return localDir, &dirFS{root: t.TempDir()}
}

func TestMirror_FirstUploadSendsEverything(t *testing.T) {
	localDir, remote := setup(t)

	report, err := Mirror(context.Background(), remote, deploy.Target{LocalDir: localDir, RemoteDir: "/site", UpdateOnly: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"css/main.css", "index.html", "js/app.js"}, report.Uploaded)
	assert.Empty(t, report.Skipped)

	data, err := os.ReadFile(filepath.Join(remote.root, "site", "css", "main.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))
}

func TestMirror_UpdateOnlySkipsUnchanged(t *testing.T) {
	// --- Arrange ---
	localDir, remote := setup(t)
	target := deploy.Target{LocalDir: localDir, RemoteDir: "/site", UpdateOnly: true}
	_, err := Mirror(context.Background(), remote, target)
	require.NoError(t, err)

	writeFile(t, localDir, "js/app.js", "x();y()", time.Now())

	// --- Act ---
	report, err := Mirror(context.Background(), remote, target)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"js/app.js"}, report.Uploaded)
	assert.Equal(t, []string{"css/main.css", "index.html"}, report.Skipped)
}

func TestMirror_AllUploadsEverything(t *testing.T) {
	localDir, remote := setup(t)
	target := deploy.Target{LocalDir: localDir, RemoteDir: "/site", UpdateOnly: true}
	_, err := Mirror(context.Background(), remote, target)
	require.NoError(t, err)

	target.UpdateOnly = false
	report, err := Mirror(context.Background(), remote, target)

	require.NoError(t, err)
	assert.Len(t, report.Uploaded, 3)
	assert.Empty(t, report.Skipped)
}

func TestMirror_Clean(t *testing.T) {
	testCases := []struct {
		name        string
		clean       bool
		wantDeleted []string
		wantExists  bool
	}{
		{"clean removes stale entries", true, []string{"old", "stale.html"}, false},
		{"without clean stale entries stay", false, nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			localDir, remote := setup(t)
			writeFile(t, remote.root, "site/stale.html", "gone", time.Now())
			writeFile(t, remote.root, "site/old/deep/file.txt", "gone", time.Now())

			report, err := Mirror(context.Background(), remote, deploy.Target{LocalDir: localDir, RemoteDir: "/site", Clean: tc.clean})

			require.NoError(t, err)
			assert.Equal(t, tc.wantDeleted, report.Deleted)
			_, statErr := os.Stat(filepath.Join(remote.root, "site", "stale.html"))
			assert.Equal(t, tc.wantExists, statErr == nil)
			_, statErr = os.Stat(filepath.Join(remote.root, "site", "css", "main.css"))
			assert.NoError(t, statErr)
		})
	}
}

func TestMirror_MissingLocalDir(t *testing.T) {
	remote := &dirFS{root: t.TempDir()}
	_, err := Mirror(context.Background(), remote, deploy.Target{LocalDir: filepath.Join(t.TempDir(), "dist"), RemoteDir: "/site"})
	assert.ErrorContains(t, err, "walking")
}

func TestSyncer_Transfer(t *testing.T) {
	t.Run("closes the connection", func(t *testing.T) {
		localDir, remote := setup(t)
		s := NewWithDialer(func(context.Context, deploy.Target) (RemoteFS, error) { return remote, nil })

		report, err := s.Transfer(context.Background(), deploy.Target{LocalDir: localDir, RemoteDir: "/site"})

		require.NoError(t, err)
		assert.Len(t, report.Uploaded, 3)
		assert.True(t, remote.closed)
	})

	t.Run("dial failure", func(t *testing.T) {
		boom := errors.New("connection refused")
		s := NewWithDialer(func(context.Context, deploy.Target) (RemoteFS, error) { return nil, boom })

		_, err := s.Transfer(context.Background(), deploy.Target{Host: "h", Port: 22})
		assert.ErrorIs(t, err, boom)
		assert.ErrorContains(t, err, "connecting to h:22")
	})
}

func TestClientConfig_RequiresAuth(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	_, _, err := clientConfig(deploy.Target{User: "u"})
	assert.ErrorContains(t, err, "no ssh authentication available")
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ssh/id"), expandHome("~/.ssh/id"))
	assert.Equal(t, "/abs/id", expandHome("/abs/id"))
}
