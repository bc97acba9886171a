package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) add(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, p)
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]string(nil), c.paths...)
	sort.Strings(out)
	return out
}

func newTestSub(patterns, bases []string) *Subscription {
	return &Subscription{patterns: patterns, bases: bases, cancel: func() {}, done: make(chan struct{})}
}

func TestLoop_MatchesCreateAndWrite(t *testing.T) {
	// --- Arrange ---
	events := make(chan fsnotify.Event)
	errs := make(chan error)
	sub := newTestSub([]string{"./src/**/*.{html,js}"}, []string{"src"})
	c := &collector{}
	ctx, cancel := context.WithCancel(context.Background())
	go sub.loop(ctx, events, errs, func(string) error { return nil }, c.add)

	// --- Act ---
	events <- fsnotify.Event{Name: "src/index.html", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "src/js/app.js", Op: fsnotify.Create}
	events <- fsnotify.Event{Name: "src/css/main.css", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "src/old.html", Op: fsnotify.Remove}
	cancel()
	<-sub.Done()

	// --- Assert ---
	assert.Equal(t, []string{"src/index.html", "src/js/app.js"}, c.snapshot())
	assert.NoError(t, sub.Err())
}

func TestLoop_NotifierErrorKillsSubscription(t *testing.T) {
	events := make(chan fsnotify.Event)
	errs := make(chan error, 1)
	sub := newTestSub([]string{"src/*.html"}, []string{"src"})
	boom := errors.New("inotify queue overflow")

	go sub.loop(context.Background(), events, errs, func(string) error { return nil }, func(string) {})
	errs <- boom

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not die")
	}
	assert.ErrorIs(t, sub.Err(), boom)
}

func TestLoop_ClosedEventsKillsSubscription(t *testing.T) {
	events := make(chan fsnotify.Event)
	sub := newTestSub([]string{"src/*.html"}, []string{"src"})
	close(events)

	sub.loop(context.Background(), events, nil, func(string) error { return nil }, func(string) {})

	assert.ErrorIs(t, sub.Err(), ErrClosed)
}

func TestTrackWith(t *testing.T) {
	root := t.TempDir()
	t.Chdir(root)
	require.NoError(t, os.MkdirAll(filepath.Join("src", "js", "vendor"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join("src", ".cache"), 0o755))
	require.NoError(t, os.MkdirAll("other", 0o755))

	testCases := []struct {
		name  string
		bases []string
		dir   string
		want  []string
	}{
		{"base is walked recursively", []string{"src"}, "src", []string{"src", filepath.Join("src", "js"), filepath.Join("src", "js", "vendor")}},
		{"missing base tracks existing ancestor", []string{"src/css"}, "src/css", []string{"src"}},
		{"unrelated dir is ignored", []string{"src"}, "other", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var added []string
			sub := newTestSub(nil, tc.bases)

			err := sub.trackWith(func(p string) error { added = append(added, p); return nil }, tc.dir)

			require.NoError(t, err)
			assert.Equal(t, tc.want, added)
		})
	}
}

func TestWatch_RealNotifier(t *testing.T) {
	root := t.TempDir()
	t.Chdir(root)
	require.NoError(t, os.MkdirAll("src", 0o755))

	c := &collector{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := Watch(ctx, []string{"./src/**/*.html"}, c.add)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join("src", "index.html"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join("src", "skip.css"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		for _, p := range c.snapshot() {
			if p == "src/index.html" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	assert.NotContains(t, c.snapshot(), "src/skip.css")

	sub.Close()
	<-sub.Done()
	assert.NoError(t, sub.Err())
}

func TestWatch_InvalidInput(t *testing.T) {
	_, err := Watch(context.Background(), nil, func(string) {})
	assert.ErrorContains(t, err, "no patterns")

	_, err = Watch(context.Background(), []string{"src/[.html"}, func(string) {})
	assert.ErrorContains(t, err, "invalid glob pattern")
}
