// Package watcher turns file system notifications into per-pattern change
// callbacks.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/fsutil"
)

// ErrClosed is reported when the notifier shuts down on its own.
var ErrClosed = errors.New("file notifier closed")

// Subscription is a live watch. It ends when its context is cancelled, when
// Close is called, or when the notifier fails; only the last sets Err.
type Subscription struct {
	patterns []string
	bases    []string
	cancel   context.CancelFunc
	done     chan struct{}

	once sync.Once
	mu   sync.Mutex
	err  error
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the notifier failure that ended the subscription, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the subscription.
func (s *Subscription) Close() { s.cancel() }

func (s *Subscription) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

// Watch calls onChange with the path of every created or written file that
// matches one of patterns, until ctx is cancelled. Directories below each
// pattern's static base are watched recursively, including ones created
// later. onChange runs on the subscription's goroutine.
func Watch(ctx context.Context, patterns []string, onChange func(path string)) (*Subscription, error) {
	if len(patterns) == 0 {
		return nil, errors.New("watch: no patterns given")
	}
	bases := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return nil, fmt.Errorf("watch: invalid glob pattern %q", p)
		}
		base, _ := fsutil.SplitPattern(p)
		bases = append(bases, base)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating notifier: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{patterns: patterns, bases: bases, cancel: cancel, done: make(chan struct{})}

	for _, base := range bases {
		if err := sub.track(fw, base); err != nil {
			cancel()
			fw.Close()
			return nil, fmt.Errorf("watch: %w", err)
		}
	}

	go func() {
		defer fw.Close()
		sub.loop(ctx, fw.Events, fw.Errors, fw.Add, onChange)
	}()
	return sub, nil
}

func (s *Subscription) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, add func(string) error, onChange func(string)) {
	logger := ctxlog.FromContext(ctx).With("patterns", s.patterns)
	logger.Debug("Watching for changes.", "bases", s.bases)

	for {
		select {
		case <-ctx.Done():
			s.finish(nil)
			return

		case err, ok := <-errs:
			if !ok {
				err = ErrClosed
			}
			logger.Error("Watch subscription died.", "error", err)
			s.finish(err)
			return

		case ev, ok := <-events:
			if !ok {
				logger.Error("Watch subscription died.", "error", ErrClosed)
				s.finish(ErrClosed)
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.ToSlash(ev.Name)
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := s.trackWith(add, name); err != nil {
						logger.Warn("Could not watch new directory.", "dir", name, "error", err)
					}
					continue
				}
			}
			if fsutil.MatchAny(s.patterns, name) {
				logger.Debug("Change detected.", "path", name, "op", ev.Op.String())
				onChange(name)
			}
		}
	}
}

func (s *Subscription) track(fw *fsnotify.Watcher, dir string) error {
	return s.trackWith(fw.Add, dir)
}

// trackWith adds dir recursively when it lies inside a base, or alone when it
// is an ancestor of a base. A directory that does not exist yet is tracked
// through its nearest existing ancestor, so the base is picked up once it is
// created.
func (s *Subscription) trackWith(add func(string) error, dir string) error {
	dir = path.Clean(dir)
	if _, err := os.Stat(filepath.FromSlash(dir)); errors.Is(err, fs.ErrNotExist) {
		parent := path.Dir(dir)
		if parent == dir {
			return err
		}
		return s.trackWith(add, parent)
	}
	for _, base := range s.bases {
		if within(dir, base) {
			return addTree(add, dir)
		}
	}
	for _, base := range s.bases {
		if within(base, dir) {
			return add(filepath.FromSlash(dir))
		}
	}
	return nil
}

func addTree(add func(string) error, root string) error {
	return filepath.WalkDir(filepath.FromSlash(root), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != filepath.FromSlash(root) && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return add(p)
	})
}

// within reports whether p is base or below it. Both are cleaned slash paths.
func within(p, base string) bool {
	if base == "." {
		return !path.IsAbs(p) && p != ".." && !strings.HasPrefix(p, "../")
	}
	return p == base || strings.HasPrefix(p, base+"/")
}
