// Package ftpqueue uploads a directory over FTP through a bounded set of
// concurrent connections.
package ftpqueue

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/sourcegraph/conc/pool"
	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/deploy"
)

// DefaultParallel is the connection count used when the target sets none.
const DefaultParallel = 10

// Conn is the subset of *ftp.ServerConn used by the queue.
type Conn interface {
	MakeDir(path string) error
	Stor(path string, r io.Reader) error
	GetTime(path string) (time.Time, error)
	Quit() error
}

// Dialer opens an authenticated connection.
type Dialer func(ctx context.Context, t deploy.Target) (Conn, error)

// Queue implements deploy.Transferer.
type Queue struct {
	dial Dialer
}

var _ deploy.Transferer = (*Queue)(nil)

// New returns a Queue that dials real FTP servers.
func New() *Queue {
	return &Queue{dial: DialFTP}
}

// NewWithDialer returns a Queue using a custom dialer.
func NewWithDialer(d Dialer) *Queue {
	return &Queue{dial: d}
}

// DialFTP connects and logs in.
func DialFTP(ctx context.Context, t deploy.Target) (Conn, error) {
	c, err := ftp.Dial(t.Addr(), ftp.DialWithContext(ctx), ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, err
	}
	if err := c.Login(t.User, t.Password); err != nil {
		_ = c.Quit()
		return nil, fmt.Errorf("login as %s: %w", t.User, err)
	}
	return c, nil
}

type file struct {
	rel   string
	local string
	info  os.FileInfo
}

// Transfer uploads every file under t.LocalDir. With UpdateOnly, a file is
// only sent when it is newer than the remote copy.
func (q *Queue) Transfer(ctx context.Context, t deploy.Target) (*deploy.Report, error) {
	logger := ctxlog.FromContext(ctx)

	dirs, files, err := scan(t.LocalDir)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", t.LocalDir, err)
	}

	parallel := t.Parallel
	if parallel <= 0 {
		parallel = DefaultParallel
	}
	conns := newConnPool(func() (Conn, error) { return q.dial(ctx, t) }, parallel)
	defer conns.closeAll()

	// Directories first, on one connection, parents before children.
	c, err := conns.get()
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", t.Addr(), err)
	}
	for _, d := range append([]string{""}, dirs...) {
		// Existing directories make MakeDir fail; a real problem surfaces on Stor.
		_ = c.MakeDir(path.Join(t.RemoteDir, d))
	}
	conns.put(c)

	var (
		mu     sync.Mutex
		report = &deploy.Report{}
	)
	record := func(fn func(r *deploy.Report)) {
		mu.Lock()
		defer mu.Unlock()
		fn(report)
	}

	p := pool.New().WithMaxGoroutines(parallel)
	for _, f := range files {
		p.Go(func() {
			if ctx.Err() != nil {
				record(func(r *deploy.Report) { r.Failed = append(r.Failed, &deploy.FileError{Path: f.rel, Err: ctx.Err()}) })
				return
			}
			uploaded, err := q.send(conns, t, f)
			switch {
			case err != nil:
				logger.Warn("Upload failed.", "file", f.rel, "error", err)
				record(func(r *deploy.Report) { r.Failed = append(r.Failed, &deploy.FileError{Path: f.rel, Err: err}) })
			case uploaded:
				logger.Debug("Uploaded.", "file", f.rel)
				record(func(r *deploy.Report) { r.Uploaded = append(r.Uploaded, f.rel) })
			default:
				record(func(r *deploy.Report) { r.Skipped = append(r.Skipped, f.rel) })
			}
		})
	}
	p.Wait()

	report.Sort()
	return report, report.Err()
}

func (q *Queue) send(conns *connPool, t deploy.Target, f file) (bool, error) {
	c, err := conns.get()
	if err != nil {
		return false, err
	}
	remote := path.Join(t.RemoteDir, f.rel)

	if t.UpdateOnly {
		if rt, err := c.GetTime(remote); err == nil && !f.info.ModTime().Truncate(time.Second).After(rt) {
			conns.put(c)
			return false, nil
		}
	}

	in, err := os.Open(f.local)
	if err != nil {
		conns.put(c)
		return false, err
	}
	defer in.Close()

	if err := c.Stor(remote, in); err != nil {
		// The connection state is unknown after a failed transfer.
		conns.discard(c)
		return false, err
	}
	conns.put(c)
	return true, nil
}

func scan(root string) (dirs []string, files []file, err error) {
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			dirs = append(dirs, rel)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, file{rel: rel, local: p, info: info})
		return nil
	})
	return dirs, files, err
}

// connPool hands out at most cap(idle) live connections, dialing lazily.
type connPool struct {
	dial func() (Conn, error)
	idle chan Conn

	mu  sync.Mutex
	all []Conn
}

func newConnPool(dial func() (Conn, error), size int) *connPool {
	return &connPool{dial: dial, idle: make(chan Conn, size)}
}

func (p *connPool) get() (Conn, error) {
	select {
	case c := <-p.idle:
		return c, nil
	default:
	}
	c, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.all = append(p.all, c)
	p.mu.Unlock()
	return c, nil
}

func (p *connPool) put(c Conn) {
	select {
	case p.idle <- c:
	default:
		p.discard(c)
	}
}

func (p *connPool) discard(c Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, other := range p.all {
		if other == c {
			p.all = append(p.all[:i], p.all[i+1:]...)
			break
		}
	}
	_ = c.Quit()
}

func (p *connPool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.all {
		_ = c.Quit()
	}
	p.all = nil
}

