// Package syncssh mirrors a local directory to a remote one over SFTP.
package syncssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/deploy"
)

// RemoteFS is the subset of an SFTP client the mirror needs.
type RemoteFS interface {
	Stat(p string) (os.FileInfo, error)
	MkdirAll(p string) error
	Create(p string) (io.WriteCloser, error)
	Chtimes(p string, atime, mtime time.Time) error
	Remove(p string) error
	RemoveDirectory(p string) error
	ReadDir(p string) ([]os.FileInfo, error)
	Close() error
}

// Dialer opens a RemoteFS for a target.
type Dialer func(ctx context.Context, t deploy.Target) (RemoteFS, error)

// Syncer implements deploy.Transferer.
type Syncer struct {
	dial Dialer
}

var _ deploy.Transferer = (*Syncer)(nil)

// New returns a Syncer that connects over SSH.
func New() *Syncer {
	return &Syncer{dial: DialSFTP}
}

// NewWithDialer returns a Syncer using a custom dialer.
func NewWithDialer(d Dialer) *Syncer {
	return &Syncer{dial: d}
}

// Transfer connects and mirrors t.LocalDir into t.RemoteDir.
func (s *Syncer) Transfer(ctx context.Context, t deploy.Target) (*deploy.Report, error) {
	rfs, err := s.dial(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", t.Addr(), err)
	}
	defer rfs.Close()

	report, err := Mirror(ctx, rfs, t)
	if err != nil {
		return report, err
	}
	return report, report.Err()
}

// Mirror copies every file under t.LocalDir to t.RemoteDir. With UpdateOnly a
// file is skipped when the remote copy has the same size and is not older than
// the local one. With Clean, remote entries that do not exist locally are
// removed afterwards.
func Mirror(ctx context.Context, rfs RemoteFS, t deploy.Target) (*deploy.Report, error) {
	logger := ctxlog.FromContext(ctx)
	report := &deploy.Report{}
	local := make(map[string]bool)

	if err := rfs.MkdirAll(t.RemoteDir); err != nil {
		return report, fmt.Errorf("creating remote dir %s: %w", t.RemoteDir, err)
	}

	err := filepath.WalkDir(t.LocalDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(t.LocalDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		local[rel] = true
		remote := path.Join(t.RemoteDir, rel)

		if d.IsDir() {
			if err := rfs.MkdirAll(remote); err != nil {
				return fmt.Errorf("creating remote dir %s: %w", remote, err)
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		if t.UpdateOnly && upToDate(rfs, remote, info) {
			report.Skipped = append(report.Skipped, rel)
			return nil
		}
		if err := upload(rfs, p, remote, info); err != nil {
			logger.Warn("Upload failed.", "file", rel, "error", err)
			report.Failed = append(report.Failed, &deploy.FileError{Path: rel, Err: err})
			return nil
		}
		logger.Debug("Uploaded.", "file", rel)
		report.Uploaded = append(report.Uploaded, rel)
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walking %s: %w", t.LocalDir, err)
	}

	if t.Clean {
		if err := prune(ctx, rfs, t.RemoteDir, "", local, report); err != nil {
			return report, err
		}
	}

	report.Sort()
	return report, nil
}

func upToDate(rfs RemoteFS, remote string, local os.FileInfo) bool {
	st, err := rfs.Stat(remote)
	if err != nil || st.IsDir() {
		return false
	}
	// SFTP timestamps have second precision.
	return st.Size() == local.Size() && !st.ModTime().Before(local.ModTime().Truncate(time.Second))
}

func upload(rfs RemoteFS, src, remote string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := rfs.Create(remote)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return rfs.Chtimes(remote, time.Now(), info.ModTime())
}

func prune(ctx context.Context, rfs RemoteFS, root, rel string, local map[string]bool, report *deploy.Report) error {
	entries, err := rfs.ReadDir(path.Join(root, rel))
	if err != nil {
		return fmt.Errorf("listing remote %s: %w", path.Join(root, rel), err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		childRel := path.Join(rel, e.Name())
		if local[childRel] {
			if e.IsDir() {
				if err := prune(ctx, rfs, root, childRel, local, report); err != nil {
					return err
				}
			}
			continue
		}
		if err := removeAll(rfs, path.Join(root, childRel), e.IsDir()); err != nil {
			report.Failed = append(report.Failed, &deploy.FileError{Path: childRel, Err: err})
			continue
		}
		report.Deleted = append(report.Deleted, childRel)
	}
	return nil
}

func removeAll(rfs RemoteFS, p string, dir bool) error {
	if !dir {
		return rfs.Remove(p)
	}
	entries, err := rfs.ReadDir(p)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		errs = append(errs, removeAll(rfs, path.Join(p, e.Name()), e.IsDir()))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return rfs.RemoveDirectory(p)
}
