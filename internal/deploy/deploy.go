// Package deploy turns the webhost record and CLI flags into transfer targets
// and hands them to a Transferer.
//
// The adapter is the only reader of the --all flag: UpdateOnly is its
// negation and every transfer honours it.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vk/sitepipe/internal/credentials"
	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/webhost"
)

// Target describes one transfer.
type Target struct {
	Host     string
	Port     int
	User     string
	Password string
	// KeyFile and KnownHosts only apply to SSH.
	KeyFile               string
	KnownHosts            string
	InsecureIgnoreHostKey bool

	LocalDir   string
	RemoteDir  string
	UpdateOnly bool
	Clean      bool
	Parallel   int
}

// Addr returns host:port.
func (t Target) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// Transferer moves the contents of Target.LocalDir to Target.RemoteDir.
type Transferer interface {
	Transfer(ctx context.Context, t Target) (*Report, error)
}

// TransferFunc adapts a function to Transferer.
type TransferFunc func(ctx context.Context, t Target) (*Report, error)

// Transfer implements Transferer.
func (f TransferFunc) Transfer(ctx context.Context, t Target) (*Report, error) {
	return f(ctx, t)
}

// FileError records a single file that could not be transferred.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e *FileError) Unwrap() error { return e.Err }

// Report summarises a transfer. Paths are relative to the local root.
type Report struct {
	Uploaded []string
	Skipped  []string
	Deleted  []string
	Failed   []*FileError
}

// Sort orders every list so reports from concurrent transfers are stable.
func (r *Report) Sort() {
	sort.Strings(r.Uploaded)
	sort.Strings(r.Skipped)
	sort.Strings(r.Deleted)
	sort.Slice(r.Failed, func(i, j int) bool { return r.Failed[i].Path < r.Failed[j].Path })
}

// Err joins every file failure, or returns nil.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return fmt.Errorf("%d file(s) failed to transfer: %w", len(r.Failed), errors.Join(errs...))
}

// String renders a one-line summary.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "uploaded=%d skipped=%d deleted=%d failed=%d",
		len(r.Uploaded), len(r.Skipped), len(r.Deleted), len(r.Failed))
	return b.String()
}

// Flags are the CLI switches that affect deploys.
type Flags struct {
	// All uploads every file instead of only changed ones.
	All bool
}

// SyncRequest is the per-task part of a sync deploy.
type SyncRequest struct {
	Root  string
	Clean bool
}

// FTPRequest is the per-task part of an FTP deploy.
type FTPRequest struct {
	Root     string
	Parallel int
}

// Adapter builds targets and runs transfers.
type Adapter struct {
	host  *webhost.Config
	flags Flags
	creds credentials.Provider
	sync  Transferer
	ftp   Transferer
}

// NewAdapter wires the adapter. host may be nil when the taskfile has no
// deploy tasks; Sync and FTP then fail.
func NewAdapter(host *webhost.Config, flags Flags, creds credentials.Provider, sync, ftp Transferer) *Adapter {
	return &Adapter{host: host, flags: flags, creds: creds, sync: sync, ftp: ftp}
}

// UpdateOnly reports whether transfers skip unchanged files.
func (a *Adapter) UpdateOnly() bool {
	return !a.flags.All
}

// Sync mirrors req.Root over SSH.
func (a *Adapter) Sync(ctx context.Context, req SyncRequest) (*Report, error) {
	if a.host == nil {
		return nil, errors.New("sync deploy: no webhost config loaded")
	}
	if a.host.SSH.Username == "" {
		return nil, errors.New("sync deploy: webhost config has no ssh.username")
	}
	t := Target{
		Host:                  a.host.Address,
		Port:                  a.host.SSH.Port,
		User:                  a.host.SSH.Username,
		KeyFile:               a.host.SSH.KeyFile,
		KnownHosts:            a.host.SSH.KnownHosts,
		InsecureIgnoreHostKey: a.host.SSH.InsecureIgnoreHostKey,
		LocalDir:              req.Root,
		RemoteDir:             a.host.RemoteDir,
		UpdateOnly:            a.UpdateOnly(),
		Clean:                 req.Clean,
	}
	return a.run(ctx, "sync", a.sync, t)
}

// FTP prompts for the password and uploads req.Root.
func (a *Adapter) FTP(ctx context.Context, req FTPRequest) (*Report, error) {
	if a.host == nil {
		return nil, errors.New("ftp deploy: no webhost config loaded")
	}
	if a.host.FTP.Username == "" {
		return nil, errors.New("ftp deploy: webhost config has no ftp.username")
	}
	if a.creds == nil {
		return nil, errors.New("ftp deploy: no credential provider")
	}

	prompt := fmt.Sprintf("FTP password for %s@%s", a.host.FTP.Username, a.host.Address)
	password, err := a.creds.Secret(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("ftp deploy: acquiring password: %w", err)
	}

	parallel := req.Parallel
	if parallel <= 0 {
		parallel = a.host.FTP.Parallel
	}
	t := Target{
		Host:       a.host.Address,
		Port:       a.host.FTP.Port,
		User:       a.host.FTP.Username,
		Password:   password,
		LocalDir:   req.Root,
		RemoteDir:  a.host.RemoteDir,
		UpdateOnly: a.UpdateOnly(),
		Parallel:   parallel,
	}
	return a.run(ctx, "ftp", a.ftp, t)
}

func (a *Adapter) run(ctx context.Context, mode string, tr Transferer, t Target) (*Report, error) {
	if tr == nil {
		return nil, fmt.Errorf("%s deploy: no transferer configured", mode)
	}
	logger := ctxlog.FromContext(ctx).With("mode", mode, "remote", t.Addr(), "remote_dir", t.RemoteDir)
	logger.Info("Starting deploy.", "local_dir", t.LocalDir, "update_only", t.UpdateOnly)

	report, err := tr.Transfer(ctx, t)
	if err != nil {
		logger.Error("Deploy failed.", "error", err)
		return report, fmt.Errorf("%s deploy: %w", mode, err)
	}
	logger.Info("Deploy finished.", "summary", report.String())
	return report, nil
}
