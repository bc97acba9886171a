package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/vk/sitepipe/internal/deploy"
	"github.com/vk/sitepipe/internal/devserver"
)

// TaskRunner resolves and runs a task by name.
type TaskRunner interface {
	RunTask(ctx context.Context, name string) error
}

// Subscription is a live file watch.
type Subscription interface {
	Done() <-chan struct{}
	Err() error
}

// WatchFunc starts a file watch.
type WatchFunc func(ctx context.Context, patterns []string, onChange func(path string)) (Subscription, error)

// Deployer runs deploy transfers.
type Deployer interface {
	Sync(ctx context.Context, req deploy.SyncRequest) (*deploy.Report, error)
	FTP(ctx context.Context, req deploy.FTPRequest) (*deploy.Report, error)
}

// Env carries the process-wide services an action may use.
type Env struct {
	Runner     TaskRunner
	Watch      WatchFunc
	LiveReload *devserver.Broadcast
	Deployer   Deployer
	HTTPClient *http.Client
	Out        io.Writer
}
