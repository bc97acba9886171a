// Package http_request provides a smoke-check action that requests a URL and
// checks the response status.
package http_request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/handlers"
)

// Module implements the handlers.Module interface for this package.
type Module struct{}

// Input defines the arguments for the http_request action.
type Input struct {
	URL    string `hcl:"url"`
	Method string `hcl:"method,optional"`
	// ExpectStatus is the required status code; 0 accepts any 2xx.
	ExpectStatus int    `hcl:"expect_status,optional"`
	Timeout      string `hcl:"timeout,optional"`
}

// Validate applies defaults and checks the timeout.
func (in *Input) Validate() error {
	if in.URL == "" {
		return fmt.Errorf("url must not be empty")
	}
	if in.Method == "" {
		in.Method = http.MethodGet
	}
	in.Method = strings.ToUpper(in.Method)
	if in.Timeout != "" {
		if _, err := time.ParseDuration(in.Timeout); err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
	}
	return nil
}

// StatusError is returned when the response status is not the expected one.
type StatusError struct {
	URL    string
	Got    int
	Expect int
}

func (e *StatusError) Error() string {
	if e.Expect == 0 {
		return fmt.Sprintf("%s answered %d, want 2xx", e.URL, e.Got)
	}
	return fmt.Sprintf("%s answered %d, want %d", e.URL, e.Got, e.Expect)
}

// OnRunHttpRequest is the handler for the 'http_request' action.
func OnRunHttpRequest(ctx context.Context, env *handlers.Env, input *Input) error {
	logger := ctxlog.FromContext(ctx)
	if err := input.Validate(); err != nil {
		return err
	}
	logger.Info("Making HTTP request", "method", input.Method, "url", input.URL)

	client := http.DefaultClient
	if env != nil && env.HTTPClient != nil {
		client = env.HTTPClient
	}
	if input.Timeout != "" {
		d, _ := time.ParseDuration(input.Timeout)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, input.Method, input.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	logger.Info("Received HTTP response", "status", resp.Status)

	ok := resp.StatusCode == input.ExpectStatus
	if input.ExpectStatus == 0 {
		ok = resp.StatusCode >= 200 && resp.StatusCode < 300
	}
	if !ok {
		return &StatusError{URL: input.URL, Got: resp.StatusCode, Expect: input.ExpectStatus}
	}
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(h *handlers.Handlers) {
	h.RegisterHandler("http_request", handlers.Typed(OnRunHttpRequest))
}
