// Package socketio sends a build notification to a socket.io server, e.g. to
// tell a preview dashboard that a deploy finished.
package socketio

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/handlers"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const defaultTimeout = 10 * time.Second

// Module implements the handlers.Module interface for this package.
type Module struct{}

// Input defines the arguments for the socketio action.
type Input struct {
	URL       string            `hcl:"url"`
	Namespace string            `hcl:"namespace,optional"`
	EmitEvent string            `hcl:"emit_event"`
	EmitData  map[string]string `hcl:"emit_data,optional"`
	// AckEvent, when set, is awaited after the emit.
	AckEvent           string `hcl:"ack_event,optional"`
	Timeout            string `hcl:"timeout,optional"`
	InsecureSkipVerify bool   `hcl:"insecure_skip_verify,optional"`
}

// Validate checks the arguments and applies defaults.
func (in *Input) Validate() error {
	u, err := url.Parse(in.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url %q must be absolute", in.URL)
	}
	if in.EmitEvent == "" {
		return errors.New("emit_event must not be empty")
	}
	if in.Namespace == "" {
		in.Namespace = "/"
	}
	if in.Timeout != "" {
		if _, err := time.ParseDuration(in.Timeout); err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
	}
	return nil
}

func (in *Input) timeout() time.Duration {
	if d, err := time.ParseDuration(in.Timeout); err == nil && d > 0 {
		return d
	}
	return defaultTimeout
}

// OnRunSocketIO connects, emits the event and, if asked, waits for the ack
// event before disconnecting.
func OnRunSocketIO(ctx context.Context, _ *handlers.Env, input *Input) error {
	logger := ctxlog.FromContext(ctx).With("action", "socketio", "url", input.URL, "emitEvent", input.EmitEvent)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	if err := input.Validate(); err != nil {
		return err
	}

	var isConnected atomic.Bool
	done := make(chan error, 1)
	opCtx, cancel := context.WithTimeout(ctx, input.timeout())
	defer cancel()

	parsedURL, _ := url.Parse(input.URL)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		opts.SetPath(parsedURL.Path)
	}
	if input.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(input.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	signal := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Connected, emitting notification.", "namespace", input.Namespace, "sid", io.Id())
		data := make(map[string]any, len(input.EmitData))
		for k, v := range input.EmitData {
			data[k] = v
		}
		io.Emit(input.EmitEvent, data)
		if input.AckEvent == "" {
			signal(nil)
		}
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if err, ok := errs[0].(error); ok {
				signal(fmt.Errorf("connect failed: %w", err))
				return
			}
		}
		signal(errors.New("connect failed"))
	})

	if input.AckEvent != "" {
		io.On(types.EventName(input.AckEvent), func(...any) {
			logger.Info("Acknowledged.", "event", input.AckEvent)
			signal(nil)
		})
	}

	io.Connect()

	select {
	case <-opCtx.Done():
		if isConnected.Load() {
			return fmt.Errorf("timed out after connecting while waiting for event '%s'", input.AckEvent)
		}
		return errors.New("timed out while waiting for initial connection")
	case err := <-done:
		return err
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(h *handlers.Handlers) {
	h.RegisterHandler("socketio", handlers.Typed(OnRunSocketIO))
}
