package print

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/vk/sitepipe/internal/ctxlog"
	"github.com/vk/sitepipe/internal/handlers"
)

// Module implements the handlers.Module interface for this package.
type Module struct{}

// Input defines the arguments for the print action.
type Input struct {
	Message string `hcl:"message"`
}

// OnRunPrint writes the message as one line to the run's output.
func OnRunPrint(ctx context.Context, env *handlers.Env, input *Input) error {
	ctxlog.FromContext(ctx).Debug("Printing message.")

	var out io.Writer = os.Stdout
	if env != nil && env.Out != nil {
		out = env.Out
	}
	_, err := fmt.Fprintln(out, input.Message)
	return err
}

// Register registers the handler with the engine.
func (m *Module) Register(h *handlers.Handlers) {
	h.RegisterHandler("print", handlers.Typed(OnRunPrint))
}
