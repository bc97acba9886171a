package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Handlers holds the action kinds compiled into the binary.
type Handlers struct {
	all map[string]*RegisteredHandler
}

// New creates an empty Handlers store.
func New() *Handlers {
	return &Handlers{
		all: make(map[string]*RegisteredHandler),
	}
}

// RegisteredHandler is the Go side of one action kind.
type RegisteredHandler struct {
	// NewInput returns a pointer to a fresh, gohcl-decodable argument struct.
	NewInput func() any
	// Fn runs the action with a decoded input.
	Fn func(ctx context.Context, env *Env, input any) error
}

// Typed builds a RegisteredHandler from a strongly typed function.
func Typed[T any](fn func(ctx context.Context, env *Env, input *T) error) *RegisteredHandler {
	return &RegisteredHandler{
		NewInput: func() any { return new(T) },
		Fn: func(ctx context.Context, env *Env, input any) error {
			in, ok := input.(*T)
			if !ok {
				return fmt.Errorf("handler input has type %T, want %T", input, new(T))
			}
			return fn(ctx, env, in)
		},
	}
}

// RegisterHandler registers the handler for an action kind. Registering a
// kind twice is a programming error and panics.
func (r *Handlers) RegisterHandler(kind string, handler *RegisteredHandler) {
	if _, exists := r.all[kind]; exists {
		panic(fmt.Sprintf("action handler for kind '%s' already registered", kind))
	}
	slog.Debug("Registering action handler.", "kind", kind)
	r.all[kind] = handler
}

// Lookup returns the handler for kind.
func (r *Handlers) Lookup(kind string) (*RegisteredHandler, bool) {
	h, ok := r.all[kind]
	return h, ok
}

// Kinds returns the registered kinds, sorted.
func (r *Handlers) Kinds() []string {
	kinds := make([]string, 0, len(r.all))
	for k := range r.all {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Module is a package that contributes action kinds.
type Module interface {
	Register(h *Handlers)
}

// Validator is implemented by inputs that check or default their fields after
// decoding. It runs once at startup.
type Validator interface {
	Validate() error
}

// TaskRefs is implemented by inputs that name other tasks. The names are
// checked against the task registry at startup.
type TaskRefs interface {
	ReferencedTasks() []string
}
