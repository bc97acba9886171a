package config

import (
	"context"

	"github.com/hashicorp/hcl/v2"
)

// Loader is the interface for a format-specific taskfile loader.
type Loader interface {
	// Load reads the given files or directories, translates them into the
	// format-agnostic model and returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter decodes undecoded action bodies into Go input structs.
type Converter interface {
	// DecodeBody decodes body into target, a pointer to a struct, evaluating
	// expressions against the converter's evaluation context.
	DecodeBody(ctx context.Context, body hcl.Body, target any) error
}
