package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/vk/sitepipe/internal/ctxlog"
)

// Converter is the HCL implementation of config.Converter.
type Converter struct {
	evalCtx *hcl.EvalContext
}

// NewConverter creates a converter that evaluates expressions in evalCtx.
func NewConverter(evalCtx *hcl.EvalContext) *Converter {
	return &Converter{evalCtx: evalCtx}
}

// DecodeBody implements config.Converter using gohcl struct tags.
func (c *Converter) DecodeBody(ctx context.Context, body hcl.Body, target any) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding action body.", "target", fmt.Sprintf("%T", target))

	if diags := gohcl.DecodeBody(body, c.evalCtx, target); diags.HasErrors() {
		return fmt.Errorf("invalid action arguments: %w", diags)
	}
	return nil
}
