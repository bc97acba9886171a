// Package config defines the format-agnostic model of a taskfile together
// with the Loader and Converter interfaces that concrete formats implement.
//
// The model keeps action arguments undecoded (as an hcl.Body); each action's
// Go input struct is decoded through the Converter once the registered
// handler for that action kind is known.
package config
