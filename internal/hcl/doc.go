// Package hcl provides the HCL implementation of the config.Loader and
// config.Converter interfaces. It parses taskfiles, translates `task` blocks
// into the format-agnostic model and decodes action arguments into the input
// structs of registered actions.
//
// Expressions in a taskfile can read the process environment through the
// `env` object (env.HOME) and call a small function library: upper, lower,
// format, join, concat, coalesce and env_or(name, default).
package hcl
