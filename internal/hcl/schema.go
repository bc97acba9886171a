package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes the top-level blocks of a taskfile.
type fileRoot struct {
	Tasks []*taskBlock `hcl:"task,block"`
}

// taskBlock is the HCL shape of `task "<name>" { ... }`.
type taskBlock struct {
	Name        string         `hcl:"name,label"`
	Description *string        `hcl:"description,optional"`
	Series      []string       `hcl:"series,optional"`
	Parallel    []string       `hcl:"parallel,optional"`
	Actions     []*actionBlock `hcl:"action,block"`
}

// actionBlock is the HCL shape of `action "<kind>" { ... }`.
type actionBlock struct {
	Kind string   `hcl:"kind,label"`
	Body hcl.Body `hcl:",remain"`
}
