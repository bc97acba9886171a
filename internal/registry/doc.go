// Package registry holds the named tasks of one sitepipe process.
//
// A task is either a leaf, bound to a concrete action, or a composite that
// runs other tasks by name in sequence or in parallel. The registry is filled
// once at startup from the taskfile and is read-only afterwards; composite
// children are stored as names and only checked when a plan is resolved, so
// tasks may reference siblings declared later in the file.
package registry
