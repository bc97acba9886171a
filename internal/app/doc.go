// Package app wires a loaded taskfile to the action handlers, the task
// registry and the executor, and drives one invocation: list, plan or run.
// It is independent of the CLI that constructs it.
package app
