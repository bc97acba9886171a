// Package dag turns a requested task name into an execution plan and runs it.
//
// Build walks the composition tree of a task out of the registry, depth
// first, and stores each distinct task once in an arena of nodes; children are
// referenced by index. Unknown references and cycles are rejected here, before
// anything runs.
//
// The Executor walks a plan from its root:
//
//   - a leaf runs its action;
//   - a series runs children in order and returns the first failure as is;
//   - a parallel group starts every child, waits for all of them, and fails
//     with a CompositeFailure holding every child failure.
//
// A plan is immutable, so the same plan (or several plans for the same task)
// can be executed concurrently. The executor does not deduplicate overlapping
// runs of a task.
package dag
