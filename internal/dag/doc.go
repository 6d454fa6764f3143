// Package dag models the task dependency graph: named tasks with integer
// durations and prerequisite sets, validation with cycle detection, and the
// critical-path runtime estimate.
//
// A Graph is built once (normally by the taskfile parser), validated with
// Validate, and treated as immutable afterwards. Validate produces the
// derived structures every downstream consumer needs: a topological order,
// the dependency → dependents adjacency list, and the per-task in-degree
// count. Those are caches over the graph, rebuilt on every call, never
// mutated in place across runs.
package dag
