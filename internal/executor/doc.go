// Package executor runs a validated task graph under a bounded concurrency
// budget, honoring dependency order.
//
// The Engine is the single owner of the scheduling state (in-degree counts
// and the skip set). Workers never touch that state; they only report
// completion events back over the pool's completion channel. Two Pool
// implementations share the identical eligibility algorithm and differ only
// in isolation: GoroutinePool executes simulated work on worker goroutines in
// this process, ProcessPool spawns one isolated worker subprocess per task
// and reads completion from its stdout pipe.
package executor
