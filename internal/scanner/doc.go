// Package scanner drives the scan side of the pipeline.
//
// A [Sampler] draws random IPv4 addresses from a configured range and a
// [Pool] probes them concurrently, emitting each [probe.Result] as soon as
// its task completes. The pool bounds the number of in-flight probes with a
// weighted semaphore, isolates per-task failures (errors and panics are
// logged, counted and dropped) and only halts on a pool-level failure.
//
// Results are delivered unordered on [Pool.Results]; the single consumer of
// that channel is the aggregator.
package scanner
