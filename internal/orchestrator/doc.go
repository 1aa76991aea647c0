// Package orchestrator implements the fan-out/fan-in core of the
// property analysis service.
//
// The Dispatcher accepts one external request, assigns a correlation
// id, asks the selector which specialist workers the request concerns,
// persists a pending record, and fans the request out over the
// transport. Worker replies come back asynchronously and in any order;
// the Engine merges each one into the pending record under a lock
// scoped to its correlation id, and the reply that achieves full
// coverage triggers the single terminal transition to Completed. The
// Sweeper periodically force-completes requests whose deadline expired,
// delivering whatever partial results were received and transitioning
// them to TimedOut.
//
// The per-correlation-id lock table is the only concurrency control:
// operations on different ids never block one another, and the
// check-then-transition on status under the lock guarantees each
// request reaches exactly one terminal state, regardless of how replies
// interleave with each other or with the sweep.
package orchestrator
