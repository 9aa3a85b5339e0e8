// Package health provides composable health check probes and HTTP handlers
// for liveness and readiness endpoints.
//
// Probes can be combined with [All] (AND), [Any] (OR), and [Fixed] (static).
// [CheckFunc] adapts a plain function into a [Probe]; the upload store's
// write check is wired in that way. [Timeout] bounds a probe that touches
// the filesystem.
//
// [ShutdownGate] coordinates graceful shutdown: once set, readiness probes
// fail immediately so load balancers stop sending traffic before in-flight
// requests are drained.
package health
