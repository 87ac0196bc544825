// Package sinks implements concrete progress consumers: structured logging,
// Prometheus collectors, per-session reports written to a blob store and
// session history rows in a database. Each sink satisfies the progress.Sink
// interface and is safe for repeated Consume/Close cycles.
package sinks
