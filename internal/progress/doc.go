// Package progress reports parse-session progress without slowing the parse.
// An Observer turns saxstream session callbacks into Events, and the Hub
// batches them on a background goroutine before fanning them out to sinks
// such as structured logs, Prometheus collectors, or stored session reports.
package progress
