// Package observability provides structured logging, Prometheus metrics,
// and context propagation helpers for the evidence aggregation service.
package observability
