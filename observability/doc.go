// Package observability provides an extension that records workflow
// lifecycle metrics via OpenTelemetry. Register it with the engine to
// automatically track definition saves, instance starts, stage
// advances, and completion durations.
//
// Transition-level timing is covered by middleware.Metrics; this
// extension covers the coarser lifecycle counters that middleware
// cannot see (definition events, instance starts).
package observability
