// Package metrics defines the sinks that observe solver runs. A sink must
// record solve events and may also implement the optional recorder
// interfaces for dataset edits and plan publications. Sinks are built from
// configuration through NewMetricsSink; several configured sinks are
// combined into a MultiSink.
package metrics
