// Package metrics provides build metrics behind a small Recorder interface.
//
// Components receive a Recorder through their options and default to
// NoopRecorder, so no call site needs a nil check. The Prometheus
// implementation registers its collectors on a caller-supplied registry; the
// CLI writes that registry to a node-exporter textfile after each build.
package metrics
