// Package pipeline schedules the build's named stages and moves file records
// between them.
//
// A Registry holds the ordered stage list. Stages are appended with Register
// or spliced next to an existing stage with Before and After; the position is
// resolved once, when the call is made. A Runner invokes the handlers one at a
// time, each receiving the stream the previous stage returned. Per-file work
// started with Map runs in goroutines owned by the build's errgroup, so
// adjacent streaming stages overlap file by file while a stage that calls
// Collect blocks until everything upstream has been produced.
package pipeline
