// Package harness runs scripted conformance scenarios against the
// inventory engine.
//
// A scenario scripts a fake subsystem (handles, status sequence, records,
// failures), drives the engine through a list of steps, and checks each
// step's expected outcome. Assertions then inspect the recorded subsystem
// call log, the handles left outstanding, and the virtual time spent
// polling.
//
// Every run is deterministic: polling sleeps advance a virtual clock and
// request ids come from a fixed generator, so the call log can be
// compared against golden files:
//
//	go test ./internal/harness -update
//
// regenerates testdata/golden.
package harness
