// Package harness runs YAML scenarios against a fresh registry and compares
// the resulting trace with golden files.
//
// A scenario is a list of operations (initialize, create, update) with their
// expected outcome, followed by assertions over the final state and the event
// log. Owners are named by alias; each alias maps to a fixed ed25519 key so
// traces are byte-identical across runs.
//
// Golden files live in testdata/golden and are regenerated with:
//
//	go test ./internal/harness -update
package harness
