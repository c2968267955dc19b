//go:build !darwin || !cgo

package observer

import "time"

// NewWorkspaceSource returns a source that never emits; foreground
// tracking is darwin-only. Kept so the engine wires identically on every
// platform.
func NewWorkspaceSource(interval time.Duration) ActivationSource {
	return NewSimulatedActivations()
}
