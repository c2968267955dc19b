//go:build !darwin || !cgo

package ax

// SystemBackend returns the accessibility backend for this platform.
// Only darwin has one; everywhere else callers run against the Simulated
// backend or degrade to app-identity-only tracking.
func SystemBackend() (Backend, error) {
	return nil, ErrNotAvailable
}
