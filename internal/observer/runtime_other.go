//go:build !darwin || !cgo

package observer

// SystemRuntime returns the platform observer runtime. Only darwin has
// one.
func SystemRuntime() (Runtime, error) {
	return nil, ErrRunLoopUnavailable
}
