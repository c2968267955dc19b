//go:build !darwin || !cgo

package clipboard

// SystemPasteboard returns an inert pasteboard on platforms without one;
// the detector then never reports a change.
func SystemPasteboard() Pasteboard {
	return nullPasteboard{}
}

type nullPasteboard struct{}

func (nullPasteboard) ChangeCount() int64          { return 0 }
func (nullPasteboard) Read(Format) ([]byte, bool)  { return nil, false }
