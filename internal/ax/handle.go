package ax

// Handle owns exactly one outstanding foreign retain on one reference.
// Release must be called exactly once; releasing twice is a programmer
// error and panics, because a double release would corrupt the foreign
// retain count for every other holder of the object.
//
// Handles are not safe for concurrent use. The tracker engine serializes
// every foreign operation on a single goroutine, which is the intended
// usage; do not share Handles across goroutines.
type Handle struct {
	ref      Ref
	backend  Backend
	released bool
}

// Adopt wraps a reference obtained from a copy-rule call ("Create"/"Copy"
// family). The caller already owns one retain; Adopt takes it over without
// issuing another. Returns ErrNullResult for a null ref.
func Adopt(b Backend, ref Ref) (*Handle, error) {
	if ref == NilRef {
		return nil, ErrNullResult
	}
	return &Handle{ref: ref, backend: b}, nil
}

// RetainBorrowed upgrades a borrowed reference (get-rule call, callback
// argument, array member) into an owned Handle by issuing one foreign
// retain. Returns ErrNullResult for a null ref.
func RetainBorrowed(b Backend, ref Ref) (*Handle, error) {
	if ref == NilRef {
		return nil, ErrNullResult
	}
	b.Retain(ref)
	return &Handle{ref: ref, backend: b}, nil
}

// Ref borrows the underlying reference. The borrow is valid only while
// the Handle is live; callers must not store it past Release.
func (h *Handle) Ref() Ref {
	if h.released {
		panic("ax: use of released handle")
	}
	return h.ref
}

// Clone produces a second owned Handle for the same object by issuing one
// more foreign retain. This is the only sanctioned way to duplicate
// ownership; copying the struct would alias one retain across two owners.
func (h *Handle) Clone() *Handle {
	if h.released {
		panic("ax: clone of released handle")
	}
	h.backend.Retain(h.ref)
	return &Handle{ref: h.ref, backend: h.backend}
}

// Release returns the Handle's retain to the foreign runtime. Calling
// Release twice panics.
func (h *Handle) Release() {
	if h.released {
		panic("ax: double release of handle")
	}
	h.released = true
	h.backend.Release(h.ref)
}

// ReleaseAll releases every handle in hs, tolerating nil entries. Used on
// error paths where a partially built result must be unwound.
func ReleaseAll(hs []*Handle) {
	for _, h := range hs {
		if h != nil {
			h.Release()
		}
	}
}
