package ax

import (
	"fmt"
	"sync"
)

// Simulated is an in-memory Backend for testing. It models the foreign
// retain count per object and keeps global retain/release tallies so
// tests can assert the ownership balance property: after every handle is
// released, Outstanding() must be zero.
//
// Fixture objects created through the New* methods are owned by the
// backend itself and do not count against the balance; only retains
// handed to callers (CopyAttribute results, Retain calls) do.
type Simulated struct {
	mu sync.Mutex

	nextRef Ref
	objects map[Ref]*simObject

	// Caller-owned retains per ref, and lifetime totals.
	owned        map[Ref]int
	retainTotal  int
	releaseTotal int

	// Foreign call counters.
	copyCalls map[string]int
}

type simObject struct {
	typ  TypeID
	str  string
	b    bool
	num  float64
	pt   Point
	sz   Size
	rect Rect

	// Array members (borrowed by ArrayAt).
	members []Ref

	// Element attributes: name -> prebuilt value ref, or a forced code.
	attrs map[string]Ref
	fail  map[string]Code
	pid   int32
}

// NewSimulated creates an empty simulated backend.
func NewSimulated() *Simulated {
	return &Simulated{
		nextRef:   1,
		objects:   make(map[Ref]*simObject),
		owned:     make(map[Ref]int),
		copyCalls: make(map[string]int),
	}
}

func (s *Simulated) alloc(o *simObject) Ref {
	ref := s.nextRef
	s.nextRef++
	s.objects[ref] = o
	return ref
}

// NewString creates a fixture string value.
func (s *Simulated) NewString(v string) Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc(&simObject{typ: TypeString, str: v})
}

// NewBool creates a fixture boolean value.
func (s *Simulated) NewBool(v bool) Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc(&simObject{typ: TypeBoolean, b: v})
}

// NewNumber creates a fixture number value.
func (s *Simulated) NewNumber(v float64) Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc(&simObject{typ: TypeNumber, num: v})
}

// NewPoint creates a fixture point value.
func (s *Simulated) NewPoint(p Point) Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc(&simObject{typ: TypePoint, pt: p})
}

// NewArray creates a fixture array value over the given members.
func (s *Simulated) NewArray(members ...Ref) Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc(&simObject{typ: TypeArray, members: members})
}

// NewElement creates a fixture UI element with no attributes.
func (s *Simulated) NewElement() Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc(&simObject{
		typ:   TypeElement,
		attrs: make(map[string]Ref),
		fail:  make(map[string]Code),
	})
}

// SetAttr binds an element attribute to a prebuilt value ref.
func (s *Simulated) SetAttr(element Ref, name string, value Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[element].attrs[name] = value
}

// SetStringAttr is a convenience wrapper binding a string attribute.
func (s *Simulated) SetStringAttr(element Ref, name, v string) {
	s.SetAttr(element, name, s.NewString(v))
}

// SetChildren binds an element's AXChildren to the given elements.
func (s *Simulated) SetChildren(element Ref, children ...Ref) {
	s.SetAttr(element, AttrChildren, s.NewArray(children...))
}

// FailAttr forces CopyAttribute on (element, name) to return code.
func (s *Simulated) FailAttr(element Ref, name string, code Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[element].fail[name] = code
}

// SetPID sets the owning process of an element.
func (s *Simulated) SetPID(element Ref, pid int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[element].pid = pid
}

// RegisterApp makes AppElement(pid) return a retained copy of element.
func (s *Simulated) RegisterApp(pid int32, element Ref) {
	s.SetPID(element, pid)
}

// Backend implementation.

func (s *Simulated) Retain(ref Ref) Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[ref]; !ok {
		panic(fmt.Sprintf("ax: retain of unknown ref %d", ref))
	}
	s.owned[ref]++
	s.retainTotal++
	return ref
}

func (s *Simulated) Release(ref Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owned[ref] <= 0 {
		panic(fmt.Sprintf("ax: over-release of ref %d", ref))
	}
	s.owned[ref]--
	if s.owned[ref] == 0 {
		delete(s.owned, ref)
	}
	s.releaseTotal++
}

func (s *Simulated) TypeOf(ref Ref) TypeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[ref]
	if !ok {
		return TypeUnknown
	}
	return o.typ
}

func (s *Simulated) CopyAttribute(element Ref, name string) (Ref, Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.copyCalls[name]++
	o, ok := s.objects[element]
	if !ok || o.typ != TypeElement {
		return NilRef, CodeInvalidElement
	}
	if code, forced := o.fail[name]; forced {
		return NilRef, code
	}
	value, ok := o.attrs[name]
	if !ok {
		return NilRef, CodeAttributeUnsupported
	}
	// Copy rule: the caller owns one retain on the result.
	s.owned[value]++
	s.retainTotal++
	return value, CodeSuccess
}

func (s *Simulated) String(ref Ref) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[ref]
	if !ok || o.typ != TypeString {
		return "", false
	}
	return o.str, true
}

func (s *Simulated) Bool(ref Ref) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[ref]
	if !ok || o.typ != TypeBoolean {
		return false, false
	}
	return o.b, true
}

func (s *Simulated) Number(ref Ref) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[ref]
	if !ok || o.typ != TypeNumber {
		return 0, false
	}
	return o.num, true
}

func (s *Simulated) Point(ref Ref) (Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[ref]
	if !ok || o.typ != TypePoint {
		return Point{}, false
	}
	return o.pt, true
}

func (s *Simulated) Size(ref Ref) (Size, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[ref]
	if !ok || o.typ != TypeSize {
		return Size{}, false
	}
	return o.sz, true
}

func (s *Simulated) Rect(ref Ref) (Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[ref]
	if !ok || o.typ != TypeRect {
		return Rect{}, false
	}
	return o.rect, true
}

func (s *Simulated) IsElement(ref Ref) bool {
	return s.TypeOf(ref) == TypeElement
}

func (s *Simulated) ArrayLen(ref Ref) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[ref]
	if !ok || o.typ != TypeArray {
		return -1
	}
	return len(o.members)
}

func (s *Simulated) ArrayAt(ref Ref, i int) (Ref, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[ref]
	if !ok || o.typ != TypeArray || i < 0 || i >= len(o.members) {
		return NilRef, false
	}
	return o.members[i], true
}

func (s *Simulated) AppElement(pid int32) (Ref, Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ref, o := range s.objects {
		if o.typ == TypeElement && o.pid == pid {
			s.owned[ref]++
			s.retainTotal++
			return ref, CodeSuccess
		}
	}
	return NilRef, CodeInvalidElement
}

func (s *Simulated) PID(element Ref) (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[element]
	if !ok || o.typ != TypeElement {
		return 0, false
	}
	return o.pid, true
}

// Inspection helpers for tests.

// Outstanding returns the number of caller-owned retains still live.
func (s *Simulated) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.owned {
		n += c
	}
	return n
}

// Balance returns lifetime (retains, releases). Retains include copy-rule
// results; the two must be equal once every handle is released.
func (s *Simulated) Balance() (retains, releases int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retainTotal, s.releaseTotal
}

// CopyCalls returns how many copy-attribute calls were issued for name.
func (s *Simulated) CopyCalls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyCalls[name]
}

// TotalCopyCalls returns the total number of copy-attribute calls.
func (s *Simulated) TotalCopyCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.copyCalls {
		n += c
	}
	return n
}

var _ Backend = (*Simulated)(nil)
