package ax

// Ref is an opaque reference to one foreign object. A bare Ref carries no
// ownership: it is either borrowed (valid only for the duration of the
// enclosing call) or has just been handed over by a copy-rule call and
// must be adopted into a Handle immediately. Never store a bare Ref.
type Ref uintptr

// NilRef is the null foreign reference.
const NilRef Ref = 0

// TypeID tags the foreign runtime type of a value. Decoding a value always
// checks the tag first; a mismatch yields no value, never a reinterpreted
// one.
type TypeID int

const (
	TypeUnknown TypeID = iota
	TypeString
	TypeBoolean
	TypeNumber
	TypePoint
	TypeSize
	TypeRect
	TypeElement
	TypeArray
)

func (t TypeID) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypePoint:
		return "point"
	case TypeSize:
		return "size"
	case TypeRect:
		return "rect"
	case TypeElement:
		return "element"
	case TypeArray:
		return "array"
	default:
		return "unknown"
	}
}

// Point is a decoded foreign point value.
type Point struct{ X, Y float64 }

// Size is a decoded foreign size value.
type Size struct{ W, H float64 }

// Rect is a decoded foreign rectangle value.
type Rect struct{ X, Y, W, H float64 }

// Backend is the foreign call surface for one accessibility runtime.
//
// Ownership contract: CopyAttribute and AppElement follow the copy rule
// (on success the caller owns one retain and must adopt the result).
// ArrayAt follows the get rule (the returned Ref is borrowed from the
// array and must be upgraded via RetainBorrowed before the array is
// released). Retain and Release adjust the foreign retain count by
// exactly one.
//
// Implementations: the cgo-backed system backend on darwin, and
// Simulated for tests.
type Backend interface {
	// Retain increments the foreign retain count and returns the ref.
	Retain(ref Ref) Ref

	// Release decrements the foreign retain count.
	Release(ref Ref)

	// TypeOf returns the runtime type tag for a foreign value.
	TypeOf(ref Ref) TypeID

	// CopyAttribute performs one foreign copy-attribute call against an
	// element. On CodeSuccess the returned ref is owned by the caller.
	CopyAttribute(element Ref, name string) (Ref, Code)

	// String decodes a foreign string. ok is false on type mismatch.
	String(ref Ref) (string, bool)

	// Bool decodes a foreign boolean. ok is false on type mismatch.
	Bool(ref Ref) (bool, bool)

	// Number decodes a foreign number. ok is false on type mismatch.
	Number(ref Ref) (float64, bool)

	// Point, Size and Rect decode packed geometry values.
	Point(ref Ref) (Point, bool)
	Size(ref Ref) (Size, bool)
	Rect(ref Ref) (Rect, bool)

	// IsElement reports whether ref is a UI element reference.
	IsElement(ref Ref) bool

	// ArrayLen returns the element count of a foreign array, or -1 if
	// ref is not an array.
	ArrayLen(ref Ref) int

	// ArrayAt returns the borrowed value at index i. ok is false when
	// ref is not an array or i is out of range.
	ArrayAt(ref Ref, i int) (Ref, bool)

	// AppElement creates the application root element for a process.
	// Copy rule: the caller owns the result.
	AppElement(pid int32) (Ref, Code)

	// PID returns the process an element belongs to.
	PID(element Ref) (int32, bool)
}
