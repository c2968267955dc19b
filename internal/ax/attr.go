package ax

// ValueKind tags the decoded variant of an attribute value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindBool
	KindNumber
	KindPoint
	KindSize
	KindRect
	KindElement
	KindElements
)

// Value is one decoded attribute value. Exactly one field matching Kind
// is populated. Element and Elements carry owned handles; the caller is
// responsible for releasing them.
type Value struct {
	Kind     ValueKind
	Str      string
	Bool     bool
	Num      float64
	Point    Point
	Size     Size
	Rect     Rect
	Element  *Handle
	Elements []*Handle
}

// ReleaseOwned releases any handles the value carries. Safe to call on
// scalar variants.
func (v *Value) ReleaseOwned() {
	if v.Element != nil {
		v.Element.Release()
		v.Element = nil
	}
	ReleaseAll(v.Elements)
	v.Elements = nil
}

// GetAttribute performs one foreign copy-attribute call and decodes the
// result. Decode precedence is fixed: string, boolean, number, point,
// size, rect, element, array-of-elements; the first matching type wins.
//
// Error taxonomy: ErrAPIDisabled propagates distinctly (the trust gate
// must be consulted); every other failure, sentinel or unclassified
// foreign code alike, is an absence that callers absorb without
// aborting traversal.
func GetAttribute(b Backend, element Ref, name string) (Value, error) {
	return getAttribute(b, element, name, 0)
}

// getAttribute is GetAttribute with a fan-out bound: for array values, at
// most maxElements members are inspected and adopted (0 means all). The
// bound must be applied before adoption; retaining an unbounded array
// first would let a pathological node cost a foreign retain per member.
func getAttribute(b Backend, element Ref, name string, maxElements int) (Value, error) {
	raw, code := b.CopyAttribute(element, name)
	if err := Classify(code, "copy attribute "+name); err != nil {
		return Value{}, err
	}
	owned, err := Adopt(b, raw)
	if err != nil {
		return Value{}, err
	}
	defer owned.Release()

	ref := owned.Ref()
	if s, ok := b.String(ref); ok {
		return Value{Kind: KindString, Str: s}, nil
	}
	if v, ok := b.Bool(ref); ok {
		return Value{Kind: KindBool, Bool: v}, nil
	}
	if n, ok := b.Number(ref); ok {
		return Value{Kind: KindNumber, Num: n}, nil
	}
	if p, ok := b.Point(ref); ok {
		return Value{Kind: KindPoint, Point: p}, nil
	}
	if s, ok := b.Size(ref); ok {
		return Value{Kind: KindSize, Size: s}, nil
	}
	if r, ok := b.Rect(ref); ok {
		return Value{Kind: KindRect, Rect: r}, nil
	}
	if b.IsElement(ref) {
		// The deferred release drops the container's retain; the result
		// needs its own.
		el, err := RetainBorrowed(b, ref)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindElement, Element: el}, nil
	}
	if n := b.ArrayLen(ref); n >= 0 {
		if maxElements > 0 && n > maxElements {
			n = maxElements
		}
		els, err := adoptElements(b, ref, n)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindElements, Elements: els}, nil
	}
	return Value{}, ErrUnexpectedType
}

// adoptElements upgrades the first n members of a borrowed foreign array
// into owned handles. Non-element members are skipped but still count
// against n. On error the partial result is unwound.
func adoptElements(b Backend, array Ref, n int) ([]*Handle, error) {
	els := make([]*Handle, 0, n)
	for i := 0; i < n; i++ {
		member, ok := b.ArrayAt(array, i)
		if !ok || member == NilRef {
			continue
		}
		if !b.IsElement(member) {
			continue
		}
		h, err := RetainBorrowed(b, member)
		if err != nil {
			ReleaseAll(els)
			return nil, err
		}
		els = append(els, h)
	}
	return els, nil
}

// StringAttr fetches a string attribute. Absences collapse to ("", false);
// ErrAPIDisabled still propagates.
func StringAttr(b Backend, element Ref, name string) (string, bool, error) {
	v, err := GetAttribute(b, element, name)
	if err != nil {
		if IsAbsence(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if v.Kind != KindString {
		v.ReleaseOwned()
		return "", false, nil
	}
	return v.Str, true, nil
}

// BoolAttr fetches a boolean attribute with the same absence collapsing
// as StringAttr.
func BoolAttr(b Backend, element Ref, name string) (bool, bool, error) {
	v, err := GetAttribute(b, element, name)
	if err != nil {
		if IsAbsence(err) {
			return false, false, nil
		}
		return false, false, err
	}
	if v.Kind != KindBool {
		v.ReleaseOwned()
		return false, false, nil
	}
	return v.Bool, true, nil
}

// ElementAttr fetches a nested element attribute as an owned handle.
// Returns (nil, nil) on absence.
func ElementAttr(b Backend, element Ref, name string) (*Handle, error) {
	v, err := GetAttribute(b, element, name)
	if err != nil {
		if IsAbsence(err) {
			return nil, nil
		}
		return nil, err
	}
	if v.Kind != KindElement {
		v.ReleaseOwned()
		return nil, nil
	}
	return v.Element, nil
}

// ElementsAttr fetches an array-of-elements attribute as owned handles.
// Only the first max members are ever inspected or adopted (0 means all).
// Returns (nil, nil) on absence.
func ElementsAttr(b Backend, element Ref, name string, max int) ([]*Handle, error) {
	v, err := getAttribute(b, element, name, max)
	if err != nil {
		if IsAbsence(err) {
			return nil, nil
		}
		return nil, err
	}
	if v.Kind != KindElements {
		v.ReleaseOwned()
		return nil, nil
	}
	return v.Elements, nil
}
