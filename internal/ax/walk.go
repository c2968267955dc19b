package ax

// Traversal bounds. The accessibility tree is untrusted input: apps can
// expose thousands of children per node, and cycles through parent links
// are assumed possible even though the OS does not document them. Both
// bounds are hard termination guards, not tuning knobs.
const (
	DefaultMaxDepth    = 20
	DefaultMaxChildren = 100
)

// RolePredicate decides whether an element's role matches the search.
type RolePredicate func(role string) bool

// RoleIs returns a predicate matching one exact role name.
func RoleIs(role string) RolePredicate {
	return func(r string) bool { return r == role }
}

// FindFirst walks the element tree depth-first from root and returns an
// owned handle to the first element whose role satisfies pred, or nil if
// none is found within the depth and fan-out bounds.
//
// The search short-circuits on the first match. Any attribute failure
// along the way prunes that branch and never aborts the overall search;
// the sole exception is ErrAPIDisabled, which surfaces so the caller can
// consult the trust gate.
func FindFirst(b Backend, root Ref, pred RolePredicate, maxDepth, maxChildren int) (*Handle, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxChildren <= 0 {
		maxChildren = DefaultMaxChildren
	}
	return findFirst(b, root, pred, maxDepth, maxChildren)
}

func findFirst(b Backend, el Ref, pred RolePredicate, depth, maxChildren int) (*Handle, error) {
	if depth == 0 {
		return nil, nil
	}

	role, ok, err := StringAttr(b, el, AttrRole)
	if err != nil {
		return nil, err
	}
	if ok && pred(role) {
		return RetainBorrowed(b, el)
	}

	children, err := ElementsAttr(b, el, AttrChildren, maxChildren)
	if err != nil {
		return nil, err
	}
	defer ReleaseAll(children)

	for _, child := range children {
		found, err := findFirst(b, child.Ref(), pred, depth-1, maxChildren)
		if err != nil {
			return nil, err
		}
		if found != nil {
			return found, nil
		}
	}
	return nil, nil
}

// FindSelectedChild iterates a group's children (bounded) and returns the
// title of the first child whose AXSelected attribute is true and whose
// title is non-empty. Returns ("", false) when no child qualifies; the
// caller falls back to the window title.
func FindSelectedChild(b Backend, group Ref, maxChildren int) (string, bool, error) {
	if maxChildren <= 0 {
		maxChildren = DefaultMaxChildren
	}
	children, err := ElementsAttr(b, group, AttrChildren, maxChildren)
	if err != nil {
		return "", false, err
	}
	defer ReleaseAll(children)

	for _, child := range children {
		selected, ok, err := BoolAttr(b, child.Ref(), AttrSelected)
		if err != nil {
			return "", false, err
		}
		if !ok || !selected {
			continue
		}
		title, ok, err := StringAttr(b, child.Ref(), AttrTitle)
		if err != nil {
			return "", false, err
		}
		if ok && title != "" {
			return title, true, nil
		}
	}
	return "", false, nil
}
