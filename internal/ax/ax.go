// Package ax wraps the macOS accessibility object model behind an
// ownership-safe, testable API.
//
// The accessibility subsystem hands out Core Foundation values that are
// reference counted outside Go's memory management. Every live value this
// package returns is tracked by a Handle that owns exactly one foreign
// retain and releases it exactly once. The foreign call surface itself is
// abstracted behind the Backend interface so the attribute accessor and
// the tree walker can be exercised against a simulated backend that counts
// retains and releases.
//
// IMPORTANT: This package reads UI metadata (titles, roles, URLs) - it does
// NOT capture screen contents or inject events. Extraction is best-effort:
// a missing attribute is an absence, not an error.
package ax

import (
	"errors"
	"fmt"
)

// Well-known accessibility attribute names.
const (
	AttrRole             = "AXRole"
	AttrTitle            = "AXTitle"
	AttrChildren         = "AXChildren"
	AttrSelected         = "AXSelected"
	AttrValue            = "AXValue"
	AttrURL              = "AXURL"
	AttrDocument         = "AXDocument"
	AttrSelectedText     = "AXSelectedText"
	AttrFocusedWindow    = "AXFocusedWindow"
	AttrFocusedUIElement = "AXFocusedUIElement"
	AttrPosition         = "AXPosition"
	AttrSize             = "AXSize"
	AttrFrame            = "AXFrame"
)

// Well-known accessibility role names.
const (
	RoleWindow    = "AXWindow"
	RoleTabGroup  = "AXTabGroup"
	RoleRadioButton = "AXRadioButton"
	RoleTextField = "AXTextField"
	RoleWebArea   = "AXWebArea"
)

// Code is a raw foreign error code from an accessibility call.
// The values mirror the AXError constants.
type Code int32

const (
	CodeSuccess                Code = 0
	CodeFailure                Code = -25200
	CodeIllegalArgument        Code = -25201
	CodeInvalidElement         Code = -25202
	CodeInvalidObserver        Code = -25203
	CodeCannotComplete         Code = -25204
	CodeAttributeUnsupported   Code = -25205
	CodeActionUnsupported      Code = -25206
	CodeNotificationUnsupported Code = -25207
	CodeNotImplemented         Code = -25208
	CodeAlreadyRegistered      Code = -25209
	CodeNotRegistered          Code = -25210
	CodeAPIDisabled            Code = -25211
	CodeNoValue                Code = -25212
	CodeParameterizedAttributeUnsupported Code = -25213
	CodeNotEnoughPrecision     Code = -25214
)

// Sentinel errors for attribute access. Only ErrAPIDisabled requires a
// caller decision (consult the trust gate); everything else is treated as
// attribute absence by traversal code.
var (
	// ErrNullResult is returned when a copy-rule call reports success but
	// hands back a null reference.
	ErrNullResult = errors.New("ax: foreign call returned null")

	// ErrNoAttribute means the element does not expose the attribute.
	ErrNoAttribute = errors.New("ax: attribute not present")

	// ErrInvalidElement means the element reference went stale, typically
	// because the window or process it belonged to is gone.
	ErrInvalidElement = errors.New("ax: invalid element")

	// ErrAPIDisabled means the process is not trusted for accessibility
	// introspection. Callers degrade to app-identity-only tracking.
	ErrAPIDisabled = errors.New("ax: accessibility API disabled")

	// ErrUnexpectedType means the returned value matched none of the
	// decodable foreign types.
	ErrUnexpectedType = errors.New("ax: unexpected value type")

	// ErrNotAvailable is returned by the system backend on platforms
	// without an accessibility runtime.
	ErrNotAvailable = errors.New("ax: accessibility runtime not available on this platform")
)

// CodeError wraps an unclassified foreign error code.
type CodeError struct {
	Code Code
	Op   string
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("ax: %s failed with code %d", e.Op, e.Code)
}

// Classify maps a foreign code onto the package error taxonomy.
// CodeSuccess maps to nil. Callers holding a raw code must map it here
// rather than wrap it themselves, or a disabled-API code would hide
// inside an unclassified error.
func Classify(code Code, op string) error {
	switch code {
	case CodeSuccess:
		return nil
	case CodeAPIDisabled:
		return ErrAPIDisabled
	case CodeInvalidElement:
		return ErrInvalidElement
	case CodeNoValue, CodeAttributeUnsupported:
		return ErrNoAttribute
	default:
		return &CodeError{Code: code, Op: op}
	}
}

// IsAbsence reports whether err represents normal absence of data rather
// than a condition the caller must act on. Traversal treats absences as
// "this branch yields nothing". Every failure mode except a disabled API
// is an absence: unclassified foreign codes included, since a flaky
// element must prune its own branch, not abort the search around it.
func IsAbsence(err error) bool {
	if err == nil || errors.Is(err, ErrAPIDisabled) {
		return false
	}
	var ce *CodeError
	return errors.Is(err, ErrNoAttribute) ||
		errors.Is(err, ErrInvalidElement) ||
		errors.Is(err, ErrNullResult) ||
		errors.Is(err, ErrUnexpectedType) ||
		errors.As(err, &ce)
}
