// Package trust gates accessibility introspection behind the OS
// permission check.
//
// An untrusted process is not an error condition: the tracker degrades to
// app-identity-only mode (no window, tab, or attribute extraction) and
// keeps running. The denial is reported once, not on every event.
package trust

import "sync"

// Level is the authorization state for accessibility introspection.
type Level int

const (
	Untrusted Level = iota
	Trusted
)

func (l Level) String() string {
	if l == Trusted {
		return "trusted"
	}
	return "untrusted"
}

// Gate checks whether the process may introspect other processes' UI.
type Gate interface {
	// Check returns the current trust level. When prompt is true and the
	// process is untrusted, the one-time OS permission prompt is
	// triggered before re-checking. Check never blocks indefinitely.
	Check(prompt bool) Level
}

// System returns the platform trust gate. On platforms without an
// accessibility permission model the gate always reports Untrusted.
func System() Gate {
	return systemGate{}
}

// Simulated is a Gate for tests.
type Simulated struct {
	mu       sync.Mutex
	level    Level
	prompted bool
	// GrantOnPrompt flips the level to Trusted when a prompt occurs,
	// modelling the user approving the dialog.
	GrantOnPrompt bool
}

// NewSimulated creates a gate fixed at the given level.
func NewSimulated(level Level) *Simulated {
	return &Simulated{level: level}
}

// Check implements Gate.
func (s *Simulated) Check(prompt bool) Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.level == Trusted {
		return Trusted
	}
	if prompt {
		s.prompted = true
		if s.GrantOnPrompt {
			s.level = Trusted
		}
	}
	return s.level
}

// SetLevel changes the simulated level, modelling a permission grant or
// revocation mid-session.
func (s *Simulated) SetLevel(level Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = level
}

// Prompted reports whether a prompt was requested.
func (s *Simulated) Prompted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompted
}

var _ Gate = (*Simulated)(nil)
