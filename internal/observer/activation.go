package observer

import (
	"context"
	"sync"
	"time"
)

// Activation announces that a process moved to the foreground.
type Activation struct {
	PID      int32
	BundleID string
	Name     string
	At       time.Time
}

// ActivationSource produces the stream of foreground-process changes that
// drives observer rebinding. Implementations must emit only on actual
// changes, never repeat the current frontmost process.
type ActivationSource interface {
	// Start begins producing activations until ctx is cancelled.
	Start(ctx context.Context) error

	// Events returns the activation stream.
	Events() <-chan Activation
}

// SimulatedActivations is an ActivationSource driven by tests.
type SimulatedActivations struct {
	mu      sync.Mutex
	ch      chan Activation
	started bool
}

// NewSimulatedActivations creates an idle simulated source.
func NewSimulatedActivations() *SimulatedActivations {
	return &SimulatedActivations{ch: make(chan Activation, 16)}
}

// Start marks the source running.
func (s *SimulatedActivations) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

// Events returns the activation stream.
func (s *SimulatedActivations) Events() <-chan Activation {
	return s.ch
}

// Activate injects one foreground switch.
func (s *SimulatedActivations) Activate(pid int32, bundleID, name string) {
	s.ch <- Activation{PID: pid, BundleID: bundleID, Name: name, At: time.Now()}
}

var _ ActivationSource = (*SimulatedActivations)(nil)
