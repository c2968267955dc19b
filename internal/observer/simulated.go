package observer

import (
	"errors"
	"fmt"
	"sync"

	"focusd/internal/ax"
)

// SimulatedRuntime is an in-memory Runtime for tests. It records every
// lifecycle call in order so the unbind-before-rebind property can be
// asserted, and lets tests fire notifications - including against a
// token that has already been released, which is exactly the stale
// callback hazard the manager must survive.
type SimulatedRuntime struct {
	mu sync.Mutex

	nextToken Token
	deliver   map[Token]DeliverFunc
	released  map[Token]bool

	ops []string

	// Forced failures.
	createErr error
	addErr    map[Kind]error
}

// NewSimulatedRuntime creates an empty simulated runtime.
func NewSimulatedRuntime() *SimulatedRuntime {
	return &SimulatedRuntime{
		nextToken: 1,
		deliver:   make(map[Token]DeliverFunc),
		released:  make(map[Token]bool),
		addErr:    make(map[Kind]error),
	}
}

// FailCreate forces Create to fail.
func (r *SimulatedRuntime) FailCreate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createErr = errors.New("observer: simulated create failure")
}

// FailAddNotification forces AddNotification for kind to fail.
func (r *SimulatedRuntime) FailAddNotification(kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addErr[kind] = fmt.Errorf("observer: simulated registration failure for %s", kind)
}

// Ops returns the recorded call sequence.
func (r *SimulatedRuntime) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ops))
	copy(out, r.ops)
	return out
}

// Fire delivers a notification through the token's callback, whether or
// not the token has been released since. Returns false if the token
// never existed.
func (r *SimulatedRuntime) Fire(tok Token, kind Kind, element ax.Ref) bool {
	r.mu.Lock()
	fn, ok := r.deliver[tok]
	r.mu.Unlock()
	if !ok {
		return false
	}
	fn(kind, element)
	return true
}

// LastToken returns the most recently created token.
func (r *SimulatedRuntime) LastToken() Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextToken - 1
}

// Released reports whether the token's observer handle was released.
func (r *SimulatedRuntime) Released(tok Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released[tok]
}

func (r *SimulatedRuntime) record(format string, args ...any) {
	r.ops = append(r.ops, fmt.Sprintf(format, args...))
}

// Runtime implementation.

func (r *SimulatedRuntime) Create(pid int32, deliver DeliverFunc) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return 0, r.createErr
	}
	tok := r.nextToken
	r.nextToken++
	r.deliver[tok] = deliver
	r.record("create pid=%d tok=%d", pid, tok)
	return tok, nil
}

func (r *SimulatedRuntime) AddNotification(tok Token, element ax.Ref, kind Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.addErr[kind]; err != nil {
		return err
	}
	r.record("add_notification tok=%d kind=%s", tok, kind)
	return nil
}

func (r *SimulatedRuntime) RemoveNotification(tok Token, element ax.Ref, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("remove_notification tok=%d kind=%s", tok, kind)
}

func (r *SimulatedRuntime) AddRunLoopSource(tok Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("add_source tok=%d", tok)
}

func (r *SimulatedRuntime) RemoveRunLoopSource(tok Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("remove_source tok=%d", tok)
}

func (r *SimulatedRuntime) Release(tok Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released[tok] = true
	r.record("release tok=%d", tok)
}

var _ Runtime = (*SimulatedRuntime)(nil)
