// Package observer manages accessibility notification observers for one
// tracked process at a time.
//
// The foreign observer lifecycle is the most fragile part of focus
// tracking: a callback can fire against an observer that is mid-teardown
// when the frontmost app changes quickly. The manager models this as a
// tagged state machine (unbound, or bound with a generation number) and
// stamps every delivered event with the generation it was registered
// under. Events from a previous generation are dropped before they can
// touch any state.
//
// Teardown ordering is mandatory, not stylistic: notifications are
// removed first, then the run-loop source, then the observer handle is
// released. Reordering any two risks a callback into a half-dead
// observer.
package observer

import (
	"errors"
	"sync/atomic"

	"focusd/internal/ax"
)

// Kind names one accessibility notification.
type Kind string

const (
	FocusedWindowChanged    Kind = "AXFocusedWindowChanged"
	SelectedChildrenChanged Kind = "AXSelectedChildrenChanged"
	TitleChanged            Kind = "AXTitleChanged"
	ValueChanged            Kind = "AXValueChanged"
)

// Token identifies one foreign observer within its Runtime.
type Token uint64

// Event is one notification folded into the internal event type.
// Element, when non-nil, is an owned handle retained on the callback
// thread; the consumer must release it.
type Event struct {
	Kind       Kind
	PID        int32
	Generation uint64
	Element    *ax.Handle
}

// DeliverFunc receives raw notifications from a Runtime. The element ref
// is borrowed for the duration of the call.
type DeliverFunc func(kind Kind, element ax.Ref)

// Runtime is the foreign observer call surface: the cgo AXObserver
// implementation on darwin, SimulatedRuntime in tests.
type Runtime interface {
	// Create creates one foreign observer for pid. deliver may be
	// invoked from the run-loop thread until Release.
	Create(pid int32, deliver DeliverFunc) (Token, error)

	// AddNotification registers the observer for kind on element.
	AddNotification(tok Token, element ax.Ref, kind Kind) error

	// RemoveNotification unregisters kind from element. Best effort;
	// failures during teardown are ignored.
	RemoveNotification(tok Token, element ax.Ref, kind Kind)

	// AddRunLoopSource attaches the observer's source to the run loop.
	AddRunLoopSource(tok Token)

	// RemoveRunLoopSource detaches the observer's source.
	RemoveRunLoopSource(tok Token)

	// Release frees the foreign observer handle.
	Release(tok Token)
}

var (
	// ErrAlreadyBound is returned by Bind when a binding is active.
	// Callers unbind the previous process first.
	ErrAlreadyBound = errors.New("observer: already bound to a process")

	// ErrNotBound is returned by operations that require an active
	// binding.
	ErrNotBound = errors.New("observer: no active binding")

	// ErrRunLoopUnavailable means no observer run loop exists on this
	// platform or it failed to start.
	ErrRunLoopUnavailable = errors.New("observer: run loop not available")
)

// registration pairs an owned element handle with the notification kind
// registered on it.
type registration struct {
	element *ax.Handle
	kind    Kind
}

// binding is the Bound state of the manager.
type binding struct {
	generation uint64
	pid        int32
	token      Token
	app        *ax.Handle

	// Primary registrations on the application root element.
	primary []registration

	// Secondary registration on the focused window's tab group, if one
	// was found. Torn down and rebuilt on every window change.
	tab *registration
}

// Manager owns at most one ObserverBinding. All methods must be called
// from the single engine goroutine; only the Runtime's deliver callback
// runs elsewhere, and it does nothing but retain the element and enqueue.
type Manager struct {
	rt Runtime
	be ax.Backend

	bound      *binding
	generation uint64

	events     chan Event
	staleDrops uint64
	fullDrops  atomic.Uint64
}

// DefaultQueueSize is the callback queue capacity when none is
// configured. Overflow drops the notification (counted in FullDrops);
// the next activation or window change re-resolves the state anyway.
const DefaultQueueSize = 64

// NewManager creates an unbound manager. queueSize <= 0 selects
// DefaultQueueSize.
func NewManager(rt Runtime, be ax.Backend, queueSize int) *Manager {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Manager{
		rt:     rt,
		be:     be,
		events: make(chan Event, queueSize),
	}
}

// Events returns the notification stream. Consumers must call Accept on
// each event before acting on it and release the element either way.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Bound reports whether a binding is active.
func (m *Manager) Bound() bool {
	return m.bound != nil
}

// PID returns the bound process id, or 0 when unbound.
func (m *Manager) PID() int32 {
	if m.bound == nil {
		return 0
	}
	return m.bound.pid
}

// Bind transitions Unbound -> Bound for pid: creates the foreign
// observer, registers the focused-window notification on the application
// root element and attaches the run-loop source. On any failure the
// manager stays Unbound and the process is tracked in degraded mode.
func (m *Manager) Bind(pid int32) error {
	if m.bound != nil {
		return ErrAlreadyBound
	}

	appRef, code := m.be.AppElement(pid)
	if code != ax.CodeSuccess {
		return ax.Classify(code, "create application element")
	}
	app, err := ax.Adopt(m.be, appRef)
	if err != nil {
		return err
	}

	m.generation++
	gen := m.generation

	tok, err := m.rt.Create(pid, func(kind Kind, element ax.Ref) {
		m.enqueue(gen, pid, kind, element)
	})
	if err != nil {
		app.Release()
		return err
	}

	if err := m.rt.AddNotification(tok, app.Ref(), FocusedWindowChanged); err != nil {
		m.rt.Release(tok)
		app.Release()
		return err
	}
	m.rt.AddRunLoopSource(tok)

	m.bound = &binding{
		generation: gen,
		pid:        pid,
		token:      tok,
		app:        app,
		primary: []registration{
			{element: app.Clone(), kind: FocusedWindowChanged},
		},
	}
	return nil
}

// Unbind transitions Bound -> Unbound. The order is a correctness
// invariant: (1) remove every registered notification, (2) remove the
// run-loop source, (3) release the observer handle. The generation bump
// makes any callback still in flight identifiable as stale.
func (m *Manager) Unbind() {
	b := m.bound
	if b == nil {
		return
	}

	// (1) notifications, secondary first.
	if b.tab != nil {
		m.rt.RemoveNotification(b.token, b.tab.element.Ref(), b.tab.kind)
		b.tab.element.Release()
		b.tab = nil
	}
	for _, reg := range b.primary {
		m.rt.RemoveNotification(b.token, reg.element.Ref(), reg.kind)
		reg.element.Release()
	}
	b.primary = nil

	// (2) run-loop source.
	m.rt.RemoveRunLoopSource(b.token)

	// (3) observer handle.
	m.rt.Release(b.token)

	b.app.Release()
	m.bound = nil
	m.generation++
}

// RebindTabObserver replaces the secondary (tab group) registration for a
// newly focused window. The previous registration is always torn down
// first. A window without a tab group is the common case and leaves the
// secondary registration absent; only a failed foreign registration is
// reported.
func (m *Manager) RebindTabObserver(window *ax.Handle, maxDepth, maxChildren int) error {
	b := m.bound
	if b == nil {
		return ErrNotBound
	}

	if b.tab != nil {
		m.rt.RemoveNotification(b.token, b.tab.element.Ref(), b.tab.kind)
		b.tab.element.Release()
		b.tab = nil
	}

	group, err := ax.FindFirst(m.be, window.Ref(), ax.RoleIs(ax.RoleTabGroup), maxDepth, maxChildren)
	if err != nil {
		return err
	}
	if group == nil {
		return nil
	}

	if err := m.rt.AddNotification(b.token, group.Ref(), SelectedChildrenChanged); err != nil {
		group.Release()
		return err
	}
	b.tab = &registration{element: group, kind: SelectedChildrenChanged}
	return nil
}

// HasTabObserver reports whether a secondary registration is active.
func (m *Manager) HasTabObserver() bool {
	return m.bound != nil && m.bound.tab != nil
}

// TabGroup returns the element of the active secondary registration.
// The ref is borrowed from the registration; callers must not release it
// and must not hold it past the next Unbind or RebindTabObserver.
func (m *Manager) TabGroup() (ax.Ref, bool) {
	if m.bound == nil || m.bound.tab == nil {
		return ax.NilRef, false
	}
	return m.bound.tab.element.Ref(), true
}

// Accept reports whether an event belongs to the current binding. Stale
// events (from a generation that has been unbound) are counted and must
// be discarded by the caller.
func (m *Manager) Accept(ev Event) bool {
	if m.bound == nil || ev.Generation != m.bound.generation {
		m.staleDrops++
		return false
	}
	return true
}

// StaleDrops returns how many stale events were rejected.
func (m *Manager) StaleDrops() uint64 {
	return m.staleDrops
}

// enqueue runs on the runtime's callback thread. It retains the borrowed
// element and hands the event to the engine goroutine; it never touches
// binding state, because the binding may be mid-teardown.
func (m *Manager) enqueue(gen uint64, pid int32, kind Kind, element ax.Ref) {
	ev := Event{Kind: kind, PID: pid, Generation: gen}
	if element != ax.NilRef {
		if h, err := ax.RetainBorrowed(m.be, element); err == nil {
			ev.Element = h
		}
	}
	select {
	case m.events <- ev:
	default:
		// Event flood: drop rather than block the run loop.
		if ev.Element != nil {
			ev.Element.Release()
		}
		m.fullDrops.Add(1)
	}
}

// FullDrops returns how many events were dropped because the queue was
// full.
func (m *Manager) FullDrops() uint64 {
	return m.fullDrops.Load()
}
