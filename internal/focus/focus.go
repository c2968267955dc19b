// Package focus maintains the single current focus context and reduces
// raw activation, window and tab events into a stream of transition
// records.
//
// There is exactly one live Context at a time. It is replaced wholesale
// on a process switch and field-updated on intra-process changes; every
// meaningful change produces exactly one immutable Transition. Re-applied
// identical state produces nothing: no-op suppression is a hard
// requirement, because notification sources routinely redeliver unchanged
// state.
package focus

import (
	"time"

	"github.com/oklog/ulid/v2"

	"focusd/internal/procinfo"
)

// Context is the current focus snapshot. String fields use the empty
// string for "not resolved"; omitempty keeps the wire form sparse.
type Context struct {
	PID          int32     `json:"pid"`
	BundleID     string    `json:"bundle_id"`
	AppName      string    `json:"app_name"`
	WindowTitle  string    `json:"window_title,omitempty"`
	TabTitle     string    `json:"tab_title,omitempty"`
	URL          string    `json:"url,omitempty"`
	DocumentPath string    `json:"document_path,omitempty"`
	SelectedText string    `json:"selected_text,omitempty"`
	EnteredAt    time.Time `json:"entered_at"`
}

// Empty reports whether the context is the initial unset state.
func (c Context) Empty() bool {
	return c.PID == 0 && c.BundleID == "" && c.AppName == ""
}

// Transition records one meaningful focus change. Immutable once
// created.
type Transition struct {
	ID    string  `json:"id"`
	From  Context `json:"from"`
	To    Context `json:"to"`
	Dwell time.Duration `json:"-"`

	// DwellMs mirrors Dwell for the wire form.
	DwellMs int64 `json:"dwell_ms"`

	// Net carries optional socket enrichment for the activated process.
	Net []procinfo.Connection `json:"net,omitempty"`
}

// Details are the app-specific resolved fields that ride along with a
// window change.
type Details struct {
	URL          string
	DocumentPath string
	SelectedText string
}

// Reconciler folds events into the current Context. It is not safe for
// concurrent use; the engine calls it from its single goroutine only.
type Reconciler struct {
	cur Context

	// Set once the first activation has been seen; suppresses a
	// spurious startup record.
	started bool

	// When the current window/tab value was established; field-level
	// dwell is measured from these, not from process activation.
	windowSince time.Time
	tabSince    time.Time

	now func() time.Time
}

// NewReconciler creates a reconciler in the initial empty state.
func NewReconciler() *Reconciler {
	return &Reconciler{now: time.Now}
}

// WithClock substitutes the time source. Test hook.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Current returns a copy of the live context.
func (r *Reconciler) Current() Context {
	return r.cur
}

// ProcessActivated replaces the context wholesale for a newly
// foregrounded process. Window, tab, URL, document and selection reset
// pending re-resolution. Returns nil for the very first activation (no
// spurious startup record) and for a redelivered activation of the
// process already current.
func (r *Reconciler) ProcessActivated(pid int32, bundleID, name string) *Transition {
	if r.started && r.cur.PID == pid {
		return nil
	}

	now := r.now()
	from := r.cur
	r.cur = Context{
		PID:       pid,
		BundleID:  bundleID,
		AppName:   name,
		EnteredAt: now,
	}
	r.windowSince = now
	r.tabSince = now

	if !r.started {
		r.started = true
		return nil
	}
	return r.emit(from, now.Sub(from.EnteredAt))
}

// WindowFocusChanged applies a resolved window title, the tab title
// that rides along with it (the window title itself when no tab group
// was found), and the app-specific details. An unchanged title
// (including both empty) emits nothing; details still refresh silently
// so the next record carries them, and a changed tab under an unchanged
// window is folded into a tab transition. Dwell is measured from when
// the previous title was set.
func (r *Reconciler) WindowFocusChanged(title, tabTitle string, d Details) *Transition {
	if !r.started {
		return nil
	}
	if r.cur.WindowTitle == title {
		r.applyDetails(d)
		if tabTitle != "" && tabTitle != r.cur.TabTitle {
			return r.TabSelectionChanged(tabTitle)
		}
		return nil
	}

	now := r.now()
	from := r.cur
	r.cur.WindowTitle = title
	r.cur.TabTitle = tabTitle
	r.applyDetails(d)
	dwell := now.Sub(r.windowSince)
	r.windowSince = now
	r.tabSince = now
	return r.emit(from, dwell)
}

// TabSelectionChanged applies a resolved tab title with the same no-op
// suppression and field-level dwell as WindowFocusChanged.
func (r *Reconciler) TabSelectionChanged(title string) *Transition {
	if !r.started {
		return nil
	}
	if r.cur.TabTitle == title {
		return nil
	}

	now := r.now()
	from := r.cur
	r.cur.TabTitle = title
	dwell := now.Sub(r.tabSince)
	r.tabSince = now
	return r.emit(from, dwell)
}

func (r *Reconciler) applyDetails(d Details) {
	r.cur.URL = d.URL
	r.cur.DocumentPath = d.DocumentPath
	r.cur.SelectedText = d.SelectedText
}

func (r *Reconciler) emit(from Context, dwell time.Duration) *Transition {
	if dwell < 0 {
		dwell = 0
	}
	return &Transition{
		ID:      ulid.MustNew(ulid.Timestamp(r.now()), ulid.DefaultEntropy()).String(),
		From:    from,
		To:      r.cur,
		Dwell:   dwell,
		DwellMs: dwell.Milliseconds(),
	}
}
