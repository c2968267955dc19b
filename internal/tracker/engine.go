// Package tracker runs the focus tracking engine: one goroutine that
// owns all mutable state and folds activation events, accessibility
// notifications, and clipboard polls into the output stream.
//
// Nothing in this package is safe for concurrent use by design; the
// engine goroutine is the single writer, and every other thread (cgo
// callbacks, the activation poller) only feeds channels.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"focusd/internal/ax"
	"focusd/internal/clipboard"
	"focusd/internal/config"
	"focusd/internal/focus"
	"focusd/internal/logging"
	"focusd/internal/observer"
	"focusd/internal/procinfo"
	"focusd/internal/sink"
	"focusd/internal/trust"
)

// Options wires the engine's collaborators. Backend, Runtime,
// Activations, Gate, and Sink are required; Pasteboard may be nil to
// disable clipboard detection regardless of config.
type Options struct {
	Config      *config.Config
	Backend     ax.Backend
	Runtime     observer.Runtime
	Activations observer.ActivationSource
	Gate        trust.Gate
	Pasteboard  clipboard.Pasteboard
	Sink        sink.Sink
	Policy      *focus.Policy
	Log         *logging.Logger
}

// Engine is the single-goroutine reconciliation core.
type Engine struct {
	cfg  *config.Config
	be   ax.Backend
	mgr  *observer.Manager
	acts observer.ActivationSource
	gate trust.Gate
	pb   clipboard.Pasteboard
	out  sink.Sink
	rec  *focus.Reconciler
	log  *logging.Logger

	policy   *focus.Policy
	policyCh chan *focus.Policy

	// trusted is owned by the engine goroutine after Run starts.
	trusted bool
	// degradeReported ensures permission denial is reported once.
	degradeReported bool

	transitions uint64
	clipEvents  uint64
}

// New creates an engine from options.
func New(opts Options) (*Engine, error) {
	if opts.Backend == nil || opts.Runtime == nil || opts.Activations == nil {
		return nil, errors.New("tracker: backend, runtime, and activation source are required")
	}
	if opts.Gate == nil || opts.Sink == nil {
		return nil, errors.New("tracker: trust gate and sink are required")
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	pol := opts.Policy
	if pol == nil {
		pol = focus.DefaultPolicy()
	}
	log := opts.Log
	if log == nil {
		log = logging.Default()
	}

	return &Engine{
		cfg:      cfg,
		be:       opts.Backend,
		mgr:      observer.NewManager(opts.Runtime, opts.Backend, cfg.Observer.QueueSize),
		acts:     opts.Activations,
		gate:     opts.Gate,
		pb:       opts.Pasteboard,
		out:      opts.Sink,
		rec:      focus.NewReconciler(),
		log:      log.WithComponent("tracker"),
		policy:   pol,
		policyCh: make(chan *focus.Policy, 1),
	}, nil
}

// Reconciler exposes the engine's reconciler. Test hook for clock
// injection; must not be called after Run starts.
func (e *Engine) Reconciler() *focus.Reconciler {
	return e.rec
}

// UpdatePolicy swaps the probe policy. Safe to call from the hot-reload
// watcher; the swap is applied on the engine goroutine.
func (e *Engine) UpdatePolicy(pol *focus.Policy) {
	select {
	case e.policyCh <- pol:
	default:
		// Drain the stale pending policy and queue the newest.
		select {
		case <-e.policyCh:
		default:
		}
		e.policyCh <- pol
	}
}

// Run drives the engine until ctx is cancelled. The trust gate is
// consulted exactly once up front; a denial degrades the whole session
// to app-identity tracking with a single report.
func (e *Engine) Run(ctx context.Context) error {
	e.trusted = e.gate.Check(e.cfg.Trust.Prompt) == trust.Trusted
	if !e.trusted {
		e.reportDegrade("accessibility permission not granted")
	}

	if err := e.acts.Start(ctx); err != nil {
		return fmt.Errorf("start activation source: %w", err)
	}

	var clipCh <-chan time.Time
	var detector *clipboard.Detector
	if e.cfg.Clipboard.Enabled && e.pb != nil {
		detector = clipboard.NewDetector(e.pb)
		ticker := time.NewTicker(e.cfg.ClipboardPoll())
		defer ticker.Stop()
		clipCh = ticker.C
	}

	e.log.Info("tracking started",
		"trusted", e.trusted,
		"clipboard", detector != nil,
	)

	for {
		select {
		case <-ctx.Done():
			e.mgr.Unbind()
			e.log.Info("tracking stopped",
				"transitions", e.transitions,
				"clipboard_events", e.clipEvents,
				"stale_drops", e.mgr.StaleDrops(),
				"full_drops", e.mgr.FullDrops(),
			)
			return nil

		case act := <-e.acts.Events():
			e.handleActivation(act)

		case ev := <-e.mgr.Events():
			e.handleObserverEvent(ev)

		case <-clipCh:
			if snap := detector.Poll(); snap != nil {
				e.emitClipboard(snap)
			}

		case pol := <-e.policyCh:
			e.policy = pol
			e.log.Info("probe policy updated", "apps", len(pol.Apps))
		}
	}
}

// handleActivation processes one foreground switch: rebind the observer
// to the new process, replace the focus context, and resolve the new
// front window.
func (e *Engine) handleActivation(act observer.Activation) {
	name, bundle := act.Name, act.BundleID
	if name == "" || bundle == "" {
		if info, err := procinfo.Lookup(act.PID); err == nil {
			if name == "" {
				name = info.Name
			}
			if bundle == "" {
				bundle = procinfo.BundleIDGuess(info.Exe)
			}
		}
	}

	if e.trusted {
		e.mgr.Unbind()
		if err := e.mgr.Bind(act.PID); err != nil {
			// This app is tracked by identity only; the next switch
			// gets a fresh binding attempt.
			e.log.Warn("observer bind failed", "pid", act.PID, "error", err)
		}
	}

	if tr := e.rec.ProcessActivated(act.PID, bundle, name); tr != nil {
		e.enrich(tr)
		e.emitTransition(tr)
	}

	if e.trusted && e.mgr.Bound() {
		e.resolveFrontWindow(act.PID, bundle)
	}
}

// handleObserverEvent processes one accessibility notification. The
// element handle is owned by the event and released here regardless of
// outcome.
func (e *Engine) handleObserverEvent(ev observer.Event) {
	defer func() {
		if ev.Element != nil {
			ev.Element.Release()
		}
	}()

	if !e.mgr.Accept(ev) {
		return
	}
	if !e.trusted {
		return
	}

	switch ev.Kind {
	case observer.FocusedWindowChanged:
		if ev.Element != nil && e.be.IsElement(ev.Element.Ref()) {
			e.applyWindow(ev.PID, ev.Element)
		} else {
			e.resolveFrontWindow(ev.PID, e.rec.Current().BundleID)
		}

	case observer.SelectedChildrenChanged:
		if ev.Element == nil {
			return
		}
		title, ok, err := ax.FindSelectedChild(e.be, ev.Element.Ref(), e.cfg.Tracker.MaxChildren)
		if err != nil {
			e.handleAXError(err)
			return
		}
		if !ok {
			title = e.rec.Current().WindowTitle
		}
		if tr := e.rec.TabSelectionChanged(title); tr != nil {
			e.emitTransition(tr)
		}
	}
}

// resolveFrontWindow fetches the focused window of pid and applies it.
// When the window is not exposed through the tree, the scripting
// fallback supplies a bare title.
func (e *Engine) resolveFrontWindow(pid int32, bundle string) {
	appRef, code := e.be.AppElement(pid)
	if code != ax.CodeSuccess {
		e.handleAXError(ax.Classify(code, "create application element"))
		return
	}
	app, err := ax.Adopt(e.be, appRef)
	if err != nil {
		return
	}
	defer app.Release()

	win, err := ax.ElementAttr(e.be, app.Ref(), ax.AttrFocusedWindow)
	if err != nil {
		e.handleAXError(err)
		return
	}
	if win == nil {
		if title, ok := focus.FrontWindowTitle(); ok {
			if tr := e.rec.WindowFocusChanged(title, title, focus.Details{}); tr != nil {
				e.emitTransition(tr)
			}
		}
		return
	}
	defer win.Release()

	e.applyWindowElements(app.Ref(), win, bundle)
}

// applyWindow resolves a window delivered by a notification. The
// application element is re-fetched because the notification only
// carries the window.
func (e *Engine) applyWindow(pid int32, win *ax.Handle) {
	appRef, code := e.be.AppElement(pid)
	if code != ax.CodeSuccess {
		e.handleAXError(ax.Classify(code, "create application element"))
		return
	}
	app, err := ax.Adopt(e.be, appRef)
	if err != nil {
		return
	}
	defer app.Release()

	e.applyWindowElements(app.Ref(), win, e.rec.Current().BundleID)
}

// applyWindowElements resolves title, tab, and policy details for a
// window, feeds the reconciler, and rebinds the tab observer.
func (e *Engine) applyWindowElements(app ax.Ref, win *ax.Handle, bundle string) {
	title, _, err := ax.StringAttr(e.be, win.Ref(), ax.AttrTitle)
	if err != nil {
		e.handleAXError(err)
		return
	}

	details, err := focus.ResolveDetails(e.be, app, win.Ref(), e.policy.For(bundle))
	if err != nil {
		e.handleAXError(err)
		details = focus.Details{}
	}

	if err := e.mgr.RebindTabObserver(win, e.cfg.Tracker.MaxTreeDepth, e.cfg.Tracker.MaxChildren); err != nil {
		e.handleAXError(err)
	}

	// Tab title defaults to the window's own title when no tab group
	// with a selected, titled child exists.
	tabTitle := title
	if group, ok := e.mgr.TabGroup(); ok {
		if t, found, err := ax.FindSelectedChild(e.be, group, e.cfg.Tracker.MaxChildren); err == nil && found {
			tabTitle = t
		}
	}

	if tr := e.rec.WindowFocusChanged(title, tabTitle, details); tr != nil {
		e.emitTransition(tr)
	}
}

// handleAXError reacts to failures that escaped the absence-collapsing
// accessors. Only a permission revocation changes engine state; it
// degrades the rest of the session exactly like a startup denial.
func (e *Engine) handleAXError(err error) {
	if err == nil || ax.IsAbsence(err) {
		return
	}
	if errors.Is(err, ax.ErrAPIDisabled) {
		if e.gate.Check(false) != trust.Trusted {
			e.trusted = false
			e.mgr.Unbind()
			e.reportDegrade("accessibility permission revoked")
		}
		return
	}
	e.log.Debug("accessibility call failed", "error", err)
}

func (e *Engine) reportDegrade(reason string) {
	if e.degradeReported {
		return
	}
	e.degradeReported = true
	e.log.Warn("degrading to app identity tracking", "reason", reason)
}

// enrich attaches socket metadata for the activated process.
func (e *Engine) enrich(tr *focus.Transition) {
	if !e.cfg.Tracker.NetEnrichment {
		return
	}
	conns, err := procinfo.Connections(tr.To.PID, e.cfg.Tracker.MaxConnections)
	if err != nil {
		e.log.Debug("net enrichment failed", "pid", tr.To.PID, "error", err)
		return
	}
	tr.Net = conns
}

func (e *Engine) emitTransition(tr *focus.Transition) {
	e.transitions++
	if err := e.out.Transition(tr); err != nil {
		e.log.Error("emit transition", "error", err)
	}
}

func (e *Engine) emitClipboard(snap *clipboard.Snapshot) {
	e.clipEvents++
	if err := e.out.Clipboard(snap); err != nil {
		e.log.Error("emit clipboard snapshot", "error", err)
	}
}
