package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/internal/ax"
	"focusd/internal/clipboard"
	"focusd/internal/config"
	"focusd/internal/focus"
	"focusd/internal/observer"
	"focusd/internal/trust"
)

// chanSink feeds emitted events into channels for synchronization.
type chanSink struct {
	trs   chan *focus.Transition
	snaps chan *clipboard.Snapshot
}

func newChanSink() *chanSink {
	return &chanSink{
		trs:   make(chan *focus.Transition, 32),
		snaps: make(chan *clipboard.Snapshot, 32),
	}
}

func (s *chanSink) Transition(tr *focus.Transition) error {
	s.trs <- tr
	return nil
}

func (s *chanSink) Clipboard(snap *clipboard.Snapshot) error {
	s.snaps <- snap
	return nil
}

func (s *chanSink) Close() error { return nil }

// lockedClock is a fake clock safe to advance while the engine reads it.
type lockedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newLockedClock() *lockedClock {
	return &lockedClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *lockedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *lockedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	sim  *ax.Simulated
	rt   *observer.SimulatedRuntime
	acts *observer.SimulatedActivations
	gate *trust.Simulated
	out  *chanSink
	clk  *lockedClock

	engine *Engine
	cancel context.CancelFunc
	done   chan error

	stopOnce sync.Once
	runErr   error
}

// stop cancels the engine and waits for Run to return, once.
func (f *fixture) stop(t *testing.T) error {
	t.Helper()
	f.stopOnce.Do(func() {
		f.cancel()
		select {
		case f.runErr = <-f.done:
		case <-time.After(2 * time.Second):
			t.Error("engine did not stop")
		}
	})
	return f.runErr
}

func newFixture(t *testing.T, level trust.Level, mutate func(*Options)) *fixture {
	t.Helper()

	f := &fixture{
		sim:  ax.NewSimulated(),
		rt:   observer.NewSimulatedRuntime(),
		acts: observer.NewSimulatedActivations(),
		gate: trust.NewSimulated(level),
		out:  newChanSink(),
		clk:  newLockedClock(),
		done: make(chan error, 1),
	}

	opts := Options{
		Config:      config.DefaultConfig(),
		Backend:     f.sim,
		Runtime:     f.rt,
		Activations: f.acts,
		Gate:        f.gate,
		Sink:        f.out,
	}
	if mutate != nil {
		mutate(&opts)
	}

	engine, err := New(opts)
	require.NoError(t, err)
	engine.Reconciler().WithClock(f.clk.Now)
	f.engine = engine

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.done <- engine.Run(ctx) }()
	t.Cleanup(func() { f.stop(t) })
	return f
}

func (f *fixture) wantTransition(t *testing.T) *focus.Transition {
	t.Helper()
	select {
	case tr := <-f.out.trs:
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("expected a transition record")
		return nil
	}
}

func (f *fixture) wantNoTransition(t *testing.T) {
	t.Helper()
	select {
	case tr := <-f.out.trs:
		t.Fatalf("unexpected transition: %+v", tr)
	case <-time.After(200 * time.Millisecond):
	}
}

// registerApp builds an app element with a focused window.
func (f *fixture) registerApp(pid int32, windowTitle string) (app, win ax.Ref) {
	app = f.sim.NewElement()
	f.sim.RegisterApp(pid, app)
	win = f.sim.NewElement()
	f.sim.SetAttr(app, ax.AttrFocusedWindow, win)
	f.sim.SetStringAttr(win, ax.AttrTitle, windowTitle)
	return app, win
}

func TestStartupActivationEmitsWindowRecordOnly(t *testing.T) {
	f := newFixture(t, trust.Trusted, nil)
	f.registerApp(100, "GitHub")

	f.acts.Activate(100, "com.apple.Safari", "Safari")

	// No process record for the very first activation; the initial
	// window resolution is the first emitted record.
	tr := f.wantTransition(t)
	assert.Equal(t, "GitHub", tr.To.WindowTitle)
	assert.Equal(t, "GitHub", tr.To.TabTitle, "no tab group falls back to window title")
	assert.Equal(t, int32(100), tr.To.PID)
	f.wantNoTransition(t)
}

func TestAppSwitchEmitsProcessRecordWithDwell(t *testing.T) {
	f := newFixture(t, trust.Trusted, nil)
	f.registerApp(100, "GitHub")
	f.registerApp(200, "notes.txt")

	f.acts.Activate(100, "com.apple.Safari", "Safari")
	f.wantTransition(t) // initial window record

	f.clk.Advance(2 * time.Second)
	f.acts.Activate(200, "com.apple.TextEdit", "TextEdit")

	tr := f.wantTransition(t)
	assert.Equal(t, "Safari", tr.From.AppName)
	assert.Equal(t, "TextEdit", tr.To.AppName)
	assert.Equal(t, int64(2000), tr.DwellMs)
	assert.Empty(t, tr.To.WindowTitle, "window fields reset pending re-resolution")

	win := f.wantTransition(t)
	assert.Equal(t, "notes.txt", win.To.WindowTitle)
}

func TestObserverRebindsAcrossAppSwitch(t *testing.T) {
	f := newFixture(t, trust.Trusted, nil)
	f.registerApp(100, "A")
	f.registerApp(200, "B")

	f.acts.Activate(100, "com.a", "A")
	f.wantTransition(t)
	first := f.rt.LastToken()

	f.acts.Activate(200, "com.b", "B")
	f.wantTransition(t)
	f.wantTransition(t)

	assert.True(t, f.rt.Released(first), "previous binding must be torn down")
	assert.NotEqual(t, first, f.rt.LastToken())
}

func TestRedeliveredActivationIsSuppressed(t *testing.T) {
	f := newFixture(t, trust.Trusted, nil)
	f.registerApp(100, "GitHub")

	f.acts.Activate(100, "com.apple.Safari", "Safari")
	f.wantTransition(t)

	f.acts.Activate(100, "com.apple.Safari", "Safari")
	f.wantNoTransition(t)
}

func TestWindowChangeNotification(t *testing.T) {
	f := newFixture(t, trust.Trusted, nil)
	app, _ := f.registerApp(100, "One")

	f.acts.Activate(100, "com.apple.Safari", "Safari")
	f.wantTransition(t)

	win2 := f.sim.NewElement()
	f.sim.SetStringAttr(win2, ax.AttrTitle, "Two")
	f.sim.SetAttr(app, ax.AttrFocusedWindow, win2)
	f.clk.Advance(1500 * time.Millisecond)

	require.True(t, f.rt.Fire(f.rt.LastToken(), observer.FocusedWindowChanged, win2))

	tr := f.wantTransition(t)
	assert.Equal(t, "One", tr.From.WindowTitle)
	assert.Equal(t, "Two", tr.To.WindowTitle)
	assert.Equal(t, int64(1500), tr.DwellMs)
}

func TestTabSelectionFlow(t *testing.T) {
	f := newFixture(t, trust.Trusted, nil)
	_, win := f.registerApp(100, "Browser")

	group := f.sim.NewElement()
	f.sim.SetStringAttr(group, ax.AttrRole, ax.RoleTabGroup)
	tabA := f.sim.NewElement()
	f.sim.SetAttr(tabA, ax.AttrSelected, f.sim.NewBool(true))
	f.sim.SetStringAttr(tabA, ax.AttrTitle, "Tab A")
	tabB := f.sim.NewElement()
	f.sim.SetAttr(tabB, ax.AttrSelected, f.sim.NewBool(false))
	f.sim.SetStringAttr(tabB, ax.AttrTitle, "Tab B")
	f.sim.SetChildren(group, tabA, tabB)
	f.sim.SetChildren(win, group)

	f.acts.Activate(100, "com.apple.Safari", "Safari")
	tr := f.wantTransition(t)
	assert.Equal(t, "Tab A", tr.To.TabTitle, "selected tab resolved with the window")

	// User switches tabs.
	f.sim.SetAttr(tabA, ax.AttrSelected, f.sim.NewBool(false))
	f.sim.SetAttr(tabB, ax.AttrSelected, f.sim.NewBool(true))
	f.clk.Advance(time.Second)
	require.True(t, f.rt.Fire(f.rt.LastToken(), observer.SelectedChildrenChanged, group))

	tr = f.wantTransition(t)
	assert.Equal(t, "Tab A", tr.From.TabTitle)
	assert.Equal(t, "Tab B", tr.To.TabTitle)
	assert.Equal(t, int64(1000), tr.DwellMs)
}

func TestProbeDetailsResolvedOnWindowChange(t *testing.T) {
	f := newFixture(t, trust.Trusted, nil)
	app, win := f.registerApp(100, "Docs")
	f.sim.SetStringAttr(win, ax.AttrURL, "https://example.org/doc")
	f.sim.SetStringAttr(win, ax.AttrDocument, "/Users/a/doc.md")
	field := f.sim.NewElement()
	f.sim.SetAttr(app, ax.AttrFocusedUIElement, field)
	f.sim.SetStringAttr(field, ax.AttrSelectedText, "quoted passage")

	f.acts.Activate(100, "com.example.docs", "Docs")
	tr := f.wantTransition(t)
	assert.Equal(t, "https://example.org/doc", tr.To.URL)
	assert.Equal(t, "/Users/a/doc.md", tr.To.DocumentPath)
	assert.Equal(t, "quoted passage", tr.To.SelectedText)
}

func TestUntrustedDegradesToAppIdentity(t *testing.T) {
	f := newFixture(t, trust.Untrusted, nil)
	f.registerApp(100, "GitHub")
	f.registerApp(200, "notes.txt")

	f.acts.Activate(100, "com.apple.Safari", "Safari")
	f.wantNoTransition(t) // startup, and no window resolution when untrusted

	f.clk.Advance(time.Second)
	f.acts.Activate(200, "com.apple.TextEdit", "TextEdit")

	tr := f.wantTransition(t)
	assert.Equal(t, "TextEdit", tr.To.AppName)
	assert.Equal(t, "com.apple.TextEdit", tr.To.BundleID)
	assert.Empty(t, tr.To.WindowTitle)
	assert.Empty(t, tr.To.URL)
	assert.Empty(t, f.rt.Ops(), "no observer lifecycle calls when untrusted")
}

func TestPromptSuppressedByConfig(t *testing.T) {
	f := newFixture(t, trust.Untrusted, func(o *Options) {
		cfg := config.DefaultConfig()
		cfg.Trust.Prompt = false
		o.Config = cfg
	})
	f.registerApp(100, "A")
	f.acts.Activate(100, "com.a", "A")
	f.wantNoTransition(t)
	assert.False(t, f.gate.Prompted())
}

func TestStaleNotificationDropped(t *testing.T) {
	f := newFixture(t, trust.Trusted, nil)
	f.registerApp(100, "A")
	f.registerApp(200, "B")

	f.acts.Activate(100, "com.a", "A")
	f.wantTransition(t)
	staleTok := f.rt.LastToken()

	f.acts.Activate(200, "com.b", "B")
	f.wantTransition(t)
	f.wantTransition(t)

	// A callback from the torn-down binding arrives late.
	winB := f.sim.NewElement()
	f.sim.SetStringAttr(winB, ax.AttrTitle, "Stale")
	require.True(t, f.rt.Fire(staleTok, observer.FocusedWindowChanged, winB))
	f.wantNoTransition(t)
}

func TestClipboardPolling(t *testing.T) {
	pb := clipboard.NewSimulatedPasteboard()
	pb.PutText("already there")

	f := newFixture(t, trust.Trusted, func(o *Options) {
		cfg := config.DefaultConfig()
		cfg.Clipboard.PollIntervalMs = 100
		o.Config = cfg
		o.Pasteboard = pb
	})

	// Pre-existing content is the baseline, not a change.
	select {
	case snap := <-f.out.snaps:
		t.Fatalf("unexpected snapshot: %+v", snap)
	case <-time.After(300 * time.Millisecond):
	}

	pb.PutText("Hello World")
	select {
	case snap := <-f.out.snaps:
		assert.Equal(t, "Hello World", snap.PrimaryText)
		require.Len(t, snap.Formats, 1)
		assert.Equal(t, "text", snap.Formats[0].Type)
		assert.Equal(t, 11, snap.Formats[0].Size)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a clipboard snapshot")
	}
}

func TestPolicyHotSwap(t *testing.T) {
	f := newFixture(t, trust.Trusted, nil)
	app, win := f.registerApp(100, "Editor")
	f.sim.SetStringAttr(app, ax.AttrTitle, "from-app-element")
	_ = win

	pol := focus.DefaultPolicy()
	pol.Apps["com.custom.editor"] = focus.AppPolicy{
		URL: focus.Chain{{Target: focus.TargetApp, Attribute: ax.AttrTitle}},
	}
	f.engine.UpdatePolicy(pol)
	// The idle engine applies the queued policy before the activation
	// can arrive.
	time.Sleep(100 * time.Millisecond)

	f.acts.Activate(100, "com.custom.editor", "Editor")
	tr := f.wantTransition(t)
	assert.Equal(t, "from-app-element", tr.To.URL, "swapped policy drives resolution")
}

func TestShutdownUnbindsAndBalancesOwnership(t *testing.T) {
	f := newFixture(t, trust.Trusted, nil)
	f.registerApp(100, "A")
	f.acts.Activate(100, "com.a", "A")
	f.wantTransition(t)

	require.NoError(t, f.stop(t))

	assert.True(t, f.rt.Released(f.rt.LastToken()))
	assert.Zero(t, f.sim.Outstanding(), "every foreign retain released at shutdown")
}
