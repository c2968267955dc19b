package observer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/internal/ax"
)

// newAppFixture builds a simulated app element tree for pid with a
// focused window that may or may not carry a tab group.
func newAppFixture(be *ax.Simulated, pid int32, withTabs bool) (app, window ax.Ref) {
	app = be.NewElement()
	be.RegisterApp(pid, app)

	window = be.NewElement()
	be.SetStringAttr(window, ax.AttrRole, ax.RoleWindow)
	be.SetStringAttr(window, ax.AttrTitle, "Window")
	be.SetAttr(app, ax.AttrFocusedWindow, window)

	if withTabs {
		group := be.NewElement()
		be.SetStringAttr(group, ax.AttrRole, ax.RoleTabGroup)
		be.SetChildren(window, group)
	}
	return app, window
}

func TestQueueSizeConfigurable(t *testing.T) {
	be := ax.NewSimulated()
	rt := NewSimulatedRuntime()

	assert.Equal(t, 8, cap(NewManager(rt, be, 8).Events()))
	assert.Equal(t, DefaultQueueSize, cap(NewManager(rt, be, 0).Events()))
}

func TestBindRegistersFocusedWindowNotification(t *testing.T) {
	be := ax.NewSimulated()
	newAppFixture(be, 100, false)
	rt := NewSimulatedRuntime()
	m := NewManager(rt, be, 0)

	require.NoError(t, m.Bind(100))
	assert.True(t, m.Bound())
	assert.Equal(t, int32(100), m.PID())

	ops := rt.Ops()
	require.Len(t, ops, 3)
	assert.Contains(t, ops[0], "create")
	assert.Contains(t, ops[1], "add_notification")
	assert.Contains(t, ops[1], string(FocusedWindowChanged))
	assert.Contains(t, ops[2], "add_source")
}

func TestBindFailureStaysUnbound(t *testing.T) {
	be := ax.NewSimulated()
	newAppFixture(be, 100, false)
	rt := NewSimulatedRuntime()
	rt.FailAddNotification(FocusedWindowChanged)
	m := NewManager(rt, be, 0)

	err := m.Bind(100)
	require.Error(t, err)
	assert.False(t, m.Bound())

	// The half-built observer was released and no element leaked.
	assert.True(t, rt.Released(rt.LastToken()))
	assert.Zero(t, be.Outstanding())
}

func TestDoubleBindRejected(t *testing.T) {
	be := ax.NewSimulated()
	newAppFixture(be, 100, false)
	newAppFixture(be, 200, false)
	rt := NewSimulatedRuntime()
	m := NewManager(rt, be, 0)

	require.NoError(t, m.Bind(100))
	assert.ErrorIs(t, m.Bind(200), ErrAlreadyBound)
}

// Rapid process switches must fully tear down the old binding before any
// registration for the new one begins: remove_notification, then
// remove_source, then release, all before the next create.
func TestUnbindBeforeRebindOrdering(t *testing.T) {
	be := ax.NewSimulated()
	newAppFixture(be, 100, true)
	newAppFixture(be, 200, false)
	rt := NewSimulatedRuntime()
	m := NewManager(rt, be, 0)

	require.NoError(t, m.Bind(100))
	win, err := ax.ElementAttr(be, mustAppRef(t, be, 100), ax.AttrFocusedWindow)
	require.NoError(t, err)
	require.NoError(t, m.RebindTabObserver(win, 0, 0))
	win.Release()
	require.True(t, m.HasTabObserver())

	m.Unbind()
	require.NoError(t, m.Bind(200))
	m.Unbind()

	ops := rt.Ops()
	firstCreate := indexOf(ops, "create pid=100")
	secondCreate := indexOf(ops, "create pid=200")
	require.GreaterOrEqual(t, firstCreate, 0)
	require.Greater(t, secondCreate, firstCreate)

	// Teardown of binding one, in order, strictly before create two.
	teardown := ops[firstCreate:secondCreate]
	tabRemove := indexOf(teardown, "remove_notification tok=1 kind="+string(SelectedChildrenChanged))
	mainRemove := indexOf(teardown, "remove_notification tok=1 kind="+string(FocusedWindowChanged))
	sourceRemove := indexOf(teardown, "remove_source tok=1")
	release := indexOf(teardown, "release tok=1")
	require.GreaterOrEqual(t, tabRemove, 0)
	require.Greater(t, mainRemove, tabRemove)
	require.Greater(t, sourceRemove, mainRemove)
	require.Greater(t, release, sourceRemove)

	assert.Zero(t, be.Outstanding())
}

func TestStaleCallbackDropped(t *testing.T) {
	be := ax.NewSimulated()
	app, _ := newAppFixture(be, 100, false)
	newAppFixture(be, 200, false)
	rt := NewSimulatedRuntime()
	m := NewManager(rt, be, 0)

	require.NoError(t, m.Bind(100))
	staleTok := rt.LastToken()
	m.Unbind()
	require.NoError(t, m.Bind(200))

	// A callback for the torn-down observer arrives late.
	require.True(t, rt.Fire(staleTok, FocusedWindowChanged, app))

	ev := <-m.Events()
	assert.False(t, m.Accept(ev))
	if ev.Element != nil {
		ev.Element.Release()
	}
	assert.Equal(t, uint64(1), m.StaleDrops())

	// A current-generation callback is accepted.
	require.True(t, rt.Fire(rt.LastToken(), FocusedWindowChanged, ax.NilRef))
	ev = <-m.Events()
	assert.True(t, m.Accept(ev))
	assert.Equal(t, int32(200), ev.PID)

	m.Unbind()
	assert.Zero(t, be.Outstanding())
}

func TestRebindTabObserverWithoutTabGroup(t *testing.T) {
	be := ax.NewSimulated()
	app, _ := newAppFixture(be, 100, false)
	rt := NewSimulatedRuntime()
	m := NewManager(rt, be, 0)

	require.NoError(t, m.Bind(100))
	win, err := ax.ElementAttr(be, app, ax.AttrFocusedWindow)
	require.NoError(t, err)

	// No tab group present: not an error, secondary stays absent.
	require.NoError(t, m.RebindTabObserver(win, 0, 0))
	assert.False(t, m.HasTabObserver())

	win.Release()
	m.Unbind()
	assert.Zero(t, be.Outstanding())
}

func TestRebindTabObserverReplacesPrevious(t *testing.T) {
	be := ax.NewSimulated()
	app, _ := newAppFixture(be, 100, true)
	rt := NewSimulatedRuntime()
	m := NewManager(rt, be, 0)

	require.NoError(t, m.Bind(100))
	win, err := ax.ElementAttr(be, app, ax.AttrFocusedWindow)
	require.NoError(t, err)

	require.NoError(t, m.RebindTabObserver(win, 0, 0))
	require.True(t, m.HasTabObserver())

	// Second window change: old secondary removed before the new add.
	require.NoError(t, m.RebindTabObserver(win, 0, 0))

	ops := rt.Ops()
	removeIdx := lastIndexOf(ops, "remove_notification tok=1 kind="+string(SelectedChildrenChanged))
	addIdx := lastIndexOf(ops, "add_notification tok=1 kind="+string(SelectedChildrenChanged))
	require.GreaterOrEqual(t, removeIdx, 0)
	assert.Greater(t, addIdx, removeIdx)

	win.Release()
	m.Unbind()
	assert.Zero(t, be.Outstanding())
}

// helpers

func mustAppRef(t *testing.T, be *ax.Simulated, pid int32) ax.Ref {
	t.Helper()
	ref, code := be.AppElement(pid)
	require.Equal(t, ax.CodeSuccess, code)
	// Balance the copy-rule retain; the fixture object stays alive as a
	// backend-owned object.
	be.Release(ref)
	return ref
}

func indexOf(ops []string, prefix string) int {
	for i, op := range ops {
		if strings.HasPrefix(op, prefix) {
			return i
		}
	}
	return -1
}

func lastIndexOf(ops []string, prefix string) int {
	for i := len(ops) - 1; i >= 0; i-- {
		if strings.HasPrefix(ops[i], prefix) {
			return i
		}
	}
	return -1
}
