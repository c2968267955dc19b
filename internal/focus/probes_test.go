package focus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/internal/ax"
)

func TestResolveFirstNonEmptyWins(t *testing.T) {
	sim := ax.NewSimulated()
	app := sim.NewElement()
	window := sim.NewElement()
	sim.SetStringAttr(window, ax.AttrURL, "https://example.org/doc")

	chain := Chain{
		{Target: TargetWindow, Attribute: ax.AttrDocument}, // absent
		{Target: TargetWindow, Attribute: ax.AttrURL},
		{Target: TargetApp, Attribute: ax.AttrTitle}, // never reached
	}
	val, err := Resolve(sim, app, window, chain)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/doc", val)
	assert.Equal(t, 0, sim.CopyCalls(ax.AttrTitle), "chain must stop at first hit")
	assert.Zero(t, sim.Outstanding())
}

func TestResolveSkipsEmptyStrings(t *testing.T) {
	sim := ax.NewSimulated()
	window := sim.NewElement()
	sim.SetStringAttr(window, ax.AttrDocument, "")
	sim.SetStringAttr(window, ax.AttrURL, "https://example.org")

	chain := Chain{
		{Target: TargetWindow, Attribute: ax.AttrDocument},
		{Target: TargetWindow, Attribute: ax.AttrURL},
	}
	val, err := Resolve(sim, ax.NilRef, window, chain)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org", val)
	assert.Zero(t, sim.Outstanding())
}

func TestResolveFocusedTarget(t *testing.T) {
	sim := ax.NewSimulated()
	app := sim.NewElement()
	field := sim.NewElement()
	sim.SetAttr(app, ax.AttrFocusedUIElement, field)
	sim.SetStringAttr(field, ax.AttrValue, "https://typed.example")

	chain := Chain{{Target: TargetFocused, Attribute: ax.AttrValue}}
	val, err := Resolve(sim, app, ax.NilRef, chain)
	require.NoError(t, err)
	assert.Equal(t, "https://typed.example", val)
	assert.Zero(t, sim.Outstanding(), "focused element handle must be released")
}

func TestResolveExhaustedYieldsEmpty(t *testing.T) {
	sim := ax.NewSimulated()
	window := sim.NewElement()

	val, err := Resolve(sim, ax.NilRef, window, Chain{
		{Target: TargetWindow, Attribute: ax.AttrURL},
		{Target: TargetFocused, Attribute: ax.AttrValue}, // app is nil, skipped
	})
	require.NoError(t, err)
	assert.Empty(t, val)
}

// A probe answering an unclassified code behaves like an absent
// attribute: the chain moves on to the next probe.
func TestResolveSkipsFailingProbe(t *testing.T) {
	sim := ax.NewSimulated()
	window := sim.NewElement()
	sim.FailAttr(window, ax.AttrURL, ax.CodeCannotComplete)
	sim.SetStringAttr(window, ax.AttrDocument, "/tmp/doc.txt")

	val, err := Resolve(sim, ax.NilRef, window, Chain{
		{Target: TargetWindow, Attribute: ax.AttrURL},
		{Target: TargetWindow, Attribute: ax.AttrDocument},
	})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/doc.txt", val)
	assert.Zero(t, sim.Outstanding())
}

func TestResolveAPIDisabledAborts(t *testing.T) {
	sim := ax.NewSimulated()
	window := sim.NewElement()
	sim.FailAttr(window, ax.AttrURL, ax.CodeAPIDisabled)
	sim.SetStringAttr(window, ax.AttrDocument, "/tmp/doc.txt")

	_, err := Resolve(sim, ax.NilRef, window, Chain{
		{Target: TargetWindow, Attribute: ax.AttrURL},
		{Target: TargetWindow, Attribute: ax.AttrDocument},
	})
	assert.ErrorIs(t, err, ax.ErrAPIDisabled)
	assert.Equal(t, 0, sim.CopyCalls(ax.AttrDocument), "disabled API must abort the chain")
}

func TestResolveDetailsAllChains(t *testing.T) {
	sim := ax.NewSimulated()
	app := sim.NewElement()
	window := sim.NewElement()
	field := sim.NewElement()
	sim.SetAttr(app, ax.AttrFocusedUIElement, field)
	sim.SetStringAttr(window, ax.AttrURL, "https://example.org")
	sim.SetStringAttr(window, ax.AttrDocument, "/Users/a/notes.md")
	sim.SetStringAttr(field, ax.AttrSelectedText, "lorem")

	d, err := ResolveDetails(sim, app, window, DefaultPolicy().For("com.unknown.App"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.org", d.URL)
	assert.Equal(t, "/Users/a/notes.md", d.DocumentPath)
	assert.Equal(t, "lorem", d.SelectedText)
	assert.Zero(t, sim.Outstanding())
}

func TestPolicyForMergesPerAppOverDefaults(t *testing.T) {
	p := DefaultPolicy()

	safari := p.For("com.apple.Safari")
	require.NotEmpty(t, safari.URL)
	assert.Equal(t, TargetFocused, safari.URL[0].Target, "Safari overrides the URL chain")
	assert.Equal(t, p.Defaults.Document, safari.Document, "unset chains fall back to defaults")

	unknown := p.For("com.unknown.App")
	assert.Equal(t, p.Defaults.URL, unknown.URL)
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	bad := &Policy{
		Version: 1,
		Defaults: AppPolicy{
			URL: Chain{{Target: "screen", Attribute: ax.AttrURL}},
		},
	}
	assert.ErrorContains(t, bad.Validate(), "unknown target")

	empty := &Policy{
		Version: 1,
		Apps: map[string]AppPolicy{
			"com.x": {Document: Chain{{Target: TargetWindow}}},
		},
	}
	assert.ErrorContains(t, empty.Validate(), "empty attribute")
}
