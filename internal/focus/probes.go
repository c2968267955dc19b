package focus

import (
	"fmt"

	"focusd/internal/ax"
)

// Probe targets: which element a probe's attribute is read from.
const (
	TargetWindow  = "window"
	TargetApp     = "app"
	TargetFocused = "focused" // the app's focused UI element
)

// Probe is one step in a fallback chain: read one attribute off one
// target element.
type Probe struct {
	Target    string `yaml:"target" json:"target"`
	Attribute string `yaml:"attribute" json:"attribute"`
}

// Chain is an ordered list of probes evaluated until the first present,
// non-empty string value.
type Chain []Probe

// AppPolicy is the set of chains for one application (or the defaults).
type AppPolicy struct {
	URL          Chain `yaml:"url,omitempty" json:"url,omitempty"`
	Document     Chain `yaml:"document,omitempty" json:"document,omitempty"`
	SelectedText Chain `yaml:"selected_text,omitempty" json:"selected_text,omitempty"`
}

// Policy maps bundle ids onto probe chains, with defaults for everything
// unlisted. Chains are configuration, not code: per-app behavior is data
// so the reconciler stays testable without real applications.
type Policy struct {
	Version  int                  `yaml:"version" json:"version"`
	Defaults AppPolicy            `yaml:"defaults" json:"defaults"`
	Apps     map[string]AppPolicy `yaml:"apps,omitempty" json:"apps,omitempty"`
}

// DefaultPolicy covers the common cases: documents expose AXDocument on
// the window; browsers expose the page URL either on the web area or as
// the value of the focused address field.
func DefaultPolicy() *Policy {
	return &Policy{
		Version: 1,
		Defaults: AppPolicy{
			URL: Chain{
				{Target: TargetWindow, Attribute: ax.AttrURL},
				{Target: TargetFocused, Attribute: ax.AttrURL},
			},
			Document: Chain{
				{Target: TargetWindow, Attribute: ax.AttrDocument},
			},
			SelectedText: Chain{
				{Target: TargetFocused, Attribute: ax.AttrSelectedText},
			},
		},
		Apps: map[string]AppPolicy{
			"com.apple.Safari": {
				URL: Chain{
					{Target: TargetFocused, Attribute: ax.AttrValue},
					{Target: TargetWindow, Attribute: ax.AttrURL},
				},
			},
			"com.google.Chrome": {
				URL: Chain{
					{Target: TargetFocused, Attribute: ax.AttrValue},
					{Target: TargetWindow, Attribute: ax.AttrDocument},
				},
			},
		},
	}
}

// For returns the effective policy for a bundle id: per-app chains where
// declared, defaults for the rest.
func (p *Policy) For(bundleID string) AppPolicy {
	eff := p.Defaults
	app, ok := p.Apps[bundleID]
	if !ok {
		return eff
	}
	if len(app.URL) > 0 {
		eff.URL = app.URL
	}
	if len(app.Document) > 0 {
		eff.Document = app.Document
	}
	if len(app.SelectedText) > 0 {
		eff.SelectedText = app.SelectedText
	}
	return eff
}

// Validate checks probe targets and attribute names.
func (p *Policy) Validate() error {
	check := func(c Chain, what string) error {
		for i, probe := range c {
			switch probe.Target {
			case TargetWindow, TargetApp, TargetFocused:
			default:
				return fmt.Errorf("focus: %s probe %d: unknown target %q", what, i, probe.Target)
			}
			if probe.Attribute == "" {
				return fmt.Errorf("focus: %s probe %d: empty attribute", what, i)
			}
		}
		return nil
	}
	policies := map[string]AppPolicy{"defaults": p.Defaults}
	for id, app := range p.Apps {
		policies[id] = app
	}
	for id, app := range policies {
		if err := check(app.URL, id+"/url"); err != nil {
			return err
		}
		if err := check(app.Document, id+"/document"); err != nil {
			return err
		}
		if err := check(app.SelectedText, id+"/selected_text"); err != nil {
			return err
		}
	}
	return nil
}

// Resolve evaluates a chain against the app and window elements and
// returns the first present non-empty string. Absences move on to the
// next probe; only ErrAPIDisabled aborts.
func Resolve(b ax.Backend, app, window ax.Ref, chain Chain) (string, error) {
	for _, probe := range chain {
		base, release, ok, err := probeBase(b, app, window, probe.Target)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		val, present, err := ax.StringAttr(b, base, probe.Attribute)
		if release != nil {
			release()
		}
		if err != nil {
			return "", err
		}
		if present && val != "" {
			return val, nil
		}
	}
	return "", nil
}

// ResolveDetails evaluates all three chains of a policy.
func ResolveDetails(b ax.Backend, app, window ax.Ref, pol AppPolicy) (Details, error) {
	var d Details
	var err error
	if d.URL, err = Resolve(b, app, window, pol.URL); err != nil {
		return Details{}, err
	}
	if d.DocumentPath, err = Resolve(b, app, window, pol.Document); err != nil {
		return Details{}, err
	}
	if d.SelectedText, err = Resolve(b, app, window, pol.SelectedText); err != nil {
		return Details{}, err
	}
	return d, nil
}

// probeBase selects the element a probe reads from. For TargetFocused a
// fresh owned handle is fetched; release returns it.
func probeBase(b ax.Backend, app, window ax.Ref, target string) (base ax.Ref, release func(), ok bool, err error) {
	switch target {
	case TargetWindow:
		if window == ax.NilRef {
			return ax.NilRef, nil, false, nil
		}
		return window, nil, true, nil
	case TargetApp:
		if app == ax.NilRef {
			return ax.NilRef, nil, false, nil
		}
		return app, nil, true, nil
	case TargetFocused:
		if app == ax.NilRef {
			return ax.NilRef, nil, false, nil
		}
		h, err := ax.ElementAttr(b, app, ax.AttrFocusedUIElement)
		if err != nil {
			return ax.NilRef, nil, false, err
		}
		if h == nil {
			return ax.NilRef, nil, false, nil
		}
		return h.Ref(), h.Release, true, nil
	default:
		return ax.NilRef, nil, false, nil
	}
}
