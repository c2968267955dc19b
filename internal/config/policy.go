package config

import (
	"bytes"
	"context"
	"encoding/json"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"focusd/internal/focus"
)

//go:embed policy.schema.json
var policySchemaJSON []byte

var (
	policySchema     *jsonschema.Schema
	policySchemaOnce sync.Once
	policySchemaErr  error
)

func compiledPolicySchema() (*jsonschema.Schema, error) {
	policySchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("policy.schema.json", bytes.NewReader(policySchemaJSON)); err != nil {
			policySchemaErr = err
			return
		}
		policySchema, policySchemaErr = compiler.Compile("policy.schema.json")
	})
	return policySchema, policySchemaErr
}

// LoadPolicy reads a YAML probe policy, validates it against the
// embedded schema, and merges it over the built-in defaults. An empty
// path returns the defaults untouched.
func LoadPolicy(path string) (*focus.Policy, error) {
	if path == "" {
		return focus.DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}

	var pol focus.Policy
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	if err := validatePolicySchema(&pol); err != nil {
		return nil, err
	}
	if err := pol.Validate(); err != nil {
		return nil, err
	}

	merged := mergePolicy(focus.DefaultPolicy(), &pol)
	return merged, nil
}

// validatePolicySchema round-trips the policy through JSON so the
// schema checker sees canonical types regardless of YAML quirks.
func validatePolicySchema(pol *focus.Policy) error {
	schema, err := compiledPolicySchema()
	if err != nil {
		return fmt.Errorf("compile policy schema: %w", err)
	}

	raw, err := json.Marshal(pol)
	if err != nil {
		return fmt.Errorf("encode policy: %w", err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("decode policy: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("policy schema: %w", err)
	}
	return nil
}

// mergePolicy lays user chains over the built-in defaults: declared
// chains replace, undeclared chains survive.
func mergePolicy(base, user *focus.Policy) *focus.Policy {
	out := *base
	if user.Version > 0 {
		out.Version = user.Version
	}
	if len(user.Defaults.URL) > 0 {
		out.Defaults.URL = user.Defaults.URL
	}
	if len(user.Defaults.Document) > 0 {
		out.Defaults.Document = user.Defaults.Document
	}
	if len(user.Defaults.SelectedText) > 0 {
		out.Defaults.SelectedText = user.Defaults.SelectedText
	}

	out.Apps = make(map[string]focus.AppPolicy, len(base.Apps)+len(user.Apps))
	for id, app := range base.Apps {
		out.Apps[id] = app
	}
	for id, app := range user.Apps {
		out.Apps[id] = app
	}
	return &out
}

// PolicyWatcher hot-reloads a probe policy file.
type PolicyWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*focus.Policy)
	errChan  chan error
	cancel   context.CancelFunc
}

// WatchPolicy starts watching path and invokes onChange with each
// successfully reloaded policy. Invalid versions are reported on the
// error channel and skipped.
func WatchPolicy(path string, onChange func(*focus.Policy)) (*PolicyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &PolicyWatcher{
		path:     path,
		watcher:  watcher,
		onChange: onChange,
		errChan:  make(chan error, 1),
		cancel:   cancel,
	}
	go w.loop(ctx)
	return w, nil
}

func (w *PolicyWatcher) loop(ctx context.Context) {
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errChan <- err:
			default:
			}
		}
	}
}

func (w *PolicyWatcher) reload() {
	pol, err := LoadPolicy(w.path)
	if err != nil {
		select {
		case w.errChan <- fmt.Errorf("reload policy: %w", err):
		default:
		}
		return
	}
	w.onChange(pol)
}

// Errors returns a channel of watch and reload errors.
func (w *PolicyWatcher) Errors() <-chan error {
	return w.errChan
}

// Close stops the watcher.
func (w *PolicyWatcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}
