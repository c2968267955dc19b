// Package sink serializes the event stream. One line per event, either
// JSON objects or formatted text, plus an optional SQLite archive.
//
// Sinks are the only consumers of transition and clipboard records; the
// engine hands each record to exactly one Sink (possibly a MultiSink)
// and never serializes anything itself.
package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"focusd/internal/clipboard"
	"focusd/internal/focus"
)

// Sink consumes emitted events.
type Sink interface {
	Transition(tr *focus.Transition) error
	Clipboard(snap *clipboard.Snapshot) error
	Close() error
}

// transitionEnvelope is the JSON wire form of a transition record.
type transitionEnvelope struct {
	Event string `json:"event"`
	*focus.Transition
}

// clipboardEnvelope is the JSON wire form of a clipboard snapshot.
type clipboardEnvelope struct {
	Event string `json:"event"`
	*clipboard.Snapshot
}

// JSONSink writes one JSON object per line.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
	w   io.Writer
}

// NewJSONSink creates a line-oriented JSON sink over w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w), w: w}
}

func (s *JSONSink) Transition(tr *focus.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(transitionEnvelope{Event: "transition", Transition: tr})
}

func (s *JSONSink) Clipboard(snap *clipboard.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(clipboardEnvelope{Event: "clipboard", Snapshot: snap})
}

func (s *JSONSink) Close() error { return nil }

// TextSink writes one human-readable line per event.
type TextSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextSink creates a formatted text sink over w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) Transition(tr *focus.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "%s transition %s -> %s dwell=%dms",
		tr.To.EnteredAt.Format(time.RFC3339),
		describe(tr.From), describe(tr.To), tr.DwellMs)
	if tr.To.WindowTitle != "" {
		fmt.Fprintf(&b, " window=%q", tr.To.WindowTitle)
	}
	if tr.To.TabTitle != "" {
		fmt.Fprintf(&b, " tab=%q", tr.To.TabTitle)
	}
	if tr.To.URL != "" {
		fmt.Fprintf(&b, " url=%s", tr.To.URL)
	}
	b.WriteByte('\n')
	_, err := io.WriteString(s.w, b.String())
	return err
}

func (s *TextSink) Clipboard(snap *clipboard.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make([]string, 0, len(snap.Formats))
	for _, f := range snap.Formats {
		types = append(types, fmt.Sprintf("%s(%d)", f.Type, f.Size))
	}
	_, err := fmt.Fprintf(s.w, "%s clipboard #%d formats=[%s]\n",
		snap.CapturedAt.Format(time.RFC3339),
		snap.ChangeCount, strings.Join(types, " "))
	return err
}

func (s *TextSink) Close() error { return nil }

// describe renders a context for the text form. The empty startup
// context renders as a dash.
func describe(c focus.Context) string {
	if c.Empty() {
		return "-"
	}
	if c.AppName != "" {
		return c.AppName
	}
	if c.BundleID != "" {
		return c.BundleID
	}
	return fmt.Sprintf("pid:%d", c.PID)
}

// MultiSink fans each event out to every member, collecting errors.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. Nil members are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiSink) Transition(tr *focus.Transition) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Transition(tr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Clipboard(snap *clipboard.Snapshot) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Clipboard(snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
