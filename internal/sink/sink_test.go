package sink

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/internal/clipboard"
	"focusd/internal/focus"
)

func sampleTransition() *focus.Transition {
	at := time.Date(2026, 3, 1, 9, 0, 2, 0, time.UTC)
	return &focus.Transition{
		ID: "01JXAMPLE0000000000000000",
		From: focus.Context{
			PID: 100, BundleID: "com.apple.Safari", AppName: "Safari",
			WindowTitle: "GitHub", EnteredAt: at.Add(-2 * time.Second),
		},
		To: focus.Context{
			PID: 200, BundleID: "com.apple.TextEdit", AppName: "TextEdit",
			WindowTitle: "notes.txt", EnteredAt: at,
		},
		Dwell:   2 * time.Second,
		DwellMs: 2000,
	}
}

func sampleSnapshot() *clipboard.Snapshot {
	return &clipboard.Snapshot{
		ID:          "01JXAMPLE0000000000000001",
		ChangeCount: 1271,
		Formats: []clipboard.FormatEntry{
			{Type: "text", Size: 11, Preview: "Hello World"},
		},
		PrimaryText: "Hello World",
		CapturedAt:  time.Date(2026, 3, 1, 9, 0, 3, 0, time.UTC),
	}
}

func TestJSONSinkWireShape(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONSink(&buf)

	require.NoError(t, s.Transition(sampleTransition()))
	require.NoError(t, s.Clipboard(sampleSnapshot()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var tr map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &tr))
	assert.Equal(t, "transition", tr["event"])
	assert.Equal(t, float64(2000), tr["dwell_ms"])
	to, ok := tr["to"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "com.apple.TextEdit", to["bundle_id"])

	var cb map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &cb))
	assert.Equal(t, "clipboard", cb["event"])
	assert.Equal(t, float64(1271), cb["change_count"])
	assert.Equal(t, "Hello World", cb["primary_text"])
}

func TestTextSinkLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf)

	require.NoError(t, s.Transition(sampleTransition()))
	require.NoError(t, s.Clipboard(sampleSnapshot()))

	out := buf.String()
	assert.Contains(t, out, "transition Safari -> TextEdit dwell=2000ms")
	assert.Contains(t, out, `window="notes.txt"`)
	assert.Contains(t, out, "clipboard #1271")
	assert.Contains(t, out, "text(11)")
}

func TestTextSinkEmptyFromContext(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf)

	tr := sampleTransition()
	tr.From = focus.Context{}
	require.NoError(t, s.Transition(tr))
	assert.Contains(t, buf.String(), "transition - -> TextEdit")
}

func TestArchiveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	a, err := OpenArchive(path)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Transition(sampleTransition()))
	require.NoError(t, a.Clipboard(sampleSnapshot()))

	n, err := a.TransitionCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recent, err := a.RecentTransitions(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "com.apple.TextEdit", recent[0].To.BundleID)
	assert.Equal(t, int64(2000), recent[0].DwellMs)
}

func TestMultiSinkFansOut(t *testing.T) {
	var a, b bytes.Buffer
	m := NewMultiSink(NewJSONSink(&a), NewTextSink(&b), nil)

	require.NoError(t, m.Transition(sampleTransition()))
	require.NoError(t, m.Close())

	assert.Contains(t, a.String(), `"event":"transition"`)
	assert.Contains(t, b.String(), "transition Safari")
}
