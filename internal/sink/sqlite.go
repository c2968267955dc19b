package sink

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"focusd/internal/clipboard"
	"focusd/internal/focus"
)

// Schema for the focusd event archive.
const schema = `
CREATE TABLE IF NOT EXISTS transitions (
    id            TEXT PRIMARY KEY,
    entered_ns    INTEGER NOT NULL,
    pid           INTEGER NOT NULL,
    bundle_id     TEXT NOT NULL,
    app_name      TEXT NOT NULL,
    window_title  TEXT,
    tab_title     TEXT,
    url           TEXT,
    dwell_ms      INTEGER NOT NULL,
    payload       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_entered ON transitions(entered_ns);
CREATE INDEX IF NOT EXISTS idx_transitions_bundle ON transitions(bundle_id, entered_ns);

CREATE TABLE IF NOT EXISTS clipboard_changes (
    id            TEXT PRIMARY KEY,
    captured_ns   INTEGER NOT NULL,
    change_count  INTEGER NOT NULL,
    format_count  INTEGER NOT NULL,
    payload       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_clipboard_captured ON clipboard_changes(captured_ns);
`

// Archive persists emitted events in SQLite. Payloads are stored both
// as queryable columns and as the full JSON wire form.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens or creates the archive database at path.
func OpenArchive(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Transition(tr *focus.Transition) error {
	payload, err := json.Marshal(transitionEnvelope{Event: "transition", Transition: tr})
	if err != nil {
		return fmt.Errorf("encode transition: %w", err)
	}
	_, err = a.db.Exec(`
		INSERT INTO transitions (id, entered_ns, pid, bundle_id, app_name, window_title, tab_title, url, dwell_ms, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.To.EnteredAt.UnixNano(), tr.To.PID, tr.To.BundleID, tr.To.AppName,
		tr.To.WindowTitle, tr.To.TabTitle, tr.To.URL, tr.DwellMs, string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

func (a *Archive) Clipboard(snap *clipboard.Snapshot) error {
	payload, err := json.Marshal(clipboardEnvelope{Event: "clipboard", Snapshot: snap})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = a.db.Exec(`
		INSERT INTO clipboard_changes (id, captured_ns, change_count, format_count, payload)
		VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.CapturedAt.UnixNano(), snap.ChangeCount, len(snap.Formats), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// TransitionCount returns the number of archived transitions.
func (a *Archive) TransitionCount() (int64, error) {
	var n int64
	err := a.db.QueryRow(`SELECT COUNT(*) FROM transitions`).Scan(&n)
	return n, err
}

// RecentTransitions returns the latest n archived transitions, newest
// first, decoded from their stored wire form.
func (a *Archive) RecentTransitions(n int) ([]*focus.Transition, error) {
	rows, err := a.db.Query(`SELECT payload FROM transitions ORDER BY entered_ns DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []*focus.Transition
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var env transitionEnvelope
		env.Transition = &focus.Transition{}
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			return nil, fmt.Errorf("decode archived transition: %w", err)
		}
		out = append(out, env.Transition)
	}
	return out, rows.Err()
}

func (a *Archive) Close() error {
	return a.db.Close()
}
