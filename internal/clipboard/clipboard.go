// Package clipboard detects pasteboard changes via the system change
// counter and captures a snapshot of the declared data formats.
//
// The change counter is the cheap path: a poll that finds the counter
// unchanged reads no formats at all. Only on a counter advance is each
// declared format extracted once and folded into an immutable Snapshot.
// Associating a snapshot with the focus context that produced it is the
// reconciler's job, not this package's.
package clipboard

import (
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// Format identifies one pasteboard data format (UTI on macOS).
type Format string

const (
	FormatText    Format = "public.utf8-plain-text"
	FormatHTML    Format = "public.html"
	FormatRTF     Format = "public.rtf"
	FormatPNG     Format = "public.png"
	FormatJPEG    Format = "public.jpeg"
	FormatTIFF    Format = "public.tiff"
	FormatFileURL Format = "public.file-url"
	FormatURL     Format = "public.url"
)

// DeclaredFormats is the fixed extraction list, in capture order.
var DeclaredFormats = []Format{
	FormatText,
	FormatHTML,
	FormatRTF,
	FormatPNG,
	FormatJPEG,
	FormatTIFF,
	FormatFileURL,
	FormatURL,
}

// shortName maps a format onto the wire "type" label.
func (f Format) shortName() string {
	switch f {
	case FormatText:
		return "text"
	case FormatHTML:
		return "html"
	case FormatRTF:
		return "rtf"
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	case FormatTIFF:
		return "tiff"
	case FormatFileURL:
		return "file-url"
	case FormatURL:
		return "url"
	default:
		return string(f)
	}
}

// textual reports whether the format's bytes are safe to preview.
func (f Format) textual() bool {
	switch f {
	case FormatText, FormatHTML, FormatRTF, FormatFileURL, FormatURL:
		return true
	default:
		return false
	}
}

// Pasteboard is the platform pasteboard call surface.
type Pasteboard interface {
	// ChangeCount returns the monotonically increasing change counter.
	ChangeCount() int64

	// Read extracts the raw bytes for one format; ok is false when the
	// pasteboard carries no data in that format.
	Read(f Format) ([]byte, bool)
}

// FormatEntry describes one format present in a snapshot.
type FormatEntry struct {
	Type    string `json:"type"`
	Size    int    `json:"size"`
	Preview string `json:"preview,omitempty"`
}

// Snapshot is an immutable capture of the pasteboard at one change count.
// It is superseded, never mutated, by the next detected change.
type Snapshot struct {
	ID          string        `json:"id"`
	ChangeCount int64         `json:"change_count"`
	Formats     []FormatEntry `json:"formats"`
	PrimaryText string        `json:"primary_text,omitempty"`
	CapturedAt  time.Time     `json:"captured_at"`
}

// previewLimit bounds the preview length in runes.
const previewLimit = 64

// Detector polls a Pasteboard and yields a Snapshot per change.
type Detector struct {
	pb   Pasteboard
	last int64
	now  func() time.Time
}

// NewDetector creates a detector. The initial change count is recorded so
// content already on the pasteboard at startup is not reported as a
// change.
func NewDetector(pb Pasteboard) *Detector {
	return &Detector{
		pb:   pb,
		last: pb.ChangeCount(),
		now:  time.Now,
	}
}

// Poll returns a Snapshot if the pasteboard changed since the last poll,
// nil otherwise. The unchanged path costs one counter read and zero
// format extractions.
func (d *Detector) Poll() *Snapshot {
	count := d.pb.ChangeCount()
	if count == d.last {
		return nil
	}
	d.last = count

	snap := &Snapshot{
		ID:          ulid.MustNew(ulid.Timestamp(d.now()), ulid.DefaultEntropy()).String(),
		ChangeCount: count,
		CapturedAt:  d.now(),
	}
	for _, f := range DeclaredFormats {
		data, ok := d.pb.Read(f)
		if !ok {
			continue
		}
		entry := FormatEntry{Type: f.shortName(), Size: len(data)}
		if f.textual() {
			entry.Preview = preview(data)
		}
		snap.Formats = append(snap.Formats, entry)
		if f == FormatText {
			snap.PrimaryText = string(data)
		}
	}
	return snap
}

// LastCount returns the change count of the last observed state.
func (d *Detector) LastCount() int64 {
	return d.last
}

func preview(data []byte) string {
	s := string(data)
	if !utf8.ValidString(s) {
		return ""
	}
	runes := []rune(s)
	if len(runes) > previewLimit {
		return string(runes[:previewLimit])
	}
	return s
}
