package clipboard

import "sync"

// SimulatedPasteboard is an in-memory Pasteboard for tests. It counts
// Read calls so the O(1) unchanged-poll property can be asserted.
type SimulatedPasteboard struct {
	mu        sync.Mutex
	count     int64
	data      map[Format][]byte
	readCalls int
}

// NewSimulatedPasteboard creates an empty pasteboard at change count 0.
func NewSimulatedPasteboard() *SimulatedPasteboard {
	return &SimulatedPasteboard{data: make(map[Format][]byte)}
}

// Put replaces the pasteboard contents and bumps the change counter,
// like a user copy.
func (p *SimulatedPasteboard) Put(contents map[Format][]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = make(map[Format][]byte, len(contents))
	for f, b := range contents {
		p.data[f] = b
	}
	p.count++
}

// PutText is a convenience wrapper for a plain-text copy.
func (p *SimulatedPasteboard) PutText(s string) {
	p.Put(map[Format][]byte{FormatText: []byte(s)})
}

// ReadCalls returns how many format extractions were performed.
func (p *SimulatedPasteboard) ReadCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readCalls
}

// Pasteboard implementation.

func (p *SimulatedPasteboard) ChangeCount() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *SimulatedPasteboard) Read(f Format) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readCalls++
	b, ok := p.data[f]
	return b, ok
}

var _ Pasteboard = (*SimulatedPasteboard)(nil)
