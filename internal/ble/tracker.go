package ble

import (
	"strings"
	"sync"
)

// SequenceTracker remembers the last packet counter seen per device so
// repeated advertisements can be dropped. It is owned by the caller; the
// decoders never touch it.
//
// Thread Safety: safe for concurrent use.
type SequenceTracker struct {
	mu   sync.Mutex
	last map[string]uint32
}

// NewSequenceTracker creates an empty tracker.
func NewSequenceTracker() *SequenceTracker {
	return &SequenceTracker{last: make(map[string]uint32)}
}

// Observe records seq for address and reports whether it differs from the
// previous value. The first observation of an address is always new.
func (t *SequenceTracker) Observe(address string, seq uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.last[address]
	t.last[address] = seq
	return !ok || prev != seq
}

// ObserveRecord is Observe for a record's own counter. Records without a
// counter are always new.
func (t *SequenceTracker) ObserveRecord(address string, rec Record) bool {
	seq, ok := rec.Sequence()
	if !ok {
		return true
	}
	return t.Observe(address+"/"+string(rec.Kind()), seq)
}

// Forget drops the state for address, including per-kind counters.
func (t *SequenceTracker) Forget(address string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.last {
		if k == address || strings.HasPrefix(k, address+"/") {
			delete(t.last, k)
		}
	}
}

// Len returns the number of tracked keys.
func (t *SequenceTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}
