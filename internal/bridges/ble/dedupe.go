package ble

import (
	"context"
	"time"

	bleadv "github.com/nerrad567/gray-logic-radio/internal/ble"
)

// Deduper decides whether a decoded record is new or a repeat of the last
// packet seen from the same device.
type Deduper interface {
	// Fresh reports whether rec has not been seen from address before.
	// Records without a packet counter are always fresh.
	Fresh(ctx context.Context, address string, rec bleadv.Record) (bool, error)
}

// MemoryDeduper keeps packet counters in process memory.
type MemoryDeduper struct {
	tracker *bleadv.SequenceTracker
}

// NewMemoryDeduper creates an in-process deduper.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{tracker: bleadv.NewSequenceTracker()}
}

// Fresh implements Deduper.
func (d *MemoryDeduper) Fresh(_ context.Context, address string, rec bleadv.Record) (bool, error) {
	return d.tracker.ObserveRecord(address, rec), nil
}

// Len returns the number of tracked counters.
func (d *MemoryDeduper) Len() int { return d.tracker.Len() }

// SequenceStore is a shared last-counter store. Satisfied by *redis.Client.
type SequenceStore interface {
	ObserveSequence(ctx context.Context, key string, seq uint32, ttl time.Duration) (bool, error)
}

// SharedDeduper keeps packet counters in a store shared by several gateway
// instances, so overlapping scanners do not double-report a packet.
type SharedDeduper struct {
	store SequenceStore
	ttl   time.Duration
}

// NewSharedDeduper creates a deduper over store. Counters expire after ttl.
func NewSharedDeduper(store SequenceStore, ttl time.Duration) *SharedDeduper {
	return &SharedDeduper{store: store, ttl: ttl}
}

// Fresh implements Deduper.
func (d *SharedDeduper) Fresh(ctx context.Context, address string, rec bleadv.Record) (bool, error) {
	seq, ok := rec.Sequence()
	if !ok {
		return true, nil
	}
	return d.store.ObserveSequence(ctx, sequenceKey(address, rec.Kind()), seq, d.ttl)
}

// sequenceKey matches the key layout of SequenceTracker.ObserveRecord.
func sequenceKey(address string, kind bleadv.Kind) string {
	return address + "/" + string(kind)
}
