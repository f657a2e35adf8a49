package events

import (
	"strings"
	"sync"

	"bountychain/core/types"
)

// payloadCarrier is implemented by module event wrappers that expose the
// underlying attribute payload alongside the event type.
type payloadCarrier interface {
	Event() *types.Event
}

// BufferEntry is a single recorded event with its assigned sequence number.
type BufferEntry struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Buffer is an in-memory emitter retaining the most recent events so the RPC
// layer can serve event queries without an external indexer. It is safe for
// concurrent use.
type Buffer struct {
	mu      sync.Mutex
	next    uint64
	limit   int
	entries []BufferEntry
}

// NewBuffer creates a buffer retaining at most capacity events. A
// non-positive capacity falls back to 1024.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Buffer{limit: capacity}
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	entry := BufferEntry{Type: evt.EventType(), Attributes: map[string]string{}}
	if carrier, ok := evt.(payloadCarrier); ok {
		if payload := carrier.Event(); payload != nil {
			entry.Type = payload.Type
			for k, v := range payload.Attributes {
				entry.Attributes[k] = v
			}
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	entry.Sequence = b.next
	b.entries = append(b.entries, entry)
	if len(b.entries) > b.limit {
		b.entries = b.entries[len(b.entries)-b.limit:]
	}
}

// List returns retained events in emission order, optionally filtered by a
// type prefix and truncated to the most recent limit entries. A non-positive
// limit returns everything retained.
func (b *Buffer) List(prefix string, limit int) []BufferEntry {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BufferEntry, 0, len(b.entries))
	for _, entry := range b.entries {
		if prefix != "" && !strings.HasPrefix(entry.Type, prefix) {
			continue
		}
		clone := BufferEntry{Sequence: entry.Sequence, Type: entry.Type, Attributes: map[string]string{}}
		for k, v := range entry.Attributes {
			clone.Attributes[k] = v
		}
		out = append(out, clone)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
