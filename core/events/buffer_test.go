package events

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"bountychain/core/types"
)

type testEvent struct {
	payload *types.Event
}

func (e testEvent) EventType() string { return e.payload.Type }

func (e testEvent) Event() *types.Event { return e.payload }

func newTestEvent(eventType, key, value string) testEvent {
	return testEvent{payload: &types.Event{
		Type:       eventType,
		Attributes: map[string]string{key: value},
	}}
}

func TestBufferRetainsAndFilters(t *testing.T) {
	buf := NewBuffer(8)
	buf.Emit(newTestEvent("bounty.created", "id", "1"))
	buf.Emit(newTestEvent("bounty.claimed", "id", "1"))
	buf.Emit(newTestEvent("other.event", "id", "2"))

	all := buf.List("", 0)
	require.Len(t, all, 3)
	require.Equal(t, uint64(1), all[0].Sequence)
	require.Equal(t, "bounty.created", all[0].Type)
	require.Equal(t, "1", all[0].Attributes["id"])

	filtered := buf.List("bounty.", 0)
	require.Len(t, filtered, 2)
	for _, entry := range filtered {
		require.Contains(t, entry.Type, "bounty.")
	}
}

func TestBufferLimit(t *testing.T) {
	buf := NewBuffer(8)
	for i := 0; i < 5; i++ {
		buf.Emit(newTestEvent("bounty.created", "n", fmt.Sprintf("%d", i)))
	}
	recent := buf.List("", 2)
	require.Len(t, recent, 2)
	require.Equal(t, uint64(4), recent[0].Sequence)
	require.Equal(t, uint64(5), recent[1].Sequence)
}

func TestBufferEvictsOldest(t *testing.T) {
	buf := NewBuffer(3)
	for i := 0; i < 5; i++ {
		buf.Emit(newTestEvent("bounty.created", "n", fmt.Sprintf("%d", i)))
	}
	all := buf.List("", 0)
	require.Len(t, all, 3)
	require.Equal(t, uint64(3), all[0].Sequence)
	require.Equal(t, uint64(5), all[2].Sequence)
}

func TestBufferCopiesAttributes(t *testing.T) {
	buf := NewBuffer(4)
	buf.Emit(newTestEvent("bounty.created", "id", "1"))
	first := buf.List("", 0)
	first[0].Attributes["id"] = "tampered"

	again := buf.List("", 0)
	require.Equal(t, "1", again[0].Attributes["id"])
}
