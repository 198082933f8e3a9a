package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhotin/parley/internal/core"
	"github.com/okhotin/parley/internal/domain"
)

func testCursor() *core.Cursor {
	room := core.NewRoomService(&domain.Room{ID: "000042"}, 100)
	return core.NewCursor(room, "alice")
}

func TestRegistryBindAndSession(t *testing.T) {
	r := NewRegistry()
	cursor := testCursor()

	r.Bind("sid-1", "000042", "alice", cursor)

	roomID, nick, got, ok := r.Session("sid-1")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("000042"), roomID)
	assert.Equal(t, "alice", nick)
	assert.Same(t, cursor, got)

	_, _, _, ok = r.Session("sid-2")
	assert.False(t, ok)
}

func TestRegistryBindReplaceCancelsPreviousLoop(t *testing.T) {
	r := NewRegistry()
	r.Bind("sid-1", "000042", "alice", testCursor())

	var canceled int
	require.True(t, r.AttachCancel("sid-1", func() { canceled++ }))

	r.Bind("sid-1", "000043", "alice", testCursor())
	assert.Equal(t, 1, canceled, "rebinding stops the old delivery loop")
}

func TestRegistryAttachCancelReplacesAndStopsPrevious(t *testing.T) {
	r := NewRegistry()
	r.Bind("sid-1", "000042", "alice", testCursor())

	var first, second int
	require.True(t, r.AttachCancel("sid-1", func() { first++ }))
	require.True(t, r.AttachCancel("sid-1", func() { second++ }))
	assert.Equal(t, 1, first, "a second live stream stops the first poller")
	assert.Equal(t, 0, second)

	r.Unbind("sid-1")
	assert.Equal(t, 1, second, "unbind stops the current poller")
}

func TestRegistryAttachCancelUnknownSession(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.AttachCancel("sid-9", func() {}))
}
