package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/okhotin/parley/internal/core"
	"github.com/okhotin/parley/internal/domain"
)

// SessionID is the opaque client token carried in the "ct" cookie.
type SessionID string

type sessionEntry struct {
	RoomID domain.RoomID
	Nick   string
	Cursor *core.Cursor
	Cancel context.CancelFunc
}

// Registry tracks which room and nickname each client token is bound to,
// along with the client's read cursor and the cancel func of any live
// delivery loop. Entries are ephemeral and never persisted.
type Registry struct {
	mu       sync.RWMutex
	sessions map[SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[SessionID]*sessionEntry)}
}

// Bind associates a client token with its room, nickname, and cursor,
// replacing any previous binding after canceling its delivery loop.
func (r *Registry) Bind(sid SessionID, roomID domain.RoomID, nick string, cursor *core.Cursor) {
	r.mu.Lock()
	prev := r.sessions[sid]
	r.sessions[sid] = &sessionEntry{RoomID: roomID, Nick: nick, Cursor: cursor}
	r.mu.Unlock()

	if prev != nil && prev.Cancel != nil {
		prev.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).
		Str("room", string(roomID)).Str("nick", nick).Msg("bound session")
}

// AttachCancel stores the cancel func of the session's delivery loop,
// stopping any loop attached earlier so a cursor never feeds two sockets.
func (r *Registry) AttachCancel(sid SessionID, cancel context.CancelFunc) bool {
	r.mu.Lock()
	e, ok := r.sessions[sid]
	var prev context.CancelFunc
	if ok {
		prev = e.Cancel
		e.Cancel = cancel
	}
	r.mu.Unlock()

	if prev != nil {
		prev()
	}
	return ok
}

// Session returns the room, nickname, and cursor bound to sid.
func (r *Registry) Session(sid SessionID) (domain.RoomID, string, *core.Cursor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return "", "", nil, false
	}
	return e.RoomID, e.Nick, e.Cursor, true
}

// Unbind drops the session and cancels its delivery loop, if any.
func (r *Registry) Unbind(sid SessionID) {
	r.mu.Lock()
	e, ok := r.sessions[sid]
	delete(r.sessions, sid)
	r.mu.Unlock()

	if ok && e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbound session")
}
