package core

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/okhotin/parley/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
//
// Positions handed out by Append are absolute: base counts the messages
// trimmed from the head, so message log[i] sits at position base+i. Readers
// holding a position older than base are clamped to base and resume at the
// oldest retained message.
type roomImpl struct {
	room *domain.Room
	cap  int

	mu      sync.RWMutex
	base    int
	log     []domain.Message
	members map[string]struct{}
}

// NewRoomService creates an empty room whose log is trimmed once it grows
// past maxMessages.
func NewRoomService(room *domain.Room, maxMessages int) RoomService {
	return &roomImpl{
		room:    room,
		cap:     maxMessages,
		members: make(map[string]struct{}),
	}
}

// RestoreRoomService rebuilds a room from its durable state.
func RestoreRoomService(state RoomState, maxMessages int) RoomService {
	r := &roomImpl{
		room:    &domain.Room{ID: state.ID},
		cap:     maxMessages,
		base:    state.Base,
		log:     append([]domain.Message(nil), state.Messages...),
		members: make(map[string]struct{}, len(state.Members)),
	}
	for _, nick := range state.Members {
		r.members[nick] = struct{}{}
	}
	return r
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) Append(msg domain.Message) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendLocked(msg)
}

func (r *roomImpl) appendLocked(msg domain.Message) int {
	r.log = append(r.log, msg)
	pos := r.base + len(r.log) - 1
	if len(r.log) > r.cap {
		drop := len(r.log) / 2
		r.log = append([]domain.Message(nil), r.log[drop:]...)
		r.base += drop
		log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).
			Int("dropped", drop).Int("base", r.base).Msg("log trimmed")
	}
	return pos
}

func (r *roomImpl) ReadSince(pos int) []PositionedMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if pos < r.base {
		pos = r.base
	}
	idx := pos - r.base
	if idx >= len(r.log) {
		return nil
	}
	out := make([]PositionedMessage, 0, len(r.log)-idx)
	for i := idx; i < len(r.log); i++ {
		out = append(out, PositionedMessage{Position: r.base + i, Message: r.log[i]})
	}
	return out
}

func (r *roomImpl) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.base + len(r.log)
}

func (r *roomImpl) MessageCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.log)
}

func (r *roomImpl) Join(nick string) error {
	if err := domain.ValidateNickname(nick); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[nick]; ok {
		return domain.ErrNicknameTaken
	}
	r.members[nick] = struct{}{}
	r.appendLocked(domain.NewJoin(nick))
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).
		Str("nick", nick).Msg("member joined")
	return nil
}

func (r *roomImpl) Leave(nick string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[nick]; !ok {
		return false
	}
	delete(r.members, nick)
	r.appendLocked(domain.NewLeave(nick))
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).
		Str("nick", nick).Msg("member left")
	return true
}

func (r *roomImpl) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.members))
	for nick := range r.members {
		out = append(out, nick)
	}
	sort.Strings(out)
	return out
}

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *roomImpl) Snapshot() RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state := RoomState{
		ID:       r.room.ID,
		Base:     r.base,
		Messages: append([]domain.Message(nil), r.log...),
		Members:  make([]string, 0, len(r.members)),
	}
	for nick := range r.members {
		state.Members = append(state.Members, nick)
	}
	sort.Strings(state.Members)
	return state
}
