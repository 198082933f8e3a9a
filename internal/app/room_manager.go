package app

import (
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/okhotin/parley/internal/core"
	"github.com/okhotin/parley/internal/domain"
)

// LobbyRoomID always exists, even on a fresh start with no snapshot.
const LobbyRoomID = domain.RoomID("000000")

// RoomManagerImpl tracks every room ever created in this process's durable
// state. Rooms are never deleted and IDs never reused.
type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService

	maxMessages int
	idSpace     int
	dirty       func()
}

// NewRoomManager creates an empty registry. dirty is invoked after every
// durable mutation so the persistence gateway can schedule a snapshot; nil
// disables notification.
func NewRoomManager(maxMessages int, dirty func()) *RoomManagerImpl {
	if dirty == nil {
		dirty = func() {}
	}
	return &RoomManagerImpl{
		rooms:       make(map[domain.RoomID]core.RoomService),
		maxMessages: maxMessages,
		idSpace:     domain.RoomIDSpace,
		dirty:       dirty,
	}
}

// Restore loads rooms from a snapshot and guarantees the lobby room exists.
// Must be called before the registry serves requests.
func (m *RoomManagerImpl) Restore(states []core.RoomState) {
	m.mu.Lock()
	for _, st := range states {
		if !domain.ValidRoomID(st.ID) {
			log.Warn().Str("module", "app.rooms").Str("room", string(st.ID)).Msg("skipping snapshot room with malformed id")
			continue
		}
		m.rooms[st.ID] = core.RestoreRoomService(st, m.maxMessages)
	}
	_, hasLobby := m.rooms[LobbyRoomID]
	if !hasLobby {
		m.rooms[LobbyRoomID] = core.NewRoomService(&domain.Room{ID: LobbyRoomID}, m.maxMessages)
	}
	m.mu.Unlock()

	if !hasLobby {
		m.dirty()
	}
	log.Info().Str("module", "app.rooms").Int("rooms", len(states)).Msg("registry restored")
}

// Create allocates a fresh 6-digit room ID, regenerating on collision. Once
// every ID is live it fails with ErrRoomIDsExhausted instead of spinning.
func (m *RoomManagerImpl) Create() (domain.RoomID, error) {
	m.mu.Lock()
	if len(m.rooms) >= m.idSpace {
		m.mu.Unlock()
		return "", domain.ErrRoomIDsExhausted
	}
	var id domain.RoomID
	for {
		id = domain.FormatRoomID(rand.IntN(m.idSpace))
		if _, taken := m.rooms[id]; !taken {
			break
		}
	}
	m.rooms[id] = core.NewRoomService(&domain.Room{ID: id}, m.maxMessages)
	m.mu.Unlock()

	m.dirty()
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return id, nil
}

func (m *RoomManagerImpl) Lookup(id domain.RoomID) (core.RoomService, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// Join adds nick to the room and returns the live handle used for polling.
func (m *RoomManagerImpl) Join(id domain.RoomID, nick string) (core.RoomService, error) {
	room, err := m.Lookup(id)
	if err != nil {
		return nil, err
	}
	if err := room.Join(nick); err != nil {
		return nil, err
	}
	m.dirty()
	return room, nil
}

// Leave is idempotent: a nickname already absent is a no-op, since
// disconnects can race the explicit leave.
func (m *RoomManagerImpl) Leave(id domain.RoomID, nick string) error {
	room, err := m.Lookup(id)
	if err != nil {
		return err
	}
	if room.Leave(nick) {
		m.dirty()
	}
	return nil
}

// Append adds a message to the room's log and schedules a snapshot.
func (m *RoomManagerImpl) Append(id domain.RoomID, msg domain.Message) (int, error) {
	room, err := m.Lookup(id)
	if err != nil {
		return 0, err
	}
	pos := room.Append(msg)
	m.dirty()
	return pos, nil
}

func (m *RoomManagerImpl) List() []core.RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(m.rooms))
	for id, room := range m.rooms {
		out = append(out, core.RoomInfo{
			ID:          id,
			MemberCount: room.MemberCount(),
			Messages:    room.MessageCount(),
		})
	}
	return out
}

// Snapshot copies the durable state of every room. The copy is taken under
// per-room read locks; callers perform file I/O on it without blocking
// appends or pollers.
func (m *RoomManagerImpl) Snapshot() []core.RoomState {
	m.mu.RLock()
	rooms := make([]core.RoomService, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.RUnlock()

	out := make([]core.RoomState, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Snapshot())
	}
	return out
}
