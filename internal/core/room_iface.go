package core

import (
	"github.com/okhotin/parley/internal/domain"
)

// PositionedMessage is a message paired with its absolute position in the
// room log. Positions only grow for the life of a room; trimming never
// renumbers surviving messages.
type PositionedMessage struct {
	Position int            `json:"position"`
	Message  domain.Message `json:"message"`
}

// RoomService is the core-facing API of a room. It owns the message log and
// the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room

	// Append adds a message to the log and returns its absolute position.
	// A single append triggers at most one trim.
	Append(msg domain.Message) int
	// ReadSince returns a snapshot copy of every message at position >= pos.
	// A pos older than the oldest retained message is clamped to it.
	ReadSince(pos int) []PositionedMessage
	// Count is the absolute position the next appended message will get.
	Count() int
	// MessageCount is the number of retained (untrimmed) messages.
	MessageCount() int

	Join(nick string) error
	// Leave reports whether the nickname was present. Removing an absent
	// nickname is a no-op.
	Leave(nick string) bool
	Members() []string
	MemberCount() int

	Snapshot() RoomState
}

// RoomState is the durable form of one room.
type RoomState struct {
	ID       domain.RoomID    `json:"id"`
	Base     int              `json:"base"`
	Messages []domain.Message `json:"messages"`
	Members  []string         `json:"members"`
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
	Messages    int           `json:"messages"`
}

// RoomManager is the registry of live rooms.
type RoomManager interface {
	Create() (domain.RoomID, error)
	Lookup(id domain.RoomID) (RoomService, error)
	Join(id domain.RoomID, nick string) (RoomService, error)
	Leave(id domain.RoomID, nick string) error
	Append(id domain.RoomID, msg domain.Message) (int, error)
	List() []RoomInfo
}

// Consumer receives a poll delta in order. Implementations belong to the
// presentation side; the core never blocks on them holding a room lock.
type Consumer interface {
	OnNewMessage(sender, body string)
	OnMembershipChange(event, nick string)
}
