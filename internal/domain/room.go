// Package domain contains entity without logic, just meta-data
package domain

import "fmt"

const (
	// RoomIDLen is the fixed width of a room identifier.
	RoomIDLen = 6
	// RoomIDSpace is the number of assignable room identifiers.
	RoomIDSpace = 1_000_000
)

type RoomID string

type Room struct {
	ID RoomID
}

// FormatRoomID renders n as a zero-padded 6-digit identifier.
func FormatRoomID(n int) RoomID {
	return RoomID(fmt.Sprintf("%06d", n))
}

// ValidRoomID reports whether id has the canonical 6-digit shape.
func ValidRoomID(id RoomID) bool {
	if len(id) != RoomIDLen {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
