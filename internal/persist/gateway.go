// Package persist snapshots room and user state to disk and reloads it at
// startup. Snapshots are whole-file overwrites: at most the in-flight
// mutation is lost on a crash, never an earlier one.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/okhotin/parley/internal/core"
)

const (
	roomsFile = "rooms.json"
	usersFile = "users.json"
)

// SnapshotFunc hands the gateway a consistent copy of the current state.
// The copy is taken under the owners' locks; the gateway does file I/O on
// it outside any lock.
type SnapshotFunc func() (rooms []core.RoomState, users map[string]string)

// Gateway owns the snapshot files. Mutators call MarkDirty; a background
// flusher coalesces bursts of notifications into single writes.
type Gateway struct {
	dir    string
	source SnapshotFunc
	notify chan struct{}
}

func NewGateway(dir string) (*Gateway, error) {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return nil, err
	}
	return &Gateway{dir: dir, notify: make(chan struct{}, 1)}, nil
}

// SetSource wires the state owners in. Must be called before Run.
func (g *Gateway) SetSource(source SnapshotFunc) { g.source = source }

// LoadRooms reads the room snapshot. A missing or corrupt file is treated
// as no prior state, never as a startup abort.
func (g *Gateway) LoadRooms() []core.RoomState {
	var rooms []core.RoomState
	if !g.loadJSON(roomsFile, &rooms) {
		return nil
	}
	return rooms
}

// LoadUsers reads the credential table, degrading to empty on any failure.
func (g *Gateway) LoadUsers() map[string]string {
	var users map[string]string
	if !g.loadJSON(usersFile, &users) {
		return nil
	}
	return users
}

// MarkDirty schedules a snapshot write. Never blocks: a pending
// notification already covers this mutation.
func (g *Gateway) MarkDirty() {
	select {
	case g.notify <- struct{}{}:
	default:
	}
}

// Run flushes on every notification until ctx is canceled, then performs a
// final flush so a clean shutdown loses nothing.
func (g *Gateway) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			g.Flush()
			log.Info().Str("module", "persist").Msg("gateway stopped")
			return
		case <-g.notify:
			g.Flush()
		}
	}
}

// Flush writes both snapshots. An unrecoverable write failure (disk full,
// permissions) is surfaced to the operator via the error log.
func (g *Gateway) Flush() {
	rooms, users := g.source()
	if err := g.writeJSON(roomsFile, rooms); err != nil {
		log.Error().Str("module", "persist").Err(err).Msg("room snapshot write failed")
	}
	if err := g.writeJSON(usersFile, users); err != nil {
		log.Error().Str("module", "persist").Err(err).Msg("user snapshot write failed")
	}
}

func (g *Gateway) loadJSON(name string, v any) bool {
	path := filepath.Join(g.dir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("module", "persist").Str("file", path).Err(err).Msg("snapshot unreadable, starting empty")
		}
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		log.Warn().Str("module", "persist").Str("file", path).Err(err).Msg("snapshot corrupt, starting empty")
		return false
	}
	return true
}

// writeJSON overwrites atomically: encode to a temp file in the same
// directory, then rename over the target.
func (g *Gateway) writeJSON(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(g.dir, name+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(g.dir, name))
}
