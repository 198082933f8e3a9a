package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Cursor is one client's private bookmark into a room log. It starts at the
// room's current count, so history present before the join is never
// replayed, and it never returns the owner's own messages (the client
// rendered those optimistically at send time).
type Cursor struct {
	room RoomService
	nick string

	mu   sync.Mutex
	last int
}

func NewCursor(room RoomService, nick string) *Cursor {
	return &Cursor{room: room, nick: nick, last: room.Count()}
}

// Poll returns the undelivered messages of other participants, in order,
// and advances the cursor. The cursor advances to the room's authoritative
// count rather than max(position)+1 of the delivered set, so a concurrent
// trim can never leave it pointing into discarded space.
func (c *Cursor) Poll() []PositionedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	delta := c.room.ReadSince(c.last)
	c.last = c.room.Count()
	if len(delta) == 0 {
		return nil
	}
	out := delta[:0]
	for _, pm := range delta {
		if pm.Message.Sender == c.nick {
			continue
		}
		out = append(out, pm)
	}
	return out
}

// Position is the next position the cursor will read from.
func (c *Cursor) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Poller drives a Cursor on a fixed period and hands each delivered message
// to a Consumer. Announcements go through OnMembershipChange, everything
// else through OnNewMessage.
type Poller struct {
	Cursor   *Cursor
	Consumer Consumer
	Period   time.Duration
}

// Run polls until ctx is canceled. Cancellation is cooperative: the loop
// exits on the next wake and holds no resources beyond the ticker.
func (p *Poller) Run(ctx context.Context) {
	period := p.Period
	if period <= 0 {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "core.poller").Str("nick", p.Cursor.nick).Msg("poller stopped")
			return
		case <-ticker.C:
			p.Deliver(p.Cursor.Poll())
		}
	}
}

// Deliver routes one poll delta to the consumer in original order.
func (p *Poller) Deliver(delta []PositionedMessage) {
	for _, pm := range delta {
		if pm.Message.System() {
			p.Consumer.OnMembershipChange(string(pm.Message.Kind), pm.Message.Nick)
			continue
		}
		p.Consumer.OnNewMessage(pm.Message.Sender, pm.Message.Body)
	}
}
