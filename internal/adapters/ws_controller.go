// Package adapters holds transport glue around the chat core.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/okhotin/parley/internal/app"
	"github.com/okhotin/parley/internal/core"
	"github.com/okhotin/parley/internal/domain"
)

var (
	ErrBackpressure = errors.New("client send buffer full")
	ErrStreamClosed = errors.New("live stream closed")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveWSController pushes poll deltas down a websocket. The core stays
// polling-based; this controller is just a Consumer that forwards each
// delivered message as a JSON frame.
type LiveWSController struct {
	rooms    core.RoomManager
	sessions *app.Registry
	period   time.Duration
}

func NewLiveWSController(rooms core.RoomManager, sessions *app.Registry, period time.Duration) *LiveWSController {
	return &LiveWSController{rooms: rooms, sessions: sessions, period: period}
}

type wsLiveConn struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *wsLiveConn) trySend(frame []byte) error {
	select {
	case <-c.done:
		return ErrStreamClosed
	case c.send <- frame:
		return nil
	default:
		return ErrBackpressure
	}
}

// close tears the socket down; it never closes the send channel, so a
// racing trySend from the poller can only drop the frame.
func (c *wsLiveConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

type liveFrame struct {
	Type   string `json:"type"`
	Sender string `json:"sender,omitempty"`
	Body   string `json:"body,omitempty"`
	Event  string `json:"event,omitempty"`
	Nick   string `json:"nick,omitempty"`
}

// OnNewMessage implements core.Consumer. A slow client drops frames rather
// than stalling the poll loop; its cursor already advanced, so the drop is
// visible in the logs only.
func (c *wsLiveConn) OnNewMessage(sender, body string) {
	frame, _ := json.Marshal(liveFrame{Type: "message", Sender: sender, Body: body})
	if err := c.trySend(frame); err != nil {
		log.Warn().Str("module", "adapters.ws").Str("sender", sender).Msg("dropped frame on backpressure")
	}
}

func (c *wsLiveConn) OnMembershipChange(event, nick string) {
	frame, _ := json.Marshal(liveFrame{Type: "membership", Event: event, Nick: nick})
	if err := c.trySend(frame); err != nil {
		log.Warn().Str("module", "adapters.ws").Str("event", event).Msg("dropped frame on backpressure")
	}
}

// HandleLive upgrades the request and streams the session's poll delta
// until the client goes away or the session is unbound.
func (ctl *LiveWSController) HandleLive(ctx context.Context, c *gin.Context) {
	sid := app.SessionID(c.GetString("client_token"))
	roomID := domain.RoomID(c.Param("id"))

	boundRoom, nick, cursor, ok := ctl.sessions.Session(sid)
	if !ok || boundRoom != roomID {
		c.JSON(http.StatusConflict, gin.H{"error": "not joined to this room"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Str("module", "adapters.ws").Err(err).Msg("ws upgrade failed")
		return
	}
	log.Info().Str("module", "adapters.ws").Str("sid", string(sid)).
		Str("room", string(roomID)).Str("nick", nick).Msg("live stream opened")

	conn := &wsLiveConn{conn: ws, send: make(chan []byte, 32), done: make(chan struct{})}

	ctx, cancel := context.WithCancel(ctx)
	ctl.sessions.AttachCancel(sid, cancel)

	poller := &core.Poller{Cursor: cursor, Consumer: conn, Period: ctl.period}
	go poller.Run(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn, cancel)
}

// writePump closes the connection on exit so an HTTP leave (context
// cancellation) is observed by the peer instead of leaving a dead socket.
func (ctl *LiveWSController) writePump(ctx context.Context, c *wsLiveConn) {
	defer c.close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Str("module", "adapters.ws").Err(err).Msg("write failed")
				return
			}
		}
	}
}

// readPump only watches for the peer closing; the protocol is one-way.
func (ctl *LiveWSController) readPump(ctx context.Context, sid app.SessionID, c *wsLiveConn, cancel context.CancelFunc) {
	defer func() {
		cancel()
		c.close()
		log.Info().Str("module", "adapters.ws").Str("sid", string(sid)).Msg("live stream closed")
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if _, _, err := c.conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
