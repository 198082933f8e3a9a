package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/okhotin/parley/internal/app"
	"github.com/okhotin/parley/internal/core"
	"github.com/okhotin/parley/internal/domain"
)

// Handler exposes the chat core over REST. Every error here is terminal to
// the request only; the session stays interactive and can retry.
type Handler struct {
	Rooms    *app.RoomManagerImpl
	Sessions *app.Registry
	Auth     *app.AuthRegistry
}

type registerRequest struct {
	Name string `json:"name"`
}

type loginRequest struct {
	Credential string `json:"credential"`
}

type joinRequest struct {
	Nick string `json:"nick"`
}

type sendRequest struct {
	Text     string `json:"text"`
	MediaB64 string `json:"media_b64"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid name"})
		return
	}
	cred, err := h.Auth.Register(req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	// The credential is shown exactly once; it cannot be re-derived.
	c.JSON(http.StatusOK, gin.H{"name": req.Name, "credential": cred})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid credential"})
		return
	}
	name, err := h.Auth.Authenticate(req.Credential)
	if err != nil {
		abortWithError(c, err)
		return
	}
	sess := sessions.Default(c)
	sess.Set("name", name)
	_ = sess.Save()
	c.JSON(http.StatusOK, gin.H{"name": name})
}

func (h *Handler) CreateRoom(c *gin.Context) {
	id, err := h.Rooms.Create()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": id})
}

func (h *Handler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Rooms.List()})
}

func (h *Handler) JoinRoom(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	var req joinRequest
	_ = c.ShouldBindJSON(&req) // body is optional for authenticated clients
	nick := req.Nick
	if nick == "" {
		// Fall back to the authenticated display name.
		if name, ok := sessions.Default(c).Get("name").(string); ok {
			nick = name
		}
	}

	sid := h.sid(c)
	prevRoom, prevNick, _, rebinding := h.Sessions.Session(sid)

	room, err := h.Rooms.Join(roomID, nick)
	if err != nil {
		abortWithError(c, err)
		return
	}

	// A session holds one room at a time: switching rooms releases the old
	// nickname and announces the departure there.
	if rebinding {
		_ = h.Rooms.Leave(prevRoom, prevNick)
	}

	// The cursor starts at the current count: history from before the join
	// is never replayed, including the client's own join announcement.
	cursor := core.NewCursor(room, nick)
	h.Sessions.Bind(sid, roomID, nick, cursor)
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "nick": nick, "position": cursor.Position()})
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	sid := h.sid(c)
	boundRoom, nick, _, ok := h.Sessions.Session(sid)
	if !ok || boundRoom != roomID {
		c.JSON(http.StatusConflict, gin.H{"error": "not joined to this room"})
		return
	}
	h.Sessions.Unbind(sid)
	if err := h.Rooms.Leave(roomID, nick); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID})
}

func (h *Handler) SendMessage(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	sid := h.sid(c)
	boundRoom, nick, _, ok := h.Sessions.Session(sid)
	if !ok || boundRoom != roomID {
		c.JSON(http.StatusConflict, gin.H{"error": "not joined to this room"})
		return
	}

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message"})
		return
	}

	var msg domain.Message
	switch {
	case req.MediaB64 != "":
		body, err := app.BuildMediaBody(req.MediaB64)
		if err != nil {
			abortWithError(c, err)
			return
		}
		msg = domain.NewMedia(nick, body)
	case req.Text != "":
		msg = domain.NewText(nick, req.Text)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty message"})
		return
	}

	pos, err := h.Rooms.Append(roomID, msg)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": pos})
}

// PollMessages returns the delta since the session cursor and advances it.
// With an explicit ?since=N it instead performs a stateless clamped read
// that neither filters nor advances anything.
func (h *Handler) PollMessages(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))

	if raw, explicit := c.GetQuery("since"); explicit {
		since, err := strconv.Atoi(raw)
		if err != nil || since < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since"})
			return
		}
		room, err := h.Rooms.Lookup(roomID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": h.frames(room.ReadSince(since)), "position": room.Count()})
		return
	}

	boundRoom, _, cursor, ok := h.Sessions.Session(h.sid(c))
	if !ok || boundRoom != roomID {
		c.JSON(http.StatusConflict, gin.H{"error": "not joined to this room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": h.frames(cursor.Poll()), "position": cursor.Position()})
}

func (h *Handler) RoomMembers(c *gin.Context) {
	room, err := h.Rooms.Lookup(domain.RoomID(c.Param("id")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": room.Members()})
}

type messageFrame struct {
	Position int    `json:"position"`
	Sender   string `json:"sender"`
	Body     string `json:"body"`
	Kind     string `json:"kind"`
	Nick     string `json:"nick,omitempty"`
}

func (h *Handler) frames(delta []core.PositionedMessage) []messageFrame {
	out := make([]messageFrame, 0, len(delta))
	for _, pm := range delta {
		out = append(out, messageFrame{
			Position: pm.Position,
			Sender:   pm.Message.Sender,
			Body:     pm.Message.Body,
			Kind:     string(pm.Message.Kind),
			Nick:     pm.Message.Nick,
		})
	}
	return out
}

func (h *Handler) sid(c *gin.Context) app.SessionID {
	return app.SessionID(c.GetString("client_token"))
}

func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrCredentialNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNicknameTaken):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNicknameInvalid), errors.Is(err, domain.ErrDisplayNameInvalid),
		errors.Is(err, domain.ErrMediaUnsupported):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRoomIDsExhausted):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
