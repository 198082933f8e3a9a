package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhotin/parley/internal/app"
	"github.com/okhotin/parley/internal/config"
)

func newLiveTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := &config.Config{
		Mode:        "release",
		MaxMessages: 100,
		PollPeriod:  10 * time.Millisecond,
		Secret:      "test-secret",
	}
	h := &Handler{
		Rooms:    app.NewRoomManager(cfg.MaxMessages, nil),
		Sessions: app.NewRegistry(),
		Auth:     app.NewAuthRegistry(nil),
	}
	h.Rooms.Restore(nil)
	return SetupRouter(context.Background(), cfg, h)
}

func TestLiveStreamDeliversOtherParticipants(t *testing.T) {
	r := newLiveTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, resp := doJSON(t, r, http.MethodPost, "/api/rooms", "client-a", nil)
	roomID := resp["room_id"].(string)
	w, _ := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", "client-a", map[string]string{"nick": "A"})
	require.Equal(t, http.StatusOK, w.Code)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/rooms/" + roomID + "/live"
	header := http.Header{"Cookie": {"ct=client-a"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", "client-b", map[string]string{"nick": "B"})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/messages", "client-b", map[string]string{"text": "yo"})
	require.Equal(t, http.StatusOK, w.Code)

	readFrame := func() map[string]any {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		frame := make(map[string]any)
		require.NoError(t, json.Unmarshal(raw, &frame))
		return frame
	}

	first := readFrame()
	assert.Equal(t, "membership", first["type"])
	assert.Equal(t, "join", first["event"])
	assert.Equal(t, "B", first["nick"])

	second := readFrame()
	assert.Equal(t, "message", second["type"])
	assert.Equal(t, "B", second["sender"])
	assert.Equal(t, "yo", second["body"])
}

func TestLiveStreamClosesOnLeave(t *testing.T) {
	r := newLiveTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, resp := doJSON(t, r, http.MethodPost, "/api/rooms", "client-a", nil)
	roomID := resp["room_id"].(string)
	w, _ := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", "client-a", map[string]string{"nick": "A"})
	require.Equal(t, http.StatusOK, w.Code)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/rooms/" + roomID + "/live"
	header := http.Header{"Cookie": {"ct=client-a"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/leave", "client-a", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Leaving cancels the delivery loop, which must tear the socket down
	// rather than leave it silently dead.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestLiveStreamRequiresJoin(t *testing.T) {
	r := newLiveTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, resp := doJSON(t, r, http.MethodPost, "/api/rooms", "client-a", nil)
	roomID := resp["room_id"].(string)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/rooms/" + roomID + "/live"
	header := http.Header{"Cookie": {"ct=client-a"}}
	_, httpResp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, httpResp)
	assert.Equal(t, http.StatusConflict, httpResp.StatusCode)
}
