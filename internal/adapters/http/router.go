package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/okhotin/parley/internal/adapters"
	"github.com/okhotin/parley/internal/config"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware pins a stable opaque token to each browser; it keys
// the session registry.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, h *Handler) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ParleySessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")

	api.POST("/register", h.Register)
	api.POST("/login", h.Login)

	api.GET("/rooms", h.ListRooms)
	api.POST("/rooms", h.CreateRoom)
	api.POST("/rooms/:id/join", h.JoinRoom)
	api.POST("/rooms/:id/leave", h.LeaveRoom)
	api.POST("/rooms/:id/messages", h.SendMessage)
	api.GET("/rooms/:id/messages", h.PollMessages)
	api.GET("/rooms/:id/members", h.RoomMembers)

	api.GET("/rooms/:id/live", func(c *gin.Context) {
		ctl := adapters.NewLiveWSController(h.Rooms, h.Sessions, cfg.PollPeriod)
		ctl.HandleLive(ctx, c)
	})

	return r
}
