package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/okhotin/parley/internal/adapters/http"
	"github.com/okhotin/parley/internal/app"
	"github.com/okhotin/parley/internal/config"
	"github.com/okhotin/parley/internal/core"
	"github.com/okhotin/parley/internal/persist"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return
	}

	gateway, err := persist.NewGateway(cfg.DataDir)
	if err != nil {
		log.Error().Err(err).Str("dir", cfg.DataDir).Msg("failed to open data dir")
		return
	}

	rooms := app.NewRoomManager(cfg.MaxMessages, gateway.MarkDirty)
	auth := app.NewAuthRegistry(gateway.MarkDirty)
	gateway.SetSource(func() ([]core.RoomState, map[string]string) {
		return rooms.Snapshot(), auth.Snapshot()
	})

	// Reload durable state before the registry serves any request.
	rooms.Restore(gateway.LoadRooms())
	auth.Restore(gateway.LoadUsers())
	go gateway.Run(ctx)

	h := &router.Handler{
		Rooms:    rooms,
		Sessions: app.NewRegistry(),
		Auth:     auth,
	}

	r := router.SetupRouter(ctx, cfg, h)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Parley server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	gateway.Flush()
	log.Info().Msg("Server exited gracefully")
}
