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

	router "github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/adapters/http"
	wssignal "github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/adapters/signal"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/app"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/config"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/notify"
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
		log.Fatal().Err(err).Msg("failed to load config")
	}

	reg := app.NewRegistry()
	manager := app.NewConnManager(reg)
	bot := notify.New(cfg.BotToken)
	if !bot.IsConfigured() {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, notifications disabled")
	}
	ctl := wssignal.NewController(manager, bot, cfg.ReadLimit, cfg.PingPeriod)

	r := router.SetupRouter(ctx, cfg, reg, ctl, bot)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Signaling server started")
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
	log.Info().Msg("Server exited gracefully")
}
