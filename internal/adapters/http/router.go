package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/adapters/signal"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/app"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/config"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/notify"
)

// CORSMiddleware keeps the API reachable from the Telegram Mini App
// webview, which always runs cross-origin.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "*")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, reg *app.Registry, ctl *signal.Controller, bot *notify.Bot) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())

	h := &API{Registry: reg, Bot: bot, Cfg: cfg}

	r.GET("/", h.Health)

	api := r.Group("/api")
	api.GET("/ice-config", h.ICEConfig)
	api.GET("/user/:user_id", h.UserInfo)
	api.GET("/room/:room_id/participants", h.RoomParticipants)
	api.POST("/room/:room_id/participants/notify", h.NotifyParticipants)
	api.POST("/notify/joined", h.NotifyJoined)

	r.GET("/ws/:room_id/:user_id", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
