package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/app"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/config"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/domain"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/ice"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/notify"
)

const botNotConfigured = "Telegram Bot API не настроен. Установите TELEGRAM_BOT_TOKEN в переменных окружения."

// API serves the read-only and notification endpoints around the
// signaling core. Nothing here mutates registry state.
type API struct {
	Registry *app.Registry
	Bot      *notify.Bot
	Cfg      *config.Config
}

func (h *API) Health(c *gin.Context) {
	rooms, users := h.Registry.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":       "running",
		"service":      "Telegram Mini App Signaling Server",
		"active_rooms": rooms,
		"active_users": users,
	})
}

func (h *API) ICEConfig(c *gin.Context) {
	c.JSON(http.StatusOK, ice.ForClient(h.Cfg.TurnURL, h.Cfg.TurnUsername, h.Cfg.TurnPassword))
}

// UserInfo resolves a Telegram user's profile photo through the Bot API.
func (h *API) UserInfo(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid user_id"})
		return
	}
	if !h.Bot.IsConfigured() {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": botNotConfigured})
		return
	}

	photos, err := h.Bot.GetUserProfilePhotos(c.Request.Context(), userID)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("profile photos lookup failed")
	}
	if err != nil || photos.TotalCount == 0 || len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		c.JSON(http.StatusOK, gin.H{"success": true, "user_id": userID, "has_photo": false})
		return
	}

	sizes := photos.Photos[0]
	largest := sizes[len(sizes)-1]
	photoURL, err := h.Bot.GetFileURL(c.Request.Context(), largest.FileID)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("file url lookup failed")
		c.JSON(http.StatusOK, gin.H{"success": true, "user_id": userID, "has_photo": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"user_id":   userID,
		"photo_url": photoURL,
		"has_photo": true,
	})
}

func (h *API) RoomParticipants(c *gin.Context) {
	roomID := c.Param("room_id")
	participants := h.Registry.ListParticipants(domain.RoomID(roomID))
	c.JSON(http.StatusOK, gin.H{
		"room_id":      roomID,
		"participants": participants,
		"count":        len(participants),
	})
}

// NotifyParticipants sends the room's participant list to a user via
// the Telegram bot.
func (h *API) NotifyParticipants(c *gin.Context) {
	if !h.Bot.IsConfigured() {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Telegram Bot API не настроен"})
		return
	}
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid user_id"})
		return
	}
	roomID := c.Param("room_id")

	participants := h.Registry.ListParticipants(domain.RoomID(roomID))
	sendErr := h.Bot.NotifyParticipantList(c.Request.Context(), userID, roomID, participants)
	if sendErr != nil {
		log.Warn().Err(sendErr).Str("module", "adapters.http").Msg("participant list notification failed")
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Ошибка отправки уведомления"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Уведомление отправлено"})
}

// NotifyJoined tells a user via Telegram that they joined a room.
func (h *API) NotifyJoined(c *gin.Context) {
	if !h.Bot.IsConfigured() {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Bot не настроен"})
		return
	}
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid user_id"})
		return
	}
	userName := c.Query("user_name")
	roomID := c.Query("room_id")

	sendErr := h.Bot.NotifyUserJoined(c.Request.Context(), userID, userName, roomID)
	if sendErr != nil {
		log.Warn().Err(sendErr).Str("module", "adapters.http").Msg("join notification failed")
	}
	c.JSON(http.StatusOK, gin.H{"success": sendErr == nil})
}
