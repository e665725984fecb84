package signal

import "github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/domain"

// Server→client envelopes. Relay envelopes (offer/answer/candidate)
// are built inline because their payload field is named by type.

type roomStateMsg struct {
	Type         string               `json:"type"`
	Participants []domain.Participant `json:"participants"`
}

type userJoinedMsg struct {
	Type     string          `json:"type"`
	UserID   domain.UserID   `json:"user_id"`
	UserInfo domain.UserInfo `json:"user_info"`
}

type userLeftMsg struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"user_id"`
}

type speakingMsg struct {
	Type       string        `json:"type"`
	UserID     domain.UserID `json:"user_id"`
	IsSpeaking bool          `json:"is_speaking"`
}
