package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/domain"
)

// relay forwards an offer, answer or ICE candidate to its target,
// tagged with the sender. The payload is opaque: no validation, no
// negotiation state. An absent target is dropped silently.
func (ctl *Controller) relay(s *session, msgType string, data []byte) {
	var p struct {
		Target    domain.UserID   `json:"target_user_id"`
		Offer     json.RawMessage `json:"offer"`
		Answer    json.RawMessage `json:"answer"`
		Candidate json.RawMessage `json:"candidate"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", s.connID).Str("type", msgType).Msg("bad relay payload")
		return
	}

	field := msgType
	body := p.Offer
	switch msgType {
	case "answer":
		body = p.Answer
	case "ice_candidate":
		field = "candidate"
		body = p.Candidate
	}

	ctl.Manager.Unicast(s.room, p.Target, map[string]any{
		"type":         msgType,
		"from_user_id": s.user,
		field:          body,
	})
}

func (ctl *Controller) handleSpeaking(s *session, data []byte) {
	var p struct {
		IsSpeaking bool `json:"is_speaking"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", s.connID).Msg("bad speaking payload")
		return
	}
	ctl.Manager.Broadcast(s.room, speakingMsg{Type: "speaking", UserID: s.user, IsSpeaking: p.IsSpeaking}, s.user)
}
