package signal

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/app"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/domain"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/notify"
)

// handleJoin registers the participant, answers with the room state
// and announces the arrival to the rest of the room. A duplicate join
// for the same user key is a reconnect: the previous channel is
// closed and replaced.
func (ctl *Controller) handleJoin(s *session, data []byte) bool {
	var p struct {
		Type     string          `json:"type"`
		UserInfo domain.UserInfo `json:"user_info"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", s.connID).Msg("bad join payload")
		return false
	}

	participants, replaced, prev := ctl.Manager.Registry.AddParticipant(s.room, s.user, p.UserInfo, s.conn)
	if replaced != nil {
		log.Info().Str("module", "signal").Str("user", string(s.user)).Msg("reconnect, closing previous channel")
		replaced.Close()
	}
	if prev != "" && prev != s.room {
		// Room switch. The old room must not keep a ghost entry.
		ctl.Manager.Broadcast(prev, userLeftMsg{Type: "user_left", UserID: s.user}, app.ExcludeNone)
		log.Info().Str("module", "signal").Str("user", string(s.user)).Str("from_room", string(prev)).Str("room", string(s.room)).Msg("moved rooms")
	}
	s.joined = true
	log.Info().Str("module", "signal").Str("conn", s.connID).Str("room", string(s.room)).Str("user", string(s.user)).Msg("join")

	// The joiner gets everyone else; the others get the joiner.
	others := make([]domain.Participant, 0, len(participants))
	for _, pt := range participants {
		if pt.UserID != s.user {
			others = append(others, pt)
		}
	}
	ctl.sendJSON(s.conn, roomStateMsg{Type: "room_state", Participants: others})
	ctl.Manager.Broadcast(s.room, userJoinedMsg{Type: "user_joined", UserID: s.user, UserInfo: p.UserInfo}, s.user)

	ctl.notifyJoined(s, p.UserInfo)
	return true
}

// notifyJoined fires the Telegram notification off the signaling path
// when the user key is a Telegram id.
func (ctl *Controller) notifyJoined(s *session, info domain.UserInfo) {
	if !ctl.Notifier.IsConfigured() {
		return
	}
	tgID, err := strconv.ParseInt(string(s.user), 10, 64)
	if err != nil {
		return
	}
	name := info.DisplayName()
	roomID := string(s.room)
	bot := ctl.Notifier
	notify.Dispatch("user_joined", func(ctx context.Context) error {
		return bot.NotifyUserJoined(ctx, tgID, name, roomID)
	})
}

// finish is the terminal transition. It runs exactly once per
// connection, from protocol errors and clean closes alike. The leave
// is only broadcast if this connection still owned the registry
// binding; a reconnect that already replaced it stays untouched.
func (ctl *Controller) finish(s *session) {
	s.conn.Close()
	if !s.joined {
		log.Debug().Str("module", "signal").Str("conn", s.connID).Msg("closed without joining")
		return
	}
	if ctl.Manager.DisconnectConn(s.room, s.user, s.conn) {
		ctl.Manager.Broadcast(s.room, userLeftMsg{Type: "user_left", UserID: s.user}, app.ExcludeNone)
		log.Info().Str("module", "signal").Str("conn", s.connID).Str("room", string(s.room)).Str("user", string(s.user)).Msg("left")
	}
}
