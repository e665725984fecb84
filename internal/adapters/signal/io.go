package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

func (ctl *Controller) pingPeriod() time.Duration {
	if ctl.PingPeriod > 0 {
		return ctl.PingPeriod
	}
	return 54 * time.Second
}

// readPump is the session state machine. The first inbound message
// must be a join; until then the participant is not registered and no
// leave is ever broadcast on its behalf.
func (ctl *Controller) readPump(ctx context.Context, s *session) {
	defer ctl.finish(s)

	_, data, err := s.conn.conn.ReadMessage()
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", s.connID).Msg("closed before join")
		return
	}
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil || env.Type != "join" {
		log.Warn().Str("module", "signal").Str("conn", s.connID).Str("type", env.Type).Msg("first message is not a join")
		return
	}
	if !ctl.handleJoin(s, data) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", s.connID).Msg("readPump ctx done")
			return
		default:
			_, data, err := s.conn.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", s.connID).Msg("readPump read error")
				return
			}
			ctl.dispatch(s, data)
		}
	}
}

// dispatch routes an Active-state message purely by declared type.
// Unrecognized or malformed messages are dropped; nothing here may
// take the connection down.
func (ctl *Controller) dispatch(s *session, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", s.connID).Msg("bad json")
		return
	}

	switch env.Type {
	case "offer", "answer", "ice_candidate":
		ctl.relay(s, env.Type, data)
	case "speaking":
		ctl.handleSpeaking(s, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
