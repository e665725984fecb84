package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/core"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/domain"
)

// ExcludeNone is the sentinel for Broadcast when no participant is excluded.
const ExcludeNone = domain.UserID("")

// ConnManager fans signaling messages out over the channels the
// Registry holds. Delivery is attempted per recipient; a recipient
// whose delivery fails is closed and removed from the registry within
// the same call, and the leave is announced to the remaining peers
// after that cleanup.
type ConnManager struct {
	Registry *Registry
}

func NewConnManager(reg *Registry) *ConnManager {
	return &ConnManager{Registry: reg}
}

// leaveNotice mirrors the protocol's user_left envelope so the room
// hears about recipients evicted for delivery failure; their own
// terminal cleanup finds the binding gone and stays silent.
type leaveNotice struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"user_id"`
}

// Broadcast delivers the message to every participant of the room
// except exclude. It returns the participants whose delivery failed;
// those are already cleaned up by the time it returns, and their
// departure is announced to everyone still present.
func (m *ConnManager) Broadcast(room domain.RoomID, message any, exclude domain.UserID) []domain.UserID {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Str("module", "app.manager").Msg("broadcast marshal")
		return nil
	}

	var failed, evicted []domain.UserID
	for _, peer := range m.Registry.PeersOf(room, exclude) {
		if err := peer.Conn.TrySend(core.Frame(data)); err != nil {
			failed = append(failed, peer.ID)
			if m.drop(room, peer.ID, peer.Conn, err) {
				evicted = append(evicted, peer.ID)
			}
		}
	}
	if len(failed) > 0 {
		log.Warn().Str("module", "app.manager").Str("room", string(room)).Interface("failed", failed).Msg("broadcast dropped recipients")
	}
	// A delivery failure is the recipient's disconnect. The cleanup is
	// done above; one leave per evicted recipient goes out afterwards,
	// against a fresh snapshot.
	for _, uid := range evicted {
		m.Broadcast(room, leaveNotice{Type: "user_left", UserID: uid}, ExcludeNone)
	}
	return failed
}

// Unicast delivers the message to one participant of the room. A
// target absent from the room is a silent no-op.
func (m *ConnManager) Unicast(room domain.RoomID, target domain.UserID, message any) {
	conn, ok := m.Registry.Peer(room, target)
	if !ok {
		log.Debug().Str("module", "app.manager").Str("room", string(room)).Str("target", string(target)).Msg("unicast target not in room")
		return
	}
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Str("module", "app.manager").Msg("unicast marshal")
		return
	}
	if err := conn.TrySend(core.Frame(data)); err != nil {
		if m.drop(room, target, conn, err) {
			m.Broadcast(room, leaveNotice{Type: "user_left", UserID: target}, ExcludeNone)
		}
	}
}

// Disconnect closes the participant's channel if open and removes it
// from the registry. Safe to call multiple times.
func (m *ConnManager) Disconnect(room domain.RoomID, user domain.UserID) {
	if conn, ok := m.Registry.RemoveParticipant(room, user); ok && conn != nil {
		conn.Close()
	}
}

// DisconnectConn is the connection-scoped variant used by handler
// cleanup: it removes the participant only while this exact channel
// is still bound, so a reconnect that replaced the binding is left
// intact. Reports whether the participant was actually removed.
func (m *ConnManager) DisconnectConn(room domain.RoomID, user domain.UserID, conn core.SignalConn) bool {
	conn.Close()
	return m.Registry.RemoveParticipantConn(room, user, conn)
}

// drop treats a delivery failure as the recipient's disconnect.
// Reports whether this connection still held the binding; a false
// means someone else already cleaned up (and announced) the leave.
func (m *ConnManager) drop(room domain.RoomID, user domain.UserID, conn core.SignalConn, err error) bool {
	log.Warn().Err(err).Str("module", "app.manager").Str("room", string(room)).Str("user", string(user)).Msg("delivery failed, dropping recipient")
	conn.Close()
	return m.Registry.RemoveParticipantConn(room, user, conn)
}
