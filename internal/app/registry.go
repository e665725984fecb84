package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/core"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/domain"
)

type member struct {
	room domain.RoomID
	info domain.UserInfo
	conn core.SignalConn
}

// Registry is the authoritative in-memory directory of rooms and
// participants. A room exists iff it has at least one participant;
// a participant belongs to at most one room. All methods are safe
// for concurrent use; none of them performs I/O.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[domain.UserID]*member
	users map[domain.UserID]*member
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[domain.RoomID]map[domain.UserID]*member),
		users: make(map[domain.UserID]*member),
	}
}

// AddParticipant inserts the participant into the room, creating the
// room if absent, and returns the room's full participant list from
// the same atomic step. A duplicate key is treated as a reconnect:
// metadata and channel binding are replaced in place and the previous
// channel handle is returned so the caller can close it outside the
// lock. prev is the room the participant was displaced from ("" for a
// first join); callers announce the departure there when it differs
// from the new room.
func (r *Registry) AddParticipant(room domain.RoomID, user domain.UserID, info domain.UserInfo, conn core.SignalConn) (list []domain.Participant, replaced core.SignalConn, prev domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.users[user]; ok {
		if old.conn != conn {
			replaced = old.conn
		}
		prev = old.room
		r.dropLocked(old.room, user)
	}

	if _, ok := r.rooms[room]; !ok {
		r.rooms[room] = make(map[domain.UserID]*member)
	}
	m := &member{room: room, info: info, conn: conn}
	r.rooms[room][user] = m
	r.users[user] = m

	log.Info().Str("module", "app.registry").Str("room", string(room)).Str("user", string(user)).Msg("participant added")
	return r.listLocked(room), replaced, prev
}

// RemoveParticipant removes the participant from the room and returns
// the channel handle that was bound, if any. Removing an absent
// participant or room is a no-op. The room is destroyed with its last
// participant.
func (r *Registry) RemoveParticipant(room domain.RoomID, user domain.UserID) (core.SignalConn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.rooms[room][user]
	if !ok {
		return nil, false
	}
	r.dropLocked(room, user)
	log.Info().Str("module", "app.registry").Str("room", string(room)).Str("user", string(user)).Msg("participant removed")
	return m.conn, true
}

// RemoveParticipantConn removes the participant only if the stored
// channel binding is the given one. A reconnect replaces the binding,
// so the stale connection's cleanup finds a different handle and
// leaves the fresh entry alone.
func (r *Registry) RemoveParticipantConn(room domain.RoomID, user domain.UserID, conn core.SignalConn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.rooms[room][user]
	if !ok || m.conn != conn {
		return false
	}
	r.dropLocked(room, user)
	log.Info().Str("module", "app.registry").Str("room", string(room)).Str("user", string(user)).Msg("participant removed")
	return true
}

func (r *Registry) dropLocked(room domain.RoomID, user domain.UserID) {
	delete(r.rooms[room], user)
	if len(r.rooms[room]) == 0 {
		delete(r.rooms, room)
	}
	delete(r.users, user)
}

// ListParticipants returns the room's current participants. An absent
// room yields an empty list. Order is unspecified.
func (r *Registry) ListParticipants(room domain.RoomID) []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked(room)
}

func (r *Registry) listLocked(room domain.RoomID) []domain.Participant {
	out := make([]domain.Participant, 0, len(r.rooms[room]))
	for uid, m := range r.rooms[room] {
		out = append(out, domain.Participant{UserID: uid, RoomID: m.room, Info: m.info})
	}
	return out
}

// Lookup returns the participant's registry view by user key.
func (r *Registry) Lookup(user domain.UserID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.users[user]
	if !ok {
		return domain.Participant{}, false
	}
	return domain.Participant{UserID: user, RoomID: m.room, Info: m.info}, true
}

type peerSnap struct {
	ID   domain.UserID
	Conn core.SignalConn
}

// PeersOf snapshots the room's live channel bindings, excluding one
// participant (pass "" to exclude none). Sends happen outside the
// registry lock; this is the handoff point.
func (r *Registry) PeersOf(room domain.RoomID, exclude domain.UserID) []peerSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]peerSnap, 0, len(r.rooms[room]))
	for uid, m := range r.rooms[room] {
		if uid == exclude {
			continue
		}
		out = append(out, peerSnap{ID: uid, Conn: m.conn})
	}
	return out
}

// Peer returns the channel bound to one participant of the room.
func (r *Registry) Peer(room domain.RoomID, user domain.UserID) (core.SignalConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.rooms[room][user]
	if !ok {
		return nil, false
	}
	return m.conn, true
}

// Stats reports live room and participant counts for the health endpoint.
func (r *Registry) Stats() (rooms, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), len(r.users)
}
