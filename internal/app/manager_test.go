package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/core"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send failed")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) frame(t *testing.T, i int) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Less(t, i, len(f.frames))
	var msg map[string]any
	require.NoError(t, json.Unmarshal(f.frames[i], &msg))
	return msg
}

func TestBroadcastExcludesSender(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	m := NewConnManager(reg)

	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	reg.AddParticipant("r1", "A", domain.UserInfo{}, a)
	reg.AddParticipant("r1", "B", domain.UserInfo{}, b)
	reg.AddParticipant("r1", "C", domain.UserInfo{}, c)

	failed := m.Broadcast("r1", map[string]string{"type": "speaking"}, "A")
	assert.Empty(t, failed)
	assert.Equal(t, 0, a.sent())
	assert.Equal(t, 1, b.sent())
	assert.Equal(t, 1, c.sent())
}

func TestBroadcastExcludeNoneReachesEveryone(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	m := NewConnManager(reg)

	a, b := &fakeConn{}, &fakeConn{}
	reg.AddParticipant("r1", "A", domain.UserInfo{}, a)
	reg.AddParticipant("r1", "B", domain.UserInfo{}, b)

	m.Broadcast("r1", map[string]string{"type": "user_left"}, ExcludeNone)
	assert.Equal(t, 1, a.sent())
	assert.Equal(t, 1, b.sent())
}

func TestBroadcastFailingRecipientIsRemoved(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	m := NewConnManager(reg)

	a, b := &fakeConn{}, &fakeConn{fail: true}
	reg.AddParticipant("r1", "A", domain.UserInfo{}, a)
	reg.AddParticipant("r1", "B", domain.UserInfo{}, b)

	failed := m.Broadcast("r1", map[string]string{"type": "speaking"}, ExcludeNone)
	require.Equal(t, []domain.UserID{"B"}, failed)

	// Delivery to the healthy recipient still happened, followed by
	// the leave announcement for the evicted one.
	assert.Equal(t, 2, a.sent())
	// The bad recipient is closed and gone from the registry by the
	// end of the call.
	assert.True(t, b.isClosed())
	ids := participantIDs(reg.ListParticipants("r1"))
	assert.Equal(t, []domain.UserID{"A"}, ids)
	_, found := reg.Lookup("B")
	assert.False(t, found)
}

func TestBroadcastAnnouncesEvictedRecipientOnce(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	m := NewConnManager(reg)

	a, b := &fakeConn{}, &fakeConn{fail: true}
	reg.AddParticipant("r1", "A", domain.UserInfo{}, a)
	reg.AddParticipant("r1", "B", domain.UserInfo{}, b)

	m.Broadcast("r1", map[string]string{"type": "speaking"}, ExcludeNone)

	require.Equal(t, 2, a.sent())
	left := a.frame(t, 1)
	assert.Equal(t, "user_left", left["type"])
	assert.Equal(t, "B", left["user_id"])

	// The evicted connection's own terminal cleanup finds the binding
	// gone and must not announce a second leave.
	assert.False(t, m.DisconnectConn("r1", "B", b))
	assert.Equal(t, 2, a.sent())
}

func TestUnicastDelivers(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	m := NewConnManager(reg)

	a, b := &fakeConn{}, &fakeConn{}
	reg.AddParticipant("r1", "A", domain.UserInfo{}, a)
	reg.AddParticipant("r1", "B", domain.UserInfo{}, b)

	m.Unicast("r1", "B", map[string]string{"type": "offer"})
	assert.Equal(t, 0, a.sent())
	assert.Equal(t, 1, b.sent())
}

func TestUnicastAbsentTargetIsNoop(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	m := NewConnManager(reg)

	a := &fakeConn{}
	reg.AddParticipant("r1", "A", domain.UserInfo{}, a)

	m.Unicast("r1", "ghost", map[string]string{"type": "offer"})
	assert.Equal(t, 0, a.sent())
	assert.Len(t, reg.ListParticipants("r1"), 1)
}

func TestUnicastFailureDropsTarget(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	m := NewConnManager(reg)

	a, b := &fakeConn{}, &fakeConn{fail: true}
	reg.AddParticipant("r1", "A", domain.UserInfo{}, a)
	reg.AddParticipant("r1", "B", domain.UserInfo{}, b)

	m.Unicast("r1", "B", map[string]string{"type": "offer"})
	assert.True(t, b.isClosed())
	ids := participantIDs(reg.ListParticipants("r1"))
	assert.Equal(t, []domain.UserID{"A"}, ids)

	// The remaining peer hears about the drop.
	require.Equal(t, 1, a.sent())
	left := a.frame(t, 0)
	assert.Equal(t, "user_left", left["type"])
	assert.Equal(t, "B", left["user_id"])
}

func TestDisconnectClosesAndIsIdempotent(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	m := NewConnManager(reg)

	a := &fakeConn{}
	reg.AddParticipant("r1", "A", domain.UserInfo{}, a)

	m.Disconnect("r1", "A")
	assert.True(t, a.isClosed())
	assert.Empty(t, reg.ListParticipants("r1"))

	m.Disconnect("r1", "A")
	m.Disconnect("r1", "never-there")
}

func TestDisconnectConnIgnoresReplacedBinding(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	m := NewConnManager(reg)

	old := &fakeConn{}
	reg.AddParticipant("r1", "A", domain.UserInfo{}, old)
	fresh := &fakeConn{}
	_, replaced, _ := reg.AddParticipant("r1", "A", domain.UserInfo{FirstName: "Alice"}, fresh)
	require.Same(t, old, replaced)

	// Stale connection cleanup must not evict the fresh binding.
	removed := m.DisconnectConn("r1", "A", old)
	assert.False(t, removed)
	p, found := reg.Lookup("A")
	require.True(t, found)
	assert.Equal(t, "Alice", p.Info.FirstName)

	removed = m.DisconnectConn("r1", "A", fresh)
	assert.True(t, removed)
	assert.Empty(t, reg.ListParticipants("r1"))
}

func participantIDs(ps []domain.Participant) []domain.UserID {
	out := make([]domain.UserID, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.UserID)
	}
	return out
}
