package app

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/domain"
)

func TestRoomExistsOnlyWhileOccupied(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	rooms, users := reg.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, users)

	reg.AddParticipant("r1", "A", domain.UserInfo{}, &fakeConn{})
	rooms, users = reg.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, users)

	reg.AddParticipant("r1", "B", domain.UserInfo{}, &fakeConn{})
	rooms, _ = reg.Stats()
	assert.Equal(t, 1, rooms)

	reg.RemoveParticipant("r1", "A")
	rooms, _ = reg.Stats()
	assert.Equal(t, 1, rooms)

	// Last participant out destroys the room.
	reg.RemoveParticipant("r1", "B")
	rooms, users = reg.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, users)
	assert.Empty(t, reg.ListParticipants("r1"))
}

func TestAddReturnsListIncludingNewEntrant(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	list, replaced, prev := reg.AddParticipant("r1", "A", domain.UserInfo{FirstName: "Alice"}, &fakeConn{})
	require.Nil(t, replaced)
	assert.Empty(t, prev)
	require.Len(t, list, 1)
	assert.Equal(t, domain.UserID("A"), list[0].UserID)

	list, _, _ = reg.AddParticipant("r1", "B", domain.UserInfo{}, &fakeConn{})
	assert.ElementsMatch(t, []domain.UserID{"A", "B"}, participantIDs(list))
}

func TestDuplicateJoinReplacesBinding(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	old := &fakeConn{}
	reg.AddParticipant("r1", "A", domain.UserInfo{FirstName: "Old"}, old)
	fresh := &fakeConn{}
	list, replaced, prev := reg.AddParticipant("r1", "A", domain.UserInfo{FirstName: "New"}, fresh)

	require.Same(t, old, replaced)
	assert.Equal(t, domain.RoomID("r1"), prev)
	require.Len(t, list, 1)
	assert.Equal(t, "New", list[0].Info.FirstName)

	conn, found := reg.Peer("r1", "A")
	require.True(t, found)
	assert.Same(t, fresh, conn)
}

func TestJoinMovesParticipantBetweenRooms(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	reg.AddParticipant("r1", "A", domain.UserInfo{}, &fakeConn{})
	_, _, prev := reg.AddParticipant("r2", "A", domain.UserInfo{}, &fakeConn{})
	assert.Equal(t, domain.RoomID("r1"), prev)

	// A participant key maps to at most one room.
	assert.Empty(t, reg.ListParticipants("r1"))
	assert.Len(t, reg.ListParticipants("r2"), 1)
	p, found := reg.Lookup("A")
	require.True(t, found)
	assert.Equal(t, domain.RoomID("r2"), p.RoomID)

	rooms, _ := reg.Stats()
	assert.Equal(t, 1, rooms)
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	_, removed := reg.RemoveParticipant("nope", "A")
	assert.False(t, removed)

	reg.AddParticipant("r1", "A", domain.UserInfo{}, &fakeConn{})
	_, removed = reg.RemoveParticipant("r1", "B")
	assert.False(t, removed)
	assert.Len(t, reg.ListParticipants("r1"), 1)
}

func TestLookup(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	_, found := reg.Lookup("A")
	assert.False(t, found)

	reg.AddParticipant("r1", "A", domain.UserInfo{Username: "alice"}, &fakeConn{})
	p, found := reg.Lookup("A")
	require.True(t, found)
	assert.Equal(t, "alice", p.Info.Username)
	assert.Equal(t, domain.RoomID("r1"), p.RoomID)
}

func TestPeersOfExcludes(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	reg.AddParticipant("r1", "A", domain.UserInfo{}, &fakeConn{})
	reg.AddParticipant("r1", "B", domain.UserInfo{}, &fakeConn{})

	peers := reg.PeersOf("r1", "A")
	require.Len(t, peers, 1)
	assert.Equal(t, domain.UserID("B"), peers[0].ID)

	assert.Len(t, reg.PeersOf("r1", ""), 2)
	assert.Empty(t, reg.PeersOf("absent", ""))
}

func TestConcurrentAddsLoseNoEntry(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := domain.UserID(fmt.Sprintf("user-%d", i))
			reg.AddParticipant("r1", uid, domain.UserInfo{}, &fakeConn{})
		}(i)
	}
	wg.Wait()

	list := reg.ListParticipants("r1")
	require.Len(t, list, n)
	seen := make(map[domain.UserID]bool, n)
	for _, p := range list {
		assert.False(t, seen[p.UserID], "duplicate entry %s", p.UserID)
		seen[p.UserID] = true
	}
}
