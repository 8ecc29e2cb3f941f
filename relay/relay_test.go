package relay

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wavechat/database"
	"wavechat/models"
)

func newRelayFixture(t *testing.T) *Relay {
	t.Helper()
	store, err := database.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	for id, name := range map[string]string{"111": "alice", "222": "bob"} {
		_, err := store.CreateUser(id, name, "hash")
		require.NoError(t, err)
	}
	return New(store, zap.NewNop())
}

func event(t *testing.T, eventType string, payload interface{}) models.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return models.Event{Type: eventType, Payload: raw}
}

func TestIdentifyBindsAndBroadcastsPresence(t *testing.T) {
	rel := newRelayFixture(t)

	aliceConn, bobConn := &fakeConn{}, &fakeConn{}
	alice := rel.Connect(aliceConn)
	rel.Connect(bobConn)

	rel.Dispatch(alice, event(t, models.EventIdentify, "111"))

	_, online := rel.Registry().Lookup("111")
	assert.True(t, online)

	// Presence goes to every connected socket, identified or not.
	for _, conn := range []*fakeConn{aliceConn, bobConn} {
		broadcasts := conn.byType(models.EventOnlineUsers)
		require.Len(t, broadcasts, 1)
		var users []models.UserRef
		require.NoError(t, unmarshalPayload(broadcasts[0], &users))
		assert.Equal(t, []models.UserRef{{ID: "111", Username: "alice"}}, users)
	}
}

func TestIdentifyUnknownUserIsIgnored(t *testing.T) {
	rel := newRelayFixture(t)

	conn := &fakeConn{}
	sess := rel.Connect(conn)

	rel.Dispatch(sess, event(t, models.EventIdentify, "999"))

	assert.Empty(t, rel.Registry().Online())
	assert.Empty(t, conn.events)
}

func TestOperationsBeforeIdentifyAreNoOps(t *testing.T) {
	rel := newRelayFixture(t)

	conn := &fakeConn{}
	sess := rel.Connect(conn)

	rel.Dispatch(sess, event(t, models.EventSocialSnapshot, "111"))
	rel.Dispatch(sess, event(t, models.EventChatMessage,
		models.ChatMessage{Sender: "111", Receiver: "222", Text: "hi"}))
	rel.Dispatch(sess, event(t, models.EventHistory,
		models.HistoryRequest{Sender: "111", Receiver: "222"}))

	assert.Empty(t, conn.events)
}

func TestSocialSnapshotReply(t *testing.T) {
	rel := newRelayFixture(t)

	conn := &fakeConn{}
	sess := rel.Connect(conn)
	rel.Dispatch(sess, event(t, models.EventIdentify, "111"))

	rel.Dispatch(sess, event(t, models.EventSocialSnapshot, "111"))

	replies := conn.byType(models.EventSocialSnapshot)
	require.Len(t, replies, 1)
	var snapshot models.SocialSnapshot
	require.NoError(t, unmarshalPayload(replies[0], &snapshot))
	assert.Empty(t, snapshot.Friends)
	assert.Empty(t, snapshot.FriendRequests)
}

func TestChatMessageToOfflineReceiverThenHistory(t *testing.T) {
	rel := newRelayFixture(t)

	aliceConn := &fakeConn{}
	alice := rel.Connect(aliceConn)
	rel.Dispatch(alice, event(t, models.EventIdentify, "111"))

	rel.Dispatch(alice, event(t, models.EventChatMessage,
		models.ChatMessage{Sender: "111", Receiver: "222", Text: "hi", Timestamp: 1}))

	// Bob connects later; the message is in history.
	bobConn := &fakeConn{}
	bob := rel.Connect(bobConn)
	rel.Dispatch(bob, event(t, models.EventIdentify, "222"))
	rel.Dispatch(bob, event(t, models.EventHistory,
		models.HistoryRequest{Sender: "222", Receiver: "111"}))

	replies := bobConn.byType(models.EventHistory)
	require.Len(t, replies, 1)
	var history []models.ChatMessage
	require.NoError(t, unmarshalPayload(replies[0], &history))
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Text)

	// No live delivery happened while bob was offline.
	assert.Empty(t, bobConn.byType(models.EventChatMessage))
}

func TestFriendRequestEndToEnd(t *testing.T) {
	rel := newRelayFixture(t)

	aliceConn, bobConn := &fakeConn{}, &fakeConn{}
	alice := rel.Connect(aliceConn)
	bob := rel.Connect(bobConn)
	rel.Dispatch(alice, event(t, models.EventIdentify, "111"))
	rel.Dispatch(bob, event(t, models.EventIdentify, "222"))

	rel.Dispatch(alice, event(t, models.EventFriendRequest,
		models.FriendRequestPayload{SenderID: "111", RecipientID: "222"}))

	incoming := bobConn.byType(models.EventFriendRequest)
	require.Len(t, incoming, 1)

	rel.Dispatch(bob, event(t, models.EventFriendAccept,
		models.FriendDecision{UserID: "222", RequesterID: "111"}))

	assert.Len(t, bobConn.byType(models.EventFriendAccepted), 1)
	assert.Len(t, aliceConn.byType(models.EventFriendAccepted), 1)
}

func TestMalformedPayloadAbortsOnlyThatEvent(t *testing.T) {
	rel := newRelayFixture(t)

	conn := &fakeConn{}
	sess := rel.Connect(conn)
	rel.Dispatch(sess, event(t, models.EventIdentify, "111"))

	rel.Dispatch(sess, models.Event{Type: models.EventChatMessage, Payload: json.RawMessage(`{"sender":42}`)})
	rel.Dispatch(sess, models.Event{Type: "nonsense"})

	// The relay still serves subsequent events.
	rel.Dispatch(sess, event(t, models.EventHistory,
		models.HistoryRequest{Sender: "111", Receiver: "222"}))
	assert.Len(t, conn.byType(models.EventHistory), 1)
}

func TestDisconnectUnregistersAndBroadcasts(t *testing.T) {
	rel := newRelayFixture(t)

	aliceConn, bobConn := &fakeConn{}, &fakeConn{}
	alice := rel.Connect(aliceConn)
	bob := rel.Connect(bobConn)
	rel.Dispatch(alice, event(t, models.EventIdentify, "111"))
	rel.Dispatch(bob, event(t, models.EventIdentify, "222"))

	rel.Disconnect(alice)

	_, online := rel.Registry().Lookup("111")
	assert.False(t, online)

	broadcasts := bobConn.byType(models.EventOnlineUsers)
	require.NotEmpty(t, broadcasts)
	var users []models.UserRef
	require.NoError(t, unmarshalPayload(broadcasts[len(broadcasts)-1], &users))
	assert.Equal(t, []models.UserRef{{ID: "222", Username: "bob"}}, users)

	// Disconnecting an unidentified session is a quiet no-op.
	rel.Disconnect(rel.Connect(&fakeConn{}))
}

func TestReconnectThenStaleDisconnectKeepsUserOnline(t *testing.T) {
	rel := newRelayFixture(t)

	oldConn, newConn := &fakeConn{}, &fakeConn{}
	oldSess := rel.Connect(oldConn)
	rel.Dispatch(oldSess, event(t, models.EventIdentify, "111"))

	newSess := rel.Connect(newConn)
	rel.Dispatch(newSess, event(t, models.EventIdentify, "111"))

	// The old tab's disconnect arrives after the reconnect.
	rel.Disconnect(oldSess)

	conn, online := rel.Registry().Lookup("111")
	require.True(t, online)
	assert.Same(t, newConn, conn.(*fakeConn))
}

func TestIdentifyAfterDisconnectDoesNotRegister(t *testing.T) {
	rel := newRelayFixture(t)

	conn := &fakeConn{}
	sess := rel.Connect(conn)

	// The drop wins the race; the late identify must not resurrect the
	// dead connection as a presence entry.
	rel.Disconnect(sess)
	rel.Dispatch(sess, event(t, models.EventIdentify, "111"))

	_, online := rel.Registry().Lookup("111")
	assert.False(t, online)
	assert.Empty(t, rel.Registry().Online())
}

func TestConcurrentIdentifyAndDisconnectLeavesNoGhost(t *testing.T) {
	rel := newRelayFixture(t)
	identify := event(t, models.EventIdentify, "111")

	for i := 0; i < 50; i++ {
		sess := rel.Connect(&fakeConn{})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			rel.Dispatch(sess, identify)
		}()
		go func() {
			defer wg.Done()
			rel.Disconnect(sess)
		}()
		wg.Wait()

		// Whichever side won, a disconnected session never stays online.
		_, online := rel.Registry().Lookup("111")
		assert.False(t, online, "iteration %d left a presence entry for a dead connection", i)
	}
}

func TestPersistenceFailureKeepsRelayServing(t *testing.T) {
	store, err := database.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	for id, name := range map[string]string{"111": "alice", "222": "bob"} {
		_, err := store.CreateUser(id, name, "hash")
		require.NoError(t, err)
	}
	rel := New(store, zap.NewNop())

	aliceConn, bobConn := &fakeConn{}, &fakeConn{}
	alice := rel.Connect(aliceConn)
	bob := rel.Connect(bobConn)
	rel.Dispatch(alice, event(t, models.EventIdentify, "111"))
	rel.Dispatch(bob, event(t, models.EventIdentify, "222"))

	// Store becomes unwritable underneath the relay.
	require.NoError(t, store.Close())

	rel.Dispatch(alice, event(t, models.EventChatMessage,
		models.ChatMessage{Sender: "111", Receiver: "222", Text: "hi", Timestamp: 1}))
	rel.Dispatch(alice, event(t, models.EventFriendRequest,
		models.FriendRequestPayload{SenderID: "111", RecipientID: "222"}))

	// The failed writes deliver nothing.
	assert.Empty(t, bobConn.byType(models.EventChatMessage))
	assert.Empty(t, bobConn.byType(models.EventFriendRequest))

	// The relay keeps serving events that do not touch the store.
	before := len(aliceConn.byType(models.EventOnlineUsers))
	rel.Dispatch(alice, models.Event{Type: models.EventOnlineUsers})
	assert.Len(t, aliceConn.byType(models.EventOnlineUsers), before+1)
}

func TestPanickingHandlerLosesOnlyItsEvent(t *testing.T) {
	rel := newRelayFixture(t)

	conn := &fakeConn{}
	sess := rel.Connect(conn)
	rel.Dispatch(sess, event(t, models.EventIdentify, "111"))

	rel.handlers["explode"] = func(*Session, json.RawMessage) { panic("boom") }
	assert.NotPanics(t, func() {
		rel.Dispatch(sess, models.Event{Type: "explode"})
	})

	rel.Dispatch(sess, event(t, models.EventHistory,
		models.HistoryRequest{Sender: "111", Receiver: "222"}))
	assert.Len(t, conn.byType(models.EventHistory), 1)
}

func TestOnlineUsersRequestBroadcasts(t *testing.T) {
	rel := newRelayFixture(t)

	conn := &fakeConn{}
	sess := rel.Connect(conn)
	rel.Dispatch(sess, event(t, models.EventIdentify, "111"))

	before := len(conn.byType(models.EventOnlineUsers))
	rel.Dispatch(sess, models.Event{Type: models.EventOnlineUsers})
	assert.Len(t, conn.byType(models.EventOnlineUsers), before+1)
}
