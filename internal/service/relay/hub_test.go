package relay

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	frames [][]byte
	closed bool
}

func (c *fakeConn) Send(frame []byte) error {
	if c.closed {
		return errors.New("connection closed")
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() {
	c.closed = true
}

// byType decodes every captured frame and returns those whose type
// discriminant matches.
func (c *fakeConn) byType(t *testing.T, messageType string) []map[string]any {
	t.Helper()
	var matches []map[string]any
	for _, frame := range c.frames {
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(frame, &decoded))
		if decoded["type"] == messageType {
			matches = append(matches, decoded)
		}
	}
	return matches
}

func (c *fakeConn) reset() {
	c.frames = nil
}

func newTestHub() *Hub {
	return NewHub(Options{HistoryLimit: 1000, ReplayCount: 50})
}

func join(t *testing.T, hub *Hub, username string) (*fakeConn, string) {
	t.Helper()
	conn := &fakeConn{}
	id := hub.Connect(conn)
	hub.Dispatch(id, []byte(`{"type":"join","username":"`+username+`"}`))
	return conn, id
}

func TestHub_JoinNewUserAnnouncesOnce(t *testing.T) {
	hub := newTestHub()
	conn, _ := join(t, hub, "alice")

	joined := conn.byType(t, "user_joined")
	require.Len(t, joined, 1)
	require.Equal(t, "alice", joined[0]["username"])

	lists := conn.byType(t, "users_list")
	require.Len(t, lists, 1)
	require.Equal(t, []any{"alice"}, lists[0]["users"])
}

func TestHub_JoinRepliesWithHistoryToJoinerOnly(t *testing.T) {
	hub := newTestHub()
	alice, aliceID := join(t, hub, "alice")
	hub.Dispatch(aliceID, []byte(`{"type":"message","content":"hi"}`))

	bob, _ := join(t, hub, "bob")

	histories := bob.byType(t, "message_history")
	require.Len(t, histories, 1)
	require.Len(t, histories[0]["messages"], 1)
	require.Empty(t, alice.byType(t, "message_history"))
}

func TestHub_JoinPresenceEventsPrecedeHistoryReplay(t *testing.T) {
	hub := newTestHub()
	conn, _ := join(t, hub, "alice")

	var types []string
	for _, frame := range conn.frames {
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(frame, &decoded))
		types = append(types, decoded["type"].(string))
	}
	require.Equal(t, []string{"user_joined", "users_list", "message_history"}, types)
}

func TestHub_DuplicateJoinEvictsOlderSession(t *testing.T) {
	hub := newTestHub()
	old, _ := join(t, hub, "alice")
	old.reset()

	fresh, _ := join(t, hub, "Alice")

	require.True(t, old.closed)
	require.Empty(t, fresh.byType(t, "user_joined"))

	lists := fresh.byType(t, "users_list")
	require.Len(t, lists, 1)
	require.Equal(t, []any{"Alice"}, lists[0]["users"])

	stats := hub.Snapshot()
	require.Equal(t, 1, stats.ConnectedClients)
}

func TestHub_RejoinOnSameSessionIsNoOp(t *testing.T) {
	hub := newTestHub()
	conn, id := join(t, hub, "alice")
	conn.reset()

	hub.Dispatch(id, []byte(`{"type":"join","username":"carol"}`))

	require.Empty(t, conn.frames)
	require.Equal(t, []string{"alice"}, hub.OnlineUsers())
}

func TestHub_MessageBroadcastsToEveryone(t *testing.T) {
	hub := newTestHub()
	alice, aliceID := join(t, hub, "alice")
	bob, _ := join(t, hub, "bob")
	alice.reset()
	bob.reset()

	hub.Dispatch(aliceID, []byte(`{"type":"message","content":"hi"}`))

	for _, conn := range []*fakeConn{alice, bob} {
		messages := conn.byType(t, "new_message")
		require.Len(t, messages, 1)
		payload := messages[0]["message"].(map[string]any)
		require.Equal(t, "alice", payload["username"])
		require.Equal(t, "hi", payload["content"])
		require.NotEmpty(t, payload["id"])
	}

	require.Equal(t, 1, hub.Snapshot().MessagesInMemory)
}

func TestHub_MessageBeforeJoinIsDropped(t *testing.T) {
	hub := newTestHub()
	conn := &fakeConn{}
	id := hub.Connect(conn)

	hub.Dispatch(id, []byte(`{"type":"message","content":"hi"}`))
	hub.Dispatch(id, []byte(`{"type":"typing","isTyping":true}`))

	require.Empty(t, conn.frames)
	require.Equal(t, 0, hub.Snapshot().MessagesInMemory)
}

func TestHub_TypingSkipsSender(t *testing.T) {
	hub := newTestHub()
	alice, aliceID := join(t, hub, "alice")
	bob, _ := join(t, hub, "bob")
	alice.reset()
	bob.reset()

	hub.Dispatch(aliceID, []byte(`{"type":"typing","isTyping":true}`))

	require.Empty(t, alice.byType(t, "typing"))
	typing := bob.byType(t, "typing")
	require.Len(t, typing, 1)
	require.Equal(t, "alice", typing[0]["username"])
	require.Equal(t, true, typing[0]["isTyping"])
}

func TestHub_DisconnectLastHolderAnnouncesLeave(t *testing.T) {
	hub := newTestHub()
	_, aliceID := join(t, hub, "alice")
	bob, _ := join(t, hub, "bob")
	bob.reset()

	hub.Disconnect(aliceID)

	left := bob.byType(t, "user_left")
	require.Len(t, left, 1)
	require.Equal(t, "alice", left[0]["username"])

	lists := bob.byType(t, "users_list")
	require.Len(t, lists, 1)
	require.Equal(t, []any{"bob"}, lists[0]["users"])
}

func TestHub_AnonymousDisconnectIsSilent(t *testing.T) {
	hub := newTestHub()
	watcher, _ := join(t, hub, "alice")
	anon := &fakeConn{}
	anonID := hub.Connect(anon)
	watcher.reset()

	hub.Disconnect(anonID)

	require.Empty(t, watcher.frames)
	require.Equal(t, 1, hub.Snapshot().ConnectedClients)
}

func TestHub_DisconnectUnknownSessionIsNoOp(t *testing.T) {
	hub := newTestHub()
	watcher, _ := join(t, hub, "alice")
	watcher.reset()

	hub.Disconnect("missing")

	require.Empty(t, watcher.frames)
}

func TestHub_MalformedAndUnknownFramesAreDropped(t *testing.T) {
	hub := newTestHub()
	conn, id := join(t, hub, "alice")
	conn.reset()

	hub.Dispatch(id, []byte(`{not json`))
	hub.Dispatch(id, []byte(`{"type":"self_destruct"}`))

	require.Empty(t, conn.frames)
	require.False(t, conn.closed)
}

func TestHub_SendFailureDoesNotAbortBroadcast(t *testing.T) {
	hub := newTestHub()
	broken, _ := join(t, hub, "alice")
	healthy, _ := join(t, hub, "bob")
	broken.closed = true
	healthy.reset()

	_, carolID := join(t, hub, "carol")
	hub.Dispatch(carolID, []byte(`{"type":"message","content":"hi"}`))

	require.Len(t, healthy.byType(t, "new_message"), 1)
}

func TestHub_RelayOfferReachesTargetWithSender(t *testing.T) {
	hub := newTestHub()
	_, aliceID := join(t, hub, "alice")
	bob, _ := join(t, hub, "bob")
	bob.reset()

	hub.Dispatch(aliceID, []byte(`{"type":"voice_call_offer","targetUser":"bob","offer":{"sdp":"v=0"}}`))

	offers := bob.byType(t, "voice_call_offer")
	require.Len(t, offers, 1)
	require.Equal(t, "alice", offers[0]["fromUser"])
	require.Equal(t, map[string]any{"sdp": "v=0"}, offers[0]["offer"])
}

func TestHub_RelayTargetLookupIsCaseInsensitive(t *testing.T) {
	hub := newTestHub()
	_, aliceID := join(t, hub, "alice")
	bob, _ := join(t, hub, "Bob")
	bob.reset()

	hub.Dispatch(aliceID, []byte(`{"type":"voice_call_end","targetUser":"bob"}`))

	ends := bob.byType(t, "voice_call_end")
	require.Len(t, ends, 1)
	require.Equal(t, "alice", ends[0]["fromUser"])
}

func TestHub_RelayToUnknownTargetIsSilent(t *testing.T) {
	hub := newTestHub()
	alice, aliceID := join(t, hub, "alice")
	bob, _ := join(t, hub, "bob")
	alice.reset()
	bob.reset()

	hub.Dispatch(aliceID, []byte(`{"type":"voice_call_offer","targetUser":"carol","offer":{}}`))

	require.Empty(t, alice.frames)
	require.Empty(t, bob.frames)
	require.Equal(t, 2, hub.Snapshot().ConnectedClients)
}

func TestHub_RelayFromUnboundSenderIsDropped(t *testing.T) {
	hub := newTestHub()
	bob, _ := join(t, hub, "bob")
	anon := &fakeConn{}
	anonID := hub.Connect(anon)
	bob.reset()

	hub.Dispatch(anonID, []byte(`{"type":"voice_call_offer","targetUser":"bob","offer":{}}`))

	require.Empty(t, bob.frames)
}

func TestHub_RecentMessagesClampAndOrder(t *testing.T) {
	hub := newTestHub()
	_, aliceID := join(t, hub, "alice")
	hub.Dispatch(aliceID, []byte(`{"type":"message","content":"first"}`))
	hub.Dispatch(aliceID, []byte(`{"type":"message","content":"second"}`))

	recent := hub.RecentMessages(1)
	require.Len(t, recent, 1)
	require.Equal(t, "second", recent[0].Content)
	require.Len(t, hub.RecentMessages(10), 2)
}
