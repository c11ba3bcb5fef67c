package relay

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleychat/parley/internal/model/chat"
)

// Hub owns all mutable relay state: the session registry and the
// message history. A single mutex serializes every state-mutating
// operation, so no two frames interleave their effects; handlers only
// enqueue outbound frames and never block inside the lock.
type Hub struct {
	mu       sync.Mutex
	registry *Registry
	history  *History

	replayCount int
	startedAt   time.Time
}

// Options tunes the hub's retention behavior.
type Options struct {
	// HistoryLimit caps the number of retained messages.
	HistoryLimit int
	// ReplayCount is how many recent messages a joining client receives.
	ReplayCount int
}

// NewHub constructs a hub with empty state.
func NewHub(opts Options) *Hub {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 1000
	}
	if opts.ReplayCount <= 0 {
		opts.ReplayCount = 50
	}
	return &Hub{
		registry:    NewRegistry(),
		history:     NewHistory(opts.HistoryLimit),
		replayCount: opts.ReplayCount,
		startedAt:   time.Now().UTC(),
	}
}

// Connect registers a new anonymous session for conn and returns its id.
func (h *Hub) Connect(conn Conn) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	session := h.registry.Add(conn)
	log.Printf("[relay] client %s connected, total clients: %d", session.ID, h.registry.Len())
	return session.ID
}

// Disconnect removes a session after its transport closed. A joined
// session whose name has no other visible holder triggers a user_left
// broadcast followed by a fresh users_list; an anonymous session was
// never visible and leaves without events.
func (h *Hub) Disconnect(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	session := h.registry.Remove(sessionID)
	if session == nil {
		return
	}
	log.Printf("[relay] client %s disconnected, total clients: %d", sessionID, h.registry.Len())

	if !session.Bound() {
		return
	}
	if h.registry.FindByUsername(session.Username) == nil {
		h.broadcast(chat.PresenceEvent{
			Type:      chat.TypeUserLeft,
			Username:  session.Username,
			Timestamp: time.Now().UTC(),
		})
	}
	h.broadcastUsersList()
}

// Dispatch decodes one inbound frame from the given session and routes
// it by type. Malformed frames and unknown types are logged and
// dropped; the connection stays open either way.
func (h *Hub) Dispatch(sessionID string, frame []byte) {
	var envelope chat.Inbound
	if err := json.Unmarshal(frame, &envelope); err != nil {
		log.Printf("[relay] dropping malformed frame from %s: %v", sessionID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	session := h.registry.Get(sessionID)
	if session == nil {
		return
	}

	switch envelope.Type {
	case chat.TypeJoin:
		h.handleJoin(session, envelope.Username)
	case chat.TypeMessage:
		h.handleMessage(session, envelope.Content)
	case chat.TypeTyping:
		h.handleTyping(session, envelope.IsTyping)
	case chat.TypeCallOffer:
		h.relayOffer(session, envelope.TargetUser, envelope.Offer)
	case chat.TypeCallAnswer:
		h.relayAnswer(session, envelope.TargetUser, envelope.Answer)
	case chat.TypeCallIceCandidate:
		h.relayIceCandidate(session, envelope.TargetUser, envelope.Candidate)
	case chat.TypeCallEnd:
		h.relayEnd(session, envelope.TargetUser)
	default:
		log.Printf("[relay] unknown message type %q from %s", envelope.Type, sessionID)
	}
}

// handleJoin runs the Connected -> Joined transition: evict any older
// session holding the same name, bind the name, announce the user when
// the name was not already online, refresh the users list for everyone,
// then replay recent history to the joiner alone.
func (h *Hub) handleJoin(session *Session, username string) {
	if username == "" || session.Bound() {
		return
	}

	existing := h.registry.FindByUsername(username)
	wasAlreadyOnline := existing != nil
	if existing != nil && existing.ID != session.ID {
		h.registry.Remove(existing.ID)
		existing.Conn.Close()
		log.Printf("[relay] evicted stale session %s for %q", existing.ID, existing.Username)
	}

	h.registry.Bind(session.ID, username)

	if !wasAlreadyOnline {
		h.broadcast(chat.PresenceEvent{
			Type:      chat.TypeUserJoined,
			Username:  username,
			Timestamp: time.Now().UTC(),
		})
	}
	h.broadcastUsersList()

	h.send(session, chat.MessageHistory{
		Type:     chat.TypeMessageHistory,
		Messages: h.history.Tail(h.replayCount),
	})
}

// handleMessage appends a chat message and fans it out to everyone.
// Sessions that never joined cannot speak; the frame is dropped.
func (h *Hub) handleMessage(session *Session, content string) {
	if !session.Bound() {
		return
	}

	message := chat.Message{
		ID:        uuid.NewString(),
		Username:  session.Username,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	h.history.Append(message)
	h.broadcast(chat.NewMessage{Type: chat.TypeNewMessage, Message: message})
}

// handleTyping relays a typing indicator to every session except the
// sender, so clients never see their own echo.
func (h *Hub) handleTyping(session *Session, isTyping bool) {
	if !session.Bound() {
		return
	}
	h.broadcastExcept(session.ID, chat.Typing{
		Type:     chat.TypeTyping,
		Username: session.Username,
		IsTyping: isTyping,
	})
}

// broadcastUsersList pushes the deduplicated presence snapshot to all.
func (h *Hub) broadcastUsersList() {
	h.broadcast(chat.UsersList{Type: chat.TypeUsersList, Users: h.registry.Usernames()})
}

// broadcast serializes payload once and fans the identical bytes out to
// every session. Delivery is best effort: a recipient whose connection
// refuses the frame is skipped, never reported back.
func (h *Hub) broadcast(payload any) {
	frame, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[relay] failed to encode broadcast: %v", err)
		return
	}
	for _, session := range h.registry.Sessions() {
		if err := session.Conn.Send(frame); err != nil {
			log.Printf("[relay] dropping frame for %s: %v", session.ID, err)
		}
	}
}

// broadcastExcept is broadcast minus one excluded session.
func (h *Hub) broadcastExcept(sessionID string, payload any) {
	frame, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[relay] failed to encode broadcast: %v", err)
		return
	}
	for _, session := range h.registry.Sessions() {
		if session.ID == sessionID {
			continue
		}
		if err := session.Conn.Send(frame); err != nil {
			log.Printf("[relay] dropping frame for %s: %v", session.ID, err)
		}
	}
}

// send delivers payload to a single session, best effort.
func (h *Hub) send(session *Session, payload any) {
	frame, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[relay] failed to encode frame: %v", err)
		return
	}
	if err := session.Conn.Send(frame); err != nil {
		log.Printf("[relay] dropping frame for %s: %v", session.ID, err)
	}
}

// Stats is the read-only snapshot served by the health endpoint.
type Stats struct {
	ConnectedClients int
	MessagesInMemory int
	Uptime           time.Duration
}

// Snapshot reports current hub state for the health endpoint.
func (h *Hub) Snapshot() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		ConnectedClients: h.registry.Len(),
		MessagesInMemory: h.history.Len(),
		Uptime:           time.Since(h.startedAt),
	}
}

// OnlineUsers returns the deduplicated list of display names currently
// online, matching what users_list broadcasts carry.
func (h *Hub) OnlineUsers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registry.Usernames()
}

// RecentMessages returns a copy of the most recent n records for the
// read-only history endpoint.
func (h *Hub) RecentMessages(n int) []chat.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.history.Tail(n)
}

// Shutdown closes every live connection. Used on process exit so
// clients observe the server going away instead of a dead TCP peer.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, session := range h.registry.Sessions() {
		session.Conn.Close()
	}
}
