package relay

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Conn is the writable side of one client connection. Send must not
// block; a non-nil error means the connection can no longer accept
// frames and the caller should treat it as closed. Close tears the
// transport down and eventually unblocks the connection's read loop.
type Conn interface {
	Send(frame []byte) error
	Close()
}

// Session is one live connection and its identity binding. Username is
// empty until the client joins; an anonymous session is invisible to
// presence and message handling.
type Session struct {
	ID       string
	Conn     Conn
	Username string
	JoinedAt time.Time
}

// Bound reports whether the session has adopted a display name.
func (s *Session) Bound() bool {
	return s.Username != ""
}

// Registry maps session ids to live sessions and maintains a
// case-insensitive username index alongside. It is not safe for
// concurrent use on its own: the Hub owns it and serializes access.
type Registry struct {
	sessions map[string]*Session
	byName   map[string]*Session // lowercased username -> session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byName:   make(map[string]*Session),
	}
}

// Add registers a new anonymous session for conn and returns it.
func (r *Registry) Add(conn Conn) *Session {
	session := &Session{
		ID:       uuid.NewString(),
		Conn:     conn,
		JoinedAt: time.Now().UTC(),
	}
	r.sessions[session.ID] = session
	return session
}

// Bind sets the display name on an existing session. It is a no-op when
// the session is gone, e.g. evicted between dispatch and bind.
func (r *Registry) Bind(sessionID, username string) {
	session, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	session.Username = username
	r.byName[strings.ToLower(username)] = session
}

// Remove drops a session and its username index entry. It returns the
// removed session, or nil if the id was unknown.
func (r *Registry) Remove(sessionID string) *Session {
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(r.sessions, sessionID)
	if session.Bound() {
		key := strings.ToLower(session.Username)
		if r.byName[key] == session {
			delete(r.byName, key)
		}
	}
	return session
}

// FindByUsername resolves a display name case-insensitively. At most
// one visible session holds a given name at any time.
func (r *Registry) FindByUsername(username string) *Session {
	return r.byName[strings.ToLower(username)]
}

// Usernames returns the deduplicated, sorted list of online names.
func (r *Registry) Usernames() []string {
	names := make([]string, 0, len(r.byName))
	for _, session := range r.sessions {
		if session.Bound() {
			names = append(names, session.Username)
		}
	}
	names = lo.Uniq(names)
	sort.Strings(names)
	return names
}

// Sessions returns every live session, joined or not.
func (r *Registry) Sessions() []*Session {
	return lo.Values(r.sessions)
}

// Get looks a session up by id.
func (r *Registry) Get(sessionID string) *Session {
	return r.sessions[sessionID]
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}
