package chat

import (
	"encoding/json"
	"time"
)

// Inbound message types recognized by the dispatcher.
const (
	TypeJoin             = "join"
	TypeMessage          = "message"
	TypeTyping           = "typing"
	TypeCallOffer        = "voice_call_offer"
	TypeCallAnswer       = "voice_call_answer"
	TypeCallIceCandidate = "voice_call_ice_candidate"
	TypeCallEnd          = "voice_call_end"
)

// Outbound message types sent to clients.
const (
	TypeMessageHistory = "message_history"
	TypeNewMessage     = "new_message"
	TypeUserJoined     = "user_joined"
	TypeUserLeft       = "user_left"
	TypeUsersList      = "users_list"
)

// Inbound is the envelope decoded from every client frame. The Type
// discriminant decides which of the remaining fields are meaningful;
// call payloads stay opaque and are relayed verbatim.
type Inbound struct {
	Type       string          `json:"type"`
	Username   string          `json:"username,omitempty"`
	Content    string          `json:"content,omitempty"`
	IsTyping   bool            `json:"isTyping,omitempty"`
	TargetUser string          `json:"targetUser,omitempty"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
}

// MessageHistory replays the recent tail of the log to a joining client.
type MessageHistory struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
}

// NewMessage announces a freshly appended chat message.
type NewMessage struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// PresenceEvent is a user_joined or user_left notification.
type PresenceEvent struct {
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// UsersList is the deduplicated snapshot of online display names.
type UsersList struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// Typing relays another client's typing indicator.
type Typing struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// CallSignal forwards a voice-call negotiation payload to its target,
// tagged with the sender's display name. Exactly one of Offer, Answer
// and Candidate is set, matching Type; all are empty for call end.
type CallSignal struct {
	Type      string          `json:"type"`
	FromUser  string          `json:"fromUser"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}
