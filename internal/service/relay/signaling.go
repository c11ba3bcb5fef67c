package relay

import (
	"encoding/json"

	"github.com/parleychat/parley/internal/model/chat"
)

// Voice-call signaling is a stateless pass-through: the hub resolves
// the target by display name and forwards the payload tagged with the
// sender's name. The server keeps no notion of an ongoing call. An
// unbound sender or an unreachable target drops the envelope silently,
// matching the best-effort delivery contract everywhere else.

func (h *Hub) relayOffer(sender *Session, targetUser string, offer json.RawMessage) {
	h.relaySignal(sender, targetUser, chat.CallSignal{Type: chat.TypeCallOffer, Offer: offer})
}

func (h *Hub) relayAnswer(sender *Session, targetUser string, answer json.RawMessage) {
	h.relaySignal(sender, targetUser, chat.CallSignal{Type: chat.TypeCallAnswer, Answer: answer})
}

func (h *Hub) relayIceCandidate(sender *Session, targetUser string, candidate json.RawMessage) {
	h.relaySignal(sender, targetUser, chat.CallSignal{Type: chat.TypeCallIceCandidate, Candidate: candidate})
}

func (h *Hub) relayEnd(sender *Session, targetUser string) {
	h.relaySignal(sender, targetUser, chat.CallSignal{Type: chat.TypeCallEnd})
}

// relaySignal delivers one signaling envelope to the target session.
// Callers hold the hub lock.
func (h *Hub) relaySignal(sender *Session, targetUser string, signal chat.CallSignal) {
	if !sender.Bound() {
		return
	}
	target := h.registry.FindByUsername(targetUser)
	if target == nil {
		return
	}
	signal.FromUser = sender.Username
	h.send(target, signal)
}
