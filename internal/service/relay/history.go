package relay

import "github.com/parleychat/parley/internal/model/chat"

// History is the bounded in-memory message log. Records are kept in
// arrival order; once the cap is exceeded the oldest records are
// discarded. Like the Registry it relies on the Hub for locking.
type History struct {
	records []chat.Message
	limit   int
}

// NewHistory returns an empty log retaining at most limit records.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Append adds a record to the tail, evicting from the head when the
// retention cap is exceeded.
func (h *History) Append(message chat.Message) {
	h.records = append(h.records, message)
	if len(h.records) > h.limit {
		h.records = h.records[len(h.records)-h.limit:]
	}
}

// Tail returns a copy of the most recent n records in arrival order.
// n larger than the retained length yields everything retained.
func (h *History) Tail(n int) []chat.Message {
	if n > len(h.records) {
		n = len(h.records)
	}
	if n <= 0 {
		return []chat.Message{}
	}
	tail := make([]chat.Message, n)
	copy(tail, h.records[len(h.records)-n:])
	return tail
}

// Len is the number of retained records.
func (h *History) Len() int {
	return len(h.records)
}
