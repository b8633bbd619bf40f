package chat

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Message is a logged chat message. Ids and timestamps are assigned
// server-side when the message is accepted.
type Message struct {
	ID        string `json:"id"`
	Channel   string `json:"channel"`
	Sender    string `json:"sender"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}

// history keeps per-channel message logs in arrival order and sorts on
// read, so retrieval is always timestamp-ascending even if clock skew
// reorders appends.
type history struct {
	logs map[string][]Message
}

func newHistory() *history {
	return &history{logs: make(map[string][]Message)}
}

func (h *history) append(channel, sender, body string) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Channel:   channel,
		Sender:    sender,
		Body:      body,
		Timestamp: time.Now().UnixMilli(),
	}
	h.logs[channel] = append(h.logs[channel], msg)
	return msg
}

func (h *history) messages(channel string) []Message {
	log := h.logs[channel]
	out := make([]Message, len(log))
	copy(out, log)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}
