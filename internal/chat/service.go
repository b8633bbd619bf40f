package chat

import (
	"errors"
	"fmt"
	"log"
	"sort"
)

// Sink delivers an encoded frame to a connection's write queue. It reports
// false when the connection no longer exists.
type Sink interface {
	Push(id int, frame []byte) bool
}

// ErrNotMember is returned when a connection sends to a channel it has not
// joined.
var ErrNotMember = errors.New("sender is not a member of channel")

type member struct {
	name    string
	channel string
}

// Service owns channel membership and fan-out. It runs on the reactor's
// single thread of control: the registry has exactly one writer, so no
// locking is needed by construction.
type Service struct {
	sink     Sink
	logger   *log.Logger
	members  map[int]*member
	channels map[string]map[int]struct{}
	history  *history
}

// NewService creates an empty chat service.
func NewService(logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		logger:   logger,
		members:  make(map[int]*member),
		channels: make(map[string]map[int]struct{}),
		history:  newHistory(),
	}
}

// SetSink wires the delivery path. Must be called before any Send.
func (s *Service) SetSink(sink Sink) {
	s.sink = sink
}

// Join subscribes a connection to a channel under the given display name.
// A connection belongs to at most one channel: joining a new channel
// leaves the previous one first.
func (s *Service) Join(connID int, channel, name string) {
	if m, ok := s.members[connID]; ok && m.channel != channel {
		s.dropMembership(connID, m.channel)
	}
	s.members[connID] = &member{name: name, channel: channel}
	set, ok := s.channels[channel]
	if !ok {
		set = make(map[int]struct{})
		s.channels[channel] = set
	}
	set[connID] = struct{}{}
	s.logger.Printf("conn %d joined %q as %q", connID, channel, name)
}

// Leave removes a connection's membership. Called by handlers on a leave
// frame and by the reactor on connection close; unknown connections are a
// no-op so the close path can call it unconditionally.
func (s *Service) Leave(connID int) {
	m, ok := s.members[connID]
	if !ok {
		return
	}
	delete(s.members, connID)
	s.dropMembership(connID, m.channel)
	s.logger.Printf("conn %d left %q", connID, m.channel)
}

// dropMembership removes the connection from a channel's subscriber set,
// pruning the channel when it empties.
func (s *Service) dropMembership(connID int, channel string) {
	set, ok := s.channels[channel]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(s.channels, channel)
	}
}

// Send validates membership, logs the message, and fans the encoded frame
// out to every other subscriber of the channel. The sender does not
// receive its own echo; an empty or solo channel makes delivery a no-op.
func (s *Service) Send(connID int, channel, body string) (Message, error) {
	m, ok := s.members[connID]
	if !ok || m.channel != channel {
		return Message{}, fmt.Errorf("%w: %q", ErrNotMember, channel)
	}

	msg := s.history.append(channel, m.name, body)

	frame := Frame{Type: TypeMessage, Channel: channel, Sender: m.name, Body: body}
	encoded, err := frame.Encode()
	if err != nil {
		return Message{}, err
	}
	for peer := range s.channels[channel] {
		if peer == connID {
			continue
		}
		if !s.sink.Push(peer, encoded) {
			// Stale table entry; the close hook will reap it.
			s.logger.Printf("conn %d unreachable during fan-out on %q", peer, channel)
		}
	}
	return msg, nil
}

// Members returns the display names subscribed to a channel, sorted.
func (s *Service) Members(channel string) []string {
	set := s.channels[channel]
	names := make([]string, 0, len(set))
	for id := range set {
		if m, ok := s.members[id]; ok {
			names = append(names, m.name)
		}
	}
	sort.Strings(names)
	return names
}

// Channels returns channel names with subscriber counts, sorted by name.
func (s *Service) Channels() []ChannelInfo {
	out := make([]ChannelInfo, 0, len(s.channels))
	for name, set := range s.channels {
		out = append(out, ChannelInfo{Name: name, Members: len(set)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Messages returns a channel's history sorted by timestamp ascending.
func (s *Service) Messages(channel string) []Message {
	return s.history.messages(channel)
}

// ChannelInfo is the listing entry for a channel.
type ChannelInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}
