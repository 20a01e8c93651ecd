package broadcast

import (
	"context"
	"sync"

	"github.com/harun/ticketdesk/internal/observability"
	"github.com/rs/zerolog"
)

// DefaultBufferSize is the per-member inbound queue length
const DefaultBufferSize = 64

// Hub connects channel members living in the same process
type Hub struct {
	mu         sync.RWMutex
	channels   map[string]map[*HubMember]struct{}
	bufferSize int
	logger     zerolog.Logger
}

// HubMember is one member of a Hub channel
type HubMember struct {
	hub    *Hub
	name   string
	inbox  chan Message
	closed bool
}

var _ Channel = (*HubMember)(nil)

// NewHub creates an empty hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		channels:   make(map[string]map[*HubMember]struct{}),
		bufferSize: DefaultBufferSize,
		logger:     logger.With().Str("component", "broadcast-hub").Logger(),
	}
}

// Open joins the channel called name
func (h *Hub) Open(name string) *HubMember {
	h.mu.Lock()
	defer h.mu.Unlock()

	m := &HubMember{
		hub:   h,
		name:  name,
		inbox: make(chan Message, h.bufferSize),
	}
	members, ok := h.channels[name]
	if !ok {
		members = make(map[*HubMember]struct{})
		h.channels[name] = members
	}
	members[m] = struct{}{}
	return m
}

// Members returns the number of open members on a channel
func (h *Hub) Members(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[name])
}

// Post delivers msg to every open member of the channel
func (m *HubMember) Post(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Check(); err != nil {
		return err
	}

	m.hub.mu.RLock()
	defer m.hub.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	observability.RecordBroadcastPosted(string(msg.Type))
	for member := range m.hub.channels[m.name] {
		select {
		case member.inbox <- msg:
			observability.RecordBroadcastReceived(string(msg.Type))
		default:
			observability.RecordBroadcastDropped("buffer_full")
			m.hub.logger.Warn().
				Str("channel", m.name).
				Str("type", string(msg.Type)).
				Str("tab_id", msg.TabID).
				Msg("Member inbox full, message dropped")
		}
	}
	return nil
}

// Messages returns the member's inbound queue
func (m *HubMember) Messages() <-chan Message {
	return m.inbox
}

// Close leaves the channel; it is idempotent
func (m *HubMember) Close() error {
	m.hub.mu.Lock()
	defer m.hub.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	members := m.hub.channels[m.name]
	delete(members, m)
	if len(members) == 0 {
		delete(m.hub.channels, m.name)
	}
	close(m.inbox)
	return nil
}
