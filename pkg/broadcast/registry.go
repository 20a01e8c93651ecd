package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// member is one websocket connection on the relay
type member struct {
	ID            string
	Channel       string
	Conn          *websocket.Conn
	Authenticated bool
	Challenge     string
	AuthAttempts  int
	ConnectedAt   time.Time
	LastActivity  time.Time
	RemoteAddr    string
	limiter       *frameLimiter
	writeMu       sync.Mutex
}

// write serializes frames on the connection
func (m *member) write(messageType int, data []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = m.Conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return m.Conn.WriteMessage(messageType, data)
}

func (m *member) writeJSON(v interface{}) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = m.Conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return m.Conn.WriteJSON(v)
}

// MemberInfo describes a connected member
type MemberInfo struct {
	ID            string    `json:"id"`
	Channel       string    `json:"channel"`
	Authenticated bool      `json:"authenticated"`
	ConnectedAt   time.Time `json:"connectedAt"`
	LastActivity  time.Time `json:"lastActivity"`
	RemoteAddr    string    `json:"remoteAddr"`
}

// memberRegistry tracks relay members by channel
type memberRegistry struct {
	mu       sync.RWMutex
	channels map[string]map[string]*member
}

func newMemberRegistry() *memberRegistry {
	return &memberRegistry{
		channels: make(map[string]map[string]*member),
	}
}

func (r *memberRegistry) add(m *member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.channels[m.Channel]
	if !ok {
		members = make(map[string]*member)
		r.channels[m.Channel] = members
	}
	members[m.ID] = m
}

func (r *memberRegistry) remove(m *member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.channels[m.Channel]
	delete(members, m.ID)
	if len(members) == 0 {
		delete(r.channels, m.Channel)
	}
}

// authenticated returns the authenticated members of a channel
func (r *memberRegistry) authenticated(channel string) []*member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*member, 0, len(r.channels[channel]))
	for _, m := range r.channels[channel] {
		if m.Authenticated {
			members = append(members, m)
		}
	}
	return members
}

func (r *memberRegistry) all() []*member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var members []*member
	for _, channel := range r.channels {
		for _, m := range channel {
			members = append(members, m)
		}
	}
	return members
}

func (r *memberRegistry) setAuthenticated(m *member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.Authenticated = true
	m.Challenge = ""
	m.AuthAttempts = 0
}

func (r *memberRegistry) touch(m *member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.LastActivity = time.Now()
}

func (r *memberRegistry) count(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, m := range r.channels[channel] {
		if m.Authenticated {
			n++
		}
	}
	return n
}

func (r *memberRegistry) info() []MemberInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []MemberInfo
	for _, channel := range r.channels {
		for _, m := range channel {
			infos = append(infos, MemberInfo{
				ID:            m.ID,
				Channel:       m.Channel,
				Authenticated: m.Authenticated,
				ConnectedAt:   m.ConnectedAt,
				LastActivity:  m.LastActivity,
				RemoteAddr:    m.RemoteAddr,
			})
		}
	}
	return infos
}
