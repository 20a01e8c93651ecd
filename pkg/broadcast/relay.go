package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/ticketdesk/internal/observability"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// handshakeTimeout bounds how long a connection may stay unauthenticated
const handshakeTimeout = 10 * time.Second

var channelNameRegex = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RelayConfig holds relay configuration
type RelayConfig struct {
	Addr            string
	Secret          string
	FramesPerMinute int
	Logger          zerolog.Logger
}

// Relay forwards broadcast messages between processes over websockets
type Relay struct {
	addr            string
	auth            *originAuth
	framesPerMinute int
	members         *memberRegistry
	upgrader        websocket.Upgrader
	server          *http.Server
	listener        net.Listener
	logger          zerolog.Logger
	startedAt       time.Time

	shutdownMu     sync.RWMutex
	isShuttingDown bool
	connWG         sync.WaitGroup
}

// NewRelay creates a relay
func NewRelay(cfg RelayConfig) (*Relay, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("relay secret is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}

	return &Relay{
		addr:            cfg.Addr,
		auth:            newOriginAuth(cfg.Secret),
		framesPerMinute: cfg.FramesPerMinute,
		members:         newMemberRegistry(),
		startedAt:       time.Now(),
		logger:          cfg.Logger.With().Str("component", "relay").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // membership is enforced by the origin secret
			},
		},
	}, nil
}

// Handler returns the relay's HTTP routes
func (r *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", r.handleWebSocket)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", r.handleHealth)
	return mux
}

// Health is the body of GET /healthz
type Health struct {
	Status        string `json:"status"`
	Members       int    `json:"members"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (r *Relay) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Health{
		Status:        "ok",
		Members:       len(r.members.info()),
		UptimeSeconds: int64(time.Since(r.startedAt).Seconds()),
	})
}

// Start listens on the configured address and serves in the background
func (r *Relay) Start() error {
	listener, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.addr, err)
	}
	r.listener = listener
	r.server = &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	r.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting broadcast relay")

	go func() {
		if err := r.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error().Err(err).Msg("Broadcast relay error")
		}
	}()
	return nil
}

// Addr returns the listening address once started
func (r *Relay) Addr() string {
	if r.listener == nil {
		return r.addr
	}
	return r.listener.Addr().String()
}

// Stop closes every member connection and shuts the server down
func (r *Relay) Stop(ctx context.Context) error {
	r.shutdownMu.Lock()
	r.isShuttingDown = true
	r.shutdownMu.Unlock()

	r.logger.Info().Msg("Shutting down broadcast relay")

	for _, m := range r.members.all() {
		_ = m.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"))
		m.Conn.Close()
	}

	var err error
	if r.server != nil {
		if shutdownErr := r.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("failed to shutdown relay: %w", shutdownErr)
		}
	}

	done := make(chan struct{})
	go func() {
		r.connWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn().Msg("Shutdown timeout reached, member goroutines still running")
	}

	r.logger.Info().Msg("Broadcast relay stopped")
	return err
}

// Members returns information about connected members
func (r *Relay) Members() []MemberInfo {
	return r.members.info()
}

func (r *Relay) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	r.shutdownMu.RLock()
	if r.isShuttingDown {
		r.shutdownMu.RUnlock()
		http.Error(w, "relay is shutting down", http.StatusServiceUnavailable)
		return
	}
	r.shutdownMu.RUnlock()

	channel := req.URL.Query().Get("channel")
	if !channelNameRegex.MatchString(channel) {
		observability.RecordRelayRejected("bad_channel")
		http.Error(w, "invalid channel name", http.StatusBadRequest)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	memberID, _ := gonanoid.New()
	m := &member{
		ID:           memberID,
		Channel:      channel,
		Conn:         conn,
		ConnectedAt:  time.Now(),
		LastActivity: time.Now(),
		RemoteAddr:   req.RemoteAddr,
		limiter:      newFrameLimiter(r.framesPerMinute),
	}
	r.members.add(m)

	r.logger.Info().
		Str("member_id", memberID).
		Str("channel", channel).
		Str("ip", req.RemoteAddr).
		Msg("Member connected")

	challenge, err := r.auth.challenge()
	if err == nil {
		m.Challenge = challenge
		err = m.writeJSON(authChallenge{Event: "auth.challenge", Challenge: challenge})
	}
	if err != nil {
		r.logger.Error().Err(err).Str("member_id", memberID).Msg("Failed to send auth challenge")
		conn.Close()
		r.members.remove(m)
		return
	}

	r.connWG.Add(1)
	go r.handleMember(m)
}

func (r *Relay) handleMember(m *member) {
	defer r.connWG.Done()
	defer func() {
		m.Conn.Close()
		r.members.remove(m)
		observability.SetRelayMembers(m.Channel, r.members.count(m.Channel))
		r.logger.Info().Str("member_id", m.ID).Str("channel", m.Channel).Msg("Member disconnected")
	}()

	_ = m.Conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	for {
		_, data, err := m.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				r.logger.Warn().Err(err).Str("member_id", m.ID).Msg("WebSocket error")
			}
			return
		}
		r.members.touch(m)

		if !m.Authenticated {
			if !r.handleAuth(m, data) {
				return
			}
			continue
		}

		if !m.limiter.allow() {
			observability.RecordRelayRejected("rate_limited")
			r.logger.Warn().Str("member_id", m.ID).Msg("Member exceeded frame rate, frame dropped")
			continue
		}

		msg, err := Validate(data)
		if err != nil {
			observability.RecordRelayRejected("invalid_frame")
			r.logger.Warn().Err(err).Str("member_id", m.ID).Msg("Invalid frame dropped")
			continue
		}

		r.fanout(m.Channel, msg, data)
	}
}

// handleAuth processes a handshake frame. It returns false when the
// connection must be closed.
func (r *Relay) handleAuth(m *member, data []byte) bool {
	var resp authResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.Method != "auth.response" {
		_ = m.writeJSON(authResult{Event: "auth.failure", Message: "Authentication required"})
		observability.RecordRelayRejected("unauthenticated")
		return false
	}

	if m.Challenge == "" || !r.auth.verify(m.Challenge, resp.Signature) {
		m.AuthAttempts++
		message := "Invalid signature"
		if m.AuthAttempts >= maxAuthAttempts {
			message = "Too many failed attempts"
		}
		_ = m.writeJSON(authResult{Event: "auth.failure", Message: message})
		observability.RecordRelayAudit("member_auth", "failure", map[string]interface{}{
			"member_id": m.ID,
			"channel":   m.Channel,
			"attempts":  m.AuthAttempts,
		})
		r.logger.Warn().Str("member_id", m.ID).Str("reason", message).Msg("Authentication failed")
		return m.AuthAttempts < maxAuthAttempts
	}

	r.members.setAuthenticated(m)
	_ = m.Conn.SetReadDeadline(time.Time{})
	if err := m.writeJSON(authResult{Event: "auth.success", Success: true}); err != nil {
		r.logger.Error().Err(err).Str("member_id", m.ID).Msg("Failed to send auth result")
		return false
	}

	observability.SetRelayMembers(m.Channel, r.members.count(m.Channel))
	observability.RecordRelayAudit("member_auth", "success", map[string]interface{}{
		"member_id": m.ID,
		"channel":   m.Channel,
	})
	r.logger.Info().Str("member_id", m.ID).Str("channel", m.Channel).Msg("Member authenticated")
	return true
}

// fanout sends a validated frame to every authenticated member of channel
func (r *Relay) fanout(channel string, msg Message, data []byte) {
	members := r.members.authenticated(channel)
	observability.RecordBroadcastPosted(string(msg.Type))

	success, failed := 0, 0
	for _, m := range members {
		if err := m.write(websocket.TextMessage, data); err != nil {
			r.logger.Warn().
				Err(err).
				Str("member_id", m.ID).
				Str("type", string(msg.Type)).
				Msg("Failed to relay message to member")
			observability.RecordBroadcastDropped("write_failed")
			failed++
			continue
		}
		observability.RecordBroadcastReceived(string(msg.Type))
		success++
	}

	r.logger.Debug().
		Str("channel", channel).
		Str("type", string(msg.Type)).
		Str("tab_id", msg.TabID).
		Int("success", success).
		Int("failed", failed).
		Msg("Relay broadcast complete")
}
