package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/ticketdesk/internal/observability"
	"github.com/rs/zerolog"
)

// DialConfig holds remote channel configuration
type DialConfig struct {
	// URL is the relay base address, e.g. ws://127.0.0.1:8787
	URL        string
	Channel    string
	Secret     string
	BufferSize int
	Dialer     *websocket.Dialer
	Logger     zerolog.Logger
}

// RemoteChannel is a Channel member connected through a Relay
type RemoteChannel struct {
	conn    *websocket.Conn
	inbox   chan Message
	logger  zerolog.Logger
	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	readerWG  sync.WaitGroup
}

var _ Channel = (*RemoteChannel)(nil)

// Dial connects to the relay and completes the origin handshake
func Dial(ctx context.Context, cfg DialConfig) (*RemoteChannel, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	endpoint, err := relayEndpoint(cfg.URL, cfg.Channel)
	if err != nil {
		return nil, err
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}

	if err := handshake(conn, cfg.Secret); err != nil {
		conn.Close()
		return nil, err
	}

	rc := &RemoteChannel{
		conn:   conn,
		inbox:  make(chan Message, cfg.BufferSize),
		logger: cfg.Logger.With().Str("component", "broadcast-remote").Str("channel", cfg.Channel).Logger(),
		done:   make(chan struct{}),
	}

	rc.readerWG.Add(1)
	go rc.readLoop()

	rc.logger.Info().Str("relay", endpoint).Msg("Joined broadcast relay")
	return rc, nil
}

func relayEndpoint(base, channel string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("relay url is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid relay url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported relay url scheme: %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"channel": []string{channel}}.Encode()
	return u.String(), nil
}

func handshake(conn *websocket.Conn, secret string) error {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var challenge authChallenge
	if err := conn.ReadJSON(&challenge); err != nil {
		return fmt.Errorf("failed to read auth challenge: %w", err)
	}
	if challenge.Event != "auth.challenge" {
		return fmt.Errorf("unexpected handshake frame: %q", challenge.Event)
	}

	resp := authResponse{Method: "auth.response", Signature: Sign(secret, challenge.Challenge)}
	if err := conn.WriteJSON(resp); err != nil {
		return fmt.Errorf("failed to send auth response: %w", err)
	}

	var result authResult
	if err := conn.ReadJSON(&result); err != nil {
		return fmt.Errorf("failed to read auth result: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("relay rejected member: %s", result.Message)
	}
	return nil
}

func (rc *RemoteChannel) readLoop() {
	defer rc.readerWG.Done()
	defer close(rc.inbox)

	for {
		_, data, err := rc.conn.ReadMessage()
		if err != nil {
			select {
			case <-rc.done:
			default:
				rc.logger.Warn().Err(err).Msg("Relay connection lost")
			}
			return
		}

		msg, err := Validate(data)
		if err != nil {
			rc.logger.Debug().Err(err).Msg("Ignoring non-message frame")
			continue
		}

		select {
		case rc.inbox <- msg:
			observability.RecordBroadcastReceived(string(msg.Type))
		default:
			observability.RecordBroadcastDropped("buffer_full")
			rc.logger.Warn().Str("type", string(msg.Type)).Msg("Inbox full, message dropped")
		}
	}
}

// Post sends msg through the relay
func (rc *RemoteChannel) Post(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Check(); err != nil {
		return err
	}
	select {
	case <-rc.done:
		return ErrClosed
	default:
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()

	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = rc.conn.SetWriteDeadline(deadline)
	if err := rc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	return nil
}

// Messages returns inbound messages; closed when the connection ends
func (rc *RemoteChannel) Messages() <-chan Message {
	return rc.inbox
}

// Close leaves the relay; it is idempotent
func (rc *RemoteChannel) Close() error {
	var err error
	rc.closeOnce.Do(func() {
		close(rc.done)

		rc.writeMu.Lock()
		_ = rc.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = rc.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		rc.writeMu.Unlock()

		if closeErr := rc.conn.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = closeErr
		}
		rc.readerWG.Wait()
	})
	return err
}
