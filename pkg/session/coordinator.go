package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/ticketdesk/internal/clock"
	"github.com/harun/ticketdesk/internal/observability"
	"github.com/harun/ticketdesk/pkg/api"
	"github.com/harun/ticketdesk/pkg/broadcast"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// DefaultInactivityTimeout is how long an active tab may sit idle before
// it is logged out
const DefaultInactivityTimeout = 15 * time.Minute

// ErrAlreadyStarted is returned by a second call to Start
var ErrAlreadyStarted = errors.New("session coordinator already started")

// ErrClosed is returned by Start after Close
var ErrClosed = errors.New("session coordinator is closed")

// Credentials persists the token and cached user
type Credentials interface {
	Save(token string, user *api.User)
	SaveUser(user *api.User)
	Clear()
	Load() (string, *api.User)
	CachedUser() *api.User
}

// ProfileFetcher returns the identity behind the stored token
type ProfileFetcher interface {
	GetProfile(ctx context.Context) (*api.User, error)
}

// CacheInvalidator drops every cached server response
type CacheInvalidator interface {
	Clear()
}

// Config holds coordinator dependencies
type Config struct {
	Credentials Credentials
	Channel     broadcast.Channel
	Profiles    ProfileFetcher
	// Cache is optional
	Cache CacheInvalidator
	// Clock defaults to clock.Real()
	Clock             clock.Clock
	InactivityTimeout time.Duration
	// TabID defaults to a fresh random id
	TabID  string
	Logger zerolog.Logger
}

// State is a point-in-time copy of the coordinator's session state
type State struct {
	TabID           string
	Token           string
	User            *api.User
	IsAuthenticated bool
	IsLoading       bool
	IsActive        bool
	TimerArmed      bool
	// ChannelLost is set when the broadcast channel closed while the tab
	// was still open, e.g. the relay went away
	ChannelLost bool
}

// Coordinator is the session of one tab
type Coordinator struct {
	creds    Credentials
	channel  broadcast.Channel
	profiles ProfileFetcher
	cache    CacheInvalidator
	clock    clock.Clock
	timeout  time.Duration
	tabID    string
	logger   zerolog.Logger

	mu      sync.Mutex
	token   string
	user    *api.User
	loading bool
	active  bool
	epoch   uint64
	started bool
	closed  bool

	channelLost bool

	timer    clock.Timer
	timerSeq uint64

	fetchCancel context.CancelFunc
	ready       chan struct{}
	readyOnce   sync.Once
	loopDone    chan struct{}

	subsMu sync.Mutex
	subs   map[chan State]struct{}
}

// New creates a coordinator and reads the persisted token. The tab is
// loading and inactive until Start runs the mount sequence.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credentials are required")
	}
	if cfg.Channel == nil {
		return nil, fmt.Errorf("broadcast channel is required")
	}
	if cfg.Profiles == nil {
		return nil, fmt.Errorf("profile fetcher is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = DefaultInactivityTimeout
	}
	if cfg.TabID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate tab id: %w", err)
		}
		cfg.TabID = id
	}

	observability.EnsureRegistered()

	token, _ := cfg.Credentials.Load()

	return &Coordinator{
		creds:    cfg.Credentials,
		channel:  cfg.Channel,
		profiles: cfg.Profiles,
		cache:    cfg.Cache,
		clock:    cfg.Clock,
		timeout:  cfg.InactivityTimeout,
		tabID:    cfg.TabID,
		logger:   cfg.Logger.With().Str("component", "session").Str("tab_id", cfg.TabID).Logger(),
		token:    token,
		loading:  true,
		ready:    make(chan struct{}),
		loopDone: make(chan struct{}),
		subs:     make(map[chan State]struct{}),
	}, nil
}

// Start runs the mount sequence: it listens on the broadcast channel,
// claims leadership, announces the tab and refreshes the profile in the
// background.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	token := c.token
	epoch := c.epoch
	c.mu.Unlock()

	go c.listen()

	c.claim(ctx)
	c.post(ctx, broadcast.TypeTabAnnounce)

	if token == "" {
		c.finishLoading()
	} else {
		fetchCtx, cancel := context.WithCancel(ctx)
		c.mu.Lock()
		c.fetchCancel = cancel
		c.mu.Unlock()
		go c.refreshProfile(fetchCtx, epoch)
	}

	c.logger.Info().Bool("authenticated", token != "").Msg("Session coordinator started")
	return nil
}

// Close unmounts the tab: the timer is disarmed, the broadcast channel is
// closed and subscribers are released. It is idempotent.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	c.disarmLocked()
	if c.fetchCancel != nil {
		c.fetchCancel()
		c.fetchCancel = nil
	}
	c.mu.Unlock()

	err := c.channel.Close()
	if started {
		<-c.loopDone
	}
	c.finishLoading()

	c.subsMu.Lock()
	for ch := range c.subs {
		delete(c.subs, ch)
		close(ch)
	}
	c.subsMu.Unlock()

	c.logger.Info().Msg("Session coordinator closed")
	if err != nil {
		return fmt.Errorf("failed to close broadcast channel: %w", err)
	}
	return nil
}

// Login stores a freshly issued token, and user when non-nil, then claims
// the session for this tab
func (c *Coordinator) Login(token string, user *api.User) {
	c.mu.Lock()
	c.creds.Save(token, user)
	c.epoch++
	c.token = token
	if user != nil {
		c.user = user
	}
	c.cancelFetchLocked()
	c.mu.Unlock()

	c.finishLoading()

	observability.RecordSessionEvent("login")
	observability.RecordSessionAudit(c.tabID, "login", "success", nil)
	c.logger.Info().Msg("Logged in")

	c.claim(context.Background())
}

// Logout clears the stored credentials, the in-memory session and the
// request cache. Storage and cache are cleared on every call, since a
// sibling tab may have written a token this tab never loaded. Metrics,
// audit and notifications only fire when an in-memory session ended.
func (c *Coordinator) Logout() {
	c.mu.Lock()
	cleared := c.clearLocked()
	if !cleared {
		c.creds.Clear()
	}
	c.mu.Unlock()

	if !cleared {
		if c.cache != nil {
			c.cache.Clear()
		}
		c.finishLoading()
		return
	}
	c.logger.Info().Msg("Logged out")
	c.afterLogout("logout")
}

// clearLocked drops the session and reports whether there was one
func (c *Coordinator) clearLocked() bool {
	if c.token == "" && c.user == nil {
		return false
	}
	c.epoch++
	c.token = ""
	c.user = nil
	c.creds.Clear()
	c.cancelFetchLocked()
	c.syncTimerLocked()
	return true
}

func (c *Coordinator) afterLogout(reason string) {
	if c.cache != nil {
		c.cache.Clear()
	}
	c.finishLoading()

	observability.RecordSessionEvent(reason)
	observability.RecordSessionAudit(c.tabID, reason, "success", nil)
	c.notify()
}

// UpdateUser replaces the cached profile after the user edited it. It
// does nothing while logged out.
func (c *Coordinator) UpdateUser(user *api.User) {
	if user == nil {
		return
	}
	c.mu.Lock()
	if c.token == "" {
		c.mu.Unlock()
		return
	}
	c.user = user
	c.creds.SaveUser(user)
	c.mu.Unlock()
	c.notify()
}

// ClaimSession makes this tab the active one and tells its siblings to pause
func (c *Coordinator) ClaimSession() {
	observability.RecordSessionEvent("claim")
	c.claim(context.Background())
}

// claim sets the tab active and posts its leadership claim
func (c *Coordinator) claim(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.setActiveLocked(true)
	c.mu.Unlock()
	c.notify()

	c.post(ctx, broadcast.TypeLeadershipClaim)
}

func (c *Coordinator) post(ctx context.Context, t broadcast.MessageType) {
	err := c.channel.Post(ctx, broadcast.Message{Type: t, TabID: c.tabID})
	if err != nil {
		c.logger.Warn().Err(err).Str("type", string(t)).Msg("Failed to post broadcast message")
	}
}

// refreshProfile is the single profile fetch made at mount
func (c *Coordinator) refreshProfile(ctx context.Context, epoch uint64) {
	user, err := c.profiles.GetProfile(ctx)

	c.mu.Lock()
	if c.closed || c.epoch != epoch {
		c.mu.Unlock()
		c.logger.Debug().Msg("Discarding profile response from a previous session")
		return
	}
	c.fetchCancel = nil

	if err != nil {
		observability.RecordProfileRefresh(false)
		c.logger.Warn().Err(err).Msg("Failed to fetch user profile on init, using cached user")
		c.user = c.creds.CachedUser()
	} else {
		observability.RecordProfileRefresh(true)
		c.user = user
		c.creds.SaveUser(user)
	}
	c.mu.Unlock()

	c.finishLoading()
}

func (c *Coordinator) cancelFetchLocked() {
	if c.fetchCancel != nil {
		c.fetchCancel()
		c.fetchCancel = nil
	}
}

// finishLoading resolves the init refresh exactly once
func (c *Coordinator) finishLoading() {
	c.readyOnce.Do(func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
		close(c.ready)
		c.notify()
	})
}

// WaitReady blocks until the init profile refresh resolved
func (c *Coordinator) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TabID returns this tab's identifier
func (c *Coordinator) TabID() string {
	return c.tabID
}

// IsAuthenticated reports whether a token is present
func (c *Coordinator) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

func (c *Coordinator) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Coordinator) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// User returns the cached profile or nil
func (c *Coordinator) User() *api.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Token returns the session token or "". It satisfies api.TokenSource.
func (c *Coordinator) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Snapshot returns a copy of the current state
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() State {
	return State{
		TabID:           c.tabID,
		Token:           c.token,
		User:            c.user,
		IsAuthenticated: c.token != "",
		IsLoading:       c.loading,
		IsActive:        c.active,
		TimerArmed:      c.timer != nil,
		ChannelLost:     c.channelLost,
	}
}

// Subscribe returns a channel that receives the latest state after every
// change. Slow readers only see the most recent state. The returned func
// releases the subscription.
func (c *Coordinator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.subsMu.Lock()
	closed := c.isClosed()
	if closed {
		close(ch)
	} else {
		c.subs[ch] = struct{}{}
	}
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			defer c.subsMu.Unlock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
		})
	}
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// notify must not be called with c.mu held
func (c *Coordinator) notify() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if len(c.subs) == 0 {
		return
	}

	state := c.Snapshot()
	for ch := range c.subs {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}
