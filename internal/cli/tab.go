package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/harun/ticketdesk/internal/config"
	"github.com/harun/ticketdesk/pkg/api"
	"github.com/harun/ticketdesk/pkg/broadcast"
	"github.com/harun/ticketdesk/pkg/credentials"
	"github.com/harun/ticketdesk/pkg/querycache"
	"github.com/harun/ticketdesk/pkg/session"
	"github.com/harun/ticketdesk/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var errNotActive = errors.New("session paused in another tab; type 'claim' to continue here")

var errNotLoggedIn = errors.New("not logged in; use 'login <email> <password>' or 'token <token>'")

var tabCmd = &cobra.Command{
	Use:   "tab",
	Short: "Open an interactive tab",
	Long: `Open an interactive ticketdesk tab. Tabs opened against the same storage
and broadcast channel share one login: the newest tab becomes active and
the others pause until you claim the session in them. An active tab that
sees no input for the inactivity timeout is logged out.`,
	RunE: runTab,
}

func init() {
	rootCmd.AddCommand(tabCmd)
}

// lockedWriter serializes prompt output with asynchronous session notices
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// tab bundles everything one tab owns
type tab struct {
	store  storage.Storage
	coord  *session.Coordinator
	client *api.Client
	data   *api.CachedClient
}

// Close unmounts the coordinator before closing the storage it writes to
func (t *tab) Close() error {
	err := t.coord.Close()
	if cerr := t.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// openChannel connects to the configured broadcast channel
func openChannel(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (broadcast.Channel, error) {
	switch cfg.Broadcast.Mode {
	case config.BroadcastLocal:
		hub := broadcast.NewHub(logger)
		return hub.Open(cfg.Broadcast.Channel), nil
	case config.BroadcastRelay, "":
		return broadcast.Dial(ctx, broadcast.DialConfig{
			URL:        cfg.Broadcast.RelayURL,
			Channel:    cfg.Broadcast.Channel,
			Secret:     cfg.Broadcast.Secret,
			BufferSize: cfg.Broadcast.BufferSize,
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("unknown broadcast mode: %s", cfg.Broadcast.Mode)
	}
}

// openTab wires storage, the API client, the query cache and the
// coordinator together. channel is owned by the returned tab.
func openTab(cfg *config.Config, store storage.Storage, channel broadcast.Channel, logger zerolog.Logger) (*tab, error) {
	cache := querycache.New(querycache.Config{TTL: cfg.CacheTTL()})
	creds := credentials.New(store, logger)

	// The coordinator is created after the client, so the token source
	// reads through a pointer set below.
	var coord *session.Coordinator
	client := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.APITimeout(),
		Tokens: api.TokenFunc(func() string {
			if coord == nil {
				return ""
			}
			return coord.Token()
		}),
		Logger: logger,
	})

	coord, err := session.New(session.Config{
		Credentials:       creds,
		Channel:           channel,
		Profiles:          client,
		Cache:             cache,
		InactivityTimeout: cfg.InactivityTimeout(),
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	client.SetUnauthorizedHandler(coord.Logout)

	return &tab{
		store:  store,
		coord:  coord,
		client: client,
		data:   api.NewCachedClient(client, cache),
	}, nil
}

func runTab(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Close()
	logger := log.GetZerolog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(storage.Options{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
		Origin: cfg.Storage.Origin,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	channel, err := openChannel(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("failed to open broadcast channel: %w", err)
	}

	t, err := openTab(cfg, store, channel, logger)
	if err != nil {
		channel.Close()
		store.Close()
		return err
	}
	defer t.Close()

	out := &lockedWriter{w: cmd.OutOrStdout()}

	if fs, ok := store.(*storage.FileStore); ok {
		if err := fs.Watch(ctx, func(key string) {
			fmt.Fprintf(out, "\n[storage] %q changed in another tab\n", key)
		}); err != nil {
			logger.Warn().Err(err).Msg("Failed to watch storage")
		}
	}

	states, unsubscribe := t.coord.Subscribe()
	defer unsubscribe()
	go watchSession(out, states)

	if err := t.coord.Start(ctx); err != nil {
		return err
	}
	if err := t.coord.WaitReady(ctx); err != nil {
		return err
	}

	shell := &tabShell{tab: t, out: out}
	fmt.Fprintf(out, "ticketdesk tab %s. Type 'help' for commands.\n", t.coord.TabID())
	shell.printStatus()
	return shell.run(ctx, cmd.InOrStdin())
}

// watchSession prints a notice when the tab pauses or the session ends
// without the user asking for it
func watchSession(out io.Writer, states <-chan session.State) {
	var prev *session.State
	for state := range states {
		if prev != nil {
			if prev.IsActive && !state.IsActive {
				fmt.Fprintf(out, "\n%v\n", errNotActive)
			}
			if prev.IsAuthenticated && !state.IsAuthenticated {
				fmt.Fprintln(out, "\nSession ended. Log in again to continue.")
			}
			if !prev.ChannelLost && state.ChannelLost {
				fmt.Fprintln(out, "\nLost contact with other tabs (broadcast relay unreachable). Restart the tab to reconnect.")
			}
		}
		s := state
		prev = &s
	}
}

// tabShell is the command loop of one tab
type tabShell struct {
	*tab
	out io.Writer
}

func (s *tabShell) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		fmt.Fprint(s.out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := s.exec(ctx, line)
			if err != nil {
				fmt.Fprintf(s.out, "Error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// exec runs one command line and reports whether the shell should exit.
// Typing a command counts as key-down activity.
func (s *tabShell) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	s.coord.RecordActivity(session.ActivityKeyDown)

	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "help":
		s.printHelp()
	case "quit", "exit":
		return true, nil
	case "status":
		s.printStatus()
	case "login":
		return false, s.login(ctx, args)
	case "token":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: token <token>")
		}
		s.coord.Login(args[0], nil)
		fmt.Fprintln(s.out, "Token stored. This tab is now active.")
	case "logout":
		s.coord.Logout()
		fmt.Fprintln(s.out, "Logged out.")
	case "claim":
		s.coord.ClaimSession()
		fmt.Fprintln(s.out, "This tab is now active.")
	case "activity":
		kind := session.ActivityPointerDown
		if len(args) > 0 {
			kind = session.ActivityKind(args[0])
		}
		if !kind.Qualifies() {
			return false, fmt.Errorf("unknown activity %q (pointer-down, key-down, scroll, touch-start)", kind)
		}
		s.coord.RecordActivity(kind)
	case "profile", "tickets", "ticket", "comments", "comment", "users", "dashboard":
		if err := s.requireSession(); err != nil {
			return false, err
		}
		return false, s.query(ctx, cmd, args)
	case "new-ticket", "set-status", "set-priority", "assign", "support",
		"user-add", "user-edit", "user-rm", "profile-edit", "password":
		if err := s.requireSession(); err != nil {
			return false, err
		}
		return false, s.mutate(ctx, cmd, args)
	default:
		return false, fmt.Errorf("unknown command %q; type 'help'", cmd)
	}
	return false, nil
}

// requireSession gates the data commands: only the active tab of a
// logged-in session talks to the backend
func (s *tabShell) requireSession() error {
	if !s.coord.IsAuthenticated() {
		return errNotLoggedIn
	}
	if !s.coord.IsActive() {
		return errNotActive
	}
	return nil
}

func (s *tabShell) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: login <email> <password>")
	}
	resp, err := s.client.Login(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	s.coord.Login(resp.AccessToken, resp.User)
	if resp.User != nil {
		fmt.Fprintf(s.out, "Logged in as %s.\n", resp.User.Name)
	} else {
		fmt.Fprintln(s.out, "Logged in.")
	}
	return nil
}

func (s *tabShell) query(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "profile":
		user, err := s.tab.data.GetProfile(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s <%s> (%s)\n", user.Name, user.Email, user.Role)

	case "tickets":
		tickets, err := s.tab.data.ListTickets(ctx)
		if err != nil {
			return err
		}
		if len(tickets) == 0 {
			fmt.Fprintln(s.out, "No tickets.")
		}
		for _, t := range tickets {
			fmt.Fprintf(s.out, "#%d [%s/%s] %s\n", t.ID, t.Status, t.Priority, t.Title)
		}

	case "ticket":
		id, err := ticketID(args)
		if err != nil {
			return err
		}
		t, err := s.tab.data.GetTicket(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "#%d %s\nStatus: %s\nPriority: %s\n\n%s\n", t.ID, t.Title, t.Status, t.Priority, t.Description)

	case "comments":
		id, err := ticketID(args)
		if err != nil {
			return err
		}
		comments, err := s.tab.data.ListComments(ctx, id)
		if err != nil {
			return err
		}
		for _, c := range comments {
			author := "unknown"
			if c.User != nil {
				author = c.User.Name
			}
			fmt.Fprintf(s.out, "%s: %s\n", author, c.Content)
		}

	case "comment":
		if len(args) < 2 {
			return fmt.Errorf("usage: comment <ticket-id> <text>")
		}
		id, err := ticketID(args[:1])
		if err != nil {
			return err
		}
		if _, err := s.tab.data.AddComment(ctx, id, strings.Join(args[1:], " ")); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Comment added to #%d.\n", id)

	case "users":
		if !s.coord.User().CanManageUsers() {
			return fmt.Errorf("only administrators can list users")
		}
		users, err := s.tab.data.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Fprintf(s.out, "%d %s <%s> %s\n", u.ID, u.Name, u.Email, u.Role)
		}

	case "dashboard":
		stats, err := s.tab.data.DashboardStats(ctx)
		if err != nil {
			return err
		}
		writeDashboard(s.out, stats)
	}
	return nil
}

func ticketID(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("ticket id is required")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ticket id: %q", args[0])
	}
	return id, nil
}

func writeDashboard(out io.Writer, stats *api.DashboardStats) {
	counters := []struct {
		label string
		value *int
	}{
		{"Total users", stats.TotalUsers},
		{"Total tickets", stats.TotalTickets},
		{"Open tickets", stats.TicketsOpen},
		{"In progress", stats.TicketsInProgress},
		{"Assigned to me", stats.AssignedTickets},
		{"Urgent assigned", stats.UrgentAssignedTickets},
		{"Unassigned", stats.UnassignedTickets},
		{"Resolved today", stats.ResolvedTicketsToday},
		{"Resolved total", stats.ResolvedTicketsTotal},
		{"My open tickets", stats.MyOpenTickets},
		{"My closed tickets", stats.MyClosedTickets},
	}
	for _, c := range counters {
		if c.value != nil {
			fmt.Fprintf(out, "%-18s %d\n", c.label+":", *c.value)
		}
	}
}

func (s *tabShell) printStatus() {
	state := s.coord.Snapshot()
	fmt.Fprintf(s.out, "Tab: %s\n", state.TabID)
	switch {
	case !state.IsAuthenticated:
		fmt.Fprintln(s.out, "Session: logged out")
	case state.User != nil:
		fmt.Fprintf(s.out, "Session: %s (%s)\n", state.User.Name, state.User.Role)
	default:
		fmt.Fprintln(s.out, "Session: logged in (profile unavailable)")
	}
	if state.IsActive {
		fmt.Fprintln(s.out, "Tab state: active")
	} else {
		fmt.Fprintln(s.out, "Tab state: paused")
	}
	if state.TimerArmed {
		fmt.Fprintln(s.out, "Inactivity timer: armed")
	}
	if state.ChannelLost {
		fmt.Fprintln(s.out, "Broadcast: disconnected, other tabs are not coordinated")
	}
}

func (s *tabShell) printHelp() {
	fmt.Fprint(s.out, `Session:
  login <email> <password>  log in and make this tab active
  token <token>             use an existing access token
  logout                    log out and clear the stored login
  claim                     make this tab the active one
  activity [kind]           record input (pointer-down, key-down, scroll, touch-start)
  status                    show this tab's session
Tickets:
  tickets                   list tickets
  ticket <id>               show a ticket
  comments <id>             list comments on a ticket
  comment <id> <text>       comment on a ticket
  new-ticket <priority> <title> [| <description>]
                            open a ticket (low, medium, high, critical)
  set-status <id> <status>  move a ticket (support and administrators)
  set-priority <id> <prio>  change a ticket's priority (support and administrators)
  assign <id> <user-id>     assign a ticket to a support agent (administrators)
  support                   list support agents (administrators)
  dashboard                 show dashboard counters
Account:
  profile                   show your profile
  profile-edit <email> <name>
                            change your email and name
  password <new-password>   change your password
Users (administrators):
  users                     list users
  user-add <role> <email> <password> <name>
  user-edit <id> <role> <email> <name>
  user-rm <id>
  quit                      close the tab
`)
}
