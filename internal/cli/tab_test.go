package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harun/ticketdesk/internal/config"
	"github.com/harun/ticketdesk/pkg/api"
	"github.com/harun/ticketdesk/pkg/broadcast"
	"github.com/harun/ticketdesk/pkg/session"
	"github.com/harun/ticketdesk/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUser = api.User{ID: 7, Name: "Ana", Email: "ana@example.com", Role: api.RoleSupport}

// newBackend serves the endpoints the shell uses. Only "tok-1" is accepted.
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	authorized := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
			return false
		}
		return true
	}
	writeData := func(w http.ResponseWriter, v interface{}) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": v})
	}

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
			return
		}
		writeData(w, api.LoginResponse{AccessToken: "tok-1", TokenType: "bearer", User: &testUser})
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		if authorized(w, r) {
			writeData(w, testUser)
		}
	})
	mux.HandleFunc("/tickets", func(w http.ResponseWriter, r *http.Request) {
		if authorized(w, r) {
			writeData(w, []api.Ticket{{ID: 1, Title: "Printer jam", Status: api.StatusOpen, Priority: api.PriorityHigh}})
		}
	})
	mux.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if authorized(w, r) {
			_, _ = w.Write([]byte(`{"data":{"assigned_tickets":3,"unassigned_tickets":1}}`))
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.Broadcast.Mode = config.BroadcastLocal
	return cfg
}

// startShell mounts a tab on hub and store and returns its shell
func startShell(t *testing.T, cfg *config.Config, hub *broadcast.Hub, store storage.Storage) (*tabShell, *bytes.Buffer) {
	t.Helper()

	tb, err := openTab(cfg, store, hub.Open("ticketdesk"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tb.coord.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tb.coord.Start(context.Background()))
	require.NoError(t, tb.coord.WaitReady(ctx))

	out := &bytes.Buffer{}
	return &tabShell{tab: tb, out: out}, out
}

func TestTabShellLoginAndTickets(t *testing.T) {
	srv := newBackend(t)
	shell, out := startShell(t, testConfig(srv.URL), broadcast.NewHub(zerolog.Nop()), storage.NewMemory())
	ctx := context.Background()

	_, err := shell.exec(ctx, "tickets")
	assert.ErrorIs(t, err, errNotLoggedIn)

	_, err = shell.exec(ctx, "login ana@example.com secret")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Logged in as Ana.")
	assert.True(t, shell.coord.IsAuthenticated())
	assert.True(t, shell.coord.IsActive())
	assert.Equal(t, "tok-1", shell.coord.Token())

	out.Reset()
	_, err = shell.exec(ctx, "tickets")
	require.NoError(t, err)
	assert.Equal(t, "#1 [open/high] Printer jam\n", out.String())

	out.Reset()
	_, err = shell.exec(ctx, "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Assigned to me:    3")
	assert.Contains(t, out.String(), "Unassigned:        1")
}

func TestTabShellLoginFailure(t *testing.T) {
	srv := newBackend(t)
	shell, _ := startShell(t, testConfig(srv.URL), broadcast.NewHub(zerolog.Nop()), storage.NewMemory())

	_, err := shell.exec(context.Background(), "login ana@example.com wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")
	assert.False(t, shell.coord.IsAuthenticated())
}

func TestTabShellUnauthorizedLogsOut(t *testing.T) {
	srv := newBackend(t)
	store := storage.NewMemory()
	shell, _ := startShell(t, testConfig(srv.URL), broadcast.NewHub(zerolog.Nop()), store)
	ctx := context.Background()

	_, err := shell.exec(ctx, "token expired")
	require.NoError(t, err)
	require.True(t, shell.coord.IsAuthenticated())

	_, err = shell.exec(ctx, "tickets")
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
	assert.False(t, shell.coord.IsAuthenticated())

	_, ok, err := store.Get("token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTabShellNewerTabTakesOver(t *testing.T) {
	srv := newBackend(t)
	cfg := testConfig(srv.URL)
	hub := broadcast.NewHub(zerolog.Nop())
	store := storage.NewMemory()
	ctx := context.Background()

	first, _ := startShell(t, cfg, hub, store)
	_, err := first.exec(ctx, "login ana@example.com secret")
	require.NoError(t, err)

	second, _ := startShell(t, cfg, hub, store)
	assert.True(t, second.coord.IsAuthenticated())
	assert.Eventually(t, func() bool { return !first.coord.IsActive() }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, second.coord.IsActive())

	_, err = first.exec(ctx, "tickets")
	assert.ErrorIs(t, err, errNotActive)

	_, err = first.exec(ctx, "claim")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return !second.coord.IsActive() }, 2*time.Second, 10*time.Millisecond)

	_, err = first.exec(ctx, "tickets")
	assert.NoError(t, err)
}

func TestTabShellCommands(t *testing.T) {
	srv := newBackend(t)
	shell, out := startShell(t, testConfig(srv.URL), broadcast.NewHub(zerolog.Nop()), storage.NewMemory())
	ctx := context.Background()

	quit, err := shell.exec(ctx, "   ")
	assert.False(t, quit)
	assert.NoError(t, err)

	_, err = shell.exec(ctx, "frobnicate")
	assert.Error(t, err)

	_, err = shell.exec(ctx, "activity hover")
	assert.Error(t, err)
	_, err = shell.exec(ctx, "activity scroll")
	assert.NoError(t, err)

	_, err = shell.exec(ctx, "token")
	assert.Error(t, err)

	_, err = shell.exec(ctx, "token tok-1")
	require.NoError(t, err)
	_, err = shell.exec(ctx, "users")
	assert.EqualError(t, err, "only administrators can list users")

	_, err = shell.exec(ctx, "ticket abc")
	assert.Error(t, err)

	out.Reset()
	_, err = shell.exec(ctx, "status")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Tab state: active")
	assert.Contains(t, out.String(), "Inactivity timer: armed")

	_, err = shell.exec(ctx, "logout")
	require.NoError(t, err)
	assert.False(t, shell.coord.IsAuthenticated())
	_, err = shell.exec(ctx, "logout")
	assert.NoError(t, err)

	quit, err = shell.exec(ctx, "quit")
	assert.True(t, quit)
	assert.NoError(t, err)
}

func TestTabShellRun(t *testing.T) {
	srv := newBackend(t)
	shell, out := startShell(t, testConfig(srv.URL), broadcast.NewHub(zerolog.Nop()), storage.NewMemory())

	err := shell.run(context.Background(), strings.NewReader("help\nnope\nquit\nstatus\n"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "claim                     make this tab the active one")
	assert.Contains(t, out.String(), "logout                    log out and clear the stored login")
	assert.Contains(t, out.String(), `Error: unknown command "nope"`)
	assert.NotContains(t, out.String(), "Tab state:")
}

func TestTicketID(t *testing.T) {
	id, err := ticketID([]string{"#42"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = ticketID(nil)
	assert.Error(t, err)
	_, err = ticketID([]string{"0"})
	assert.Error(t, err)
}

func TestWatchSession(t *testing.T) {
	states := make(chan session.State, 5)
	states <- session.State{IsAuthenticated: true, IsActive: true}
	states <- session.State{IsAuthenticated: true, IsActive: false}
	states <- session.State{IsAuthenticated: true, IsActive: true}
	states <- session.State{IsAuthenticated: false, IsActive: true}
	states <- session.State{IsAuthenticated: false, IsActive: true, ChannelLost: true}
	close(states)

	out := &bytes.Buffer{}
	watchSession(out, states)

	assert.Equal(t, 1, strings.Count(out.String(), "session paused in another tab"))
	assert.Equal(t, 1, strings.Count(out.String(), "Session ended"))
	assert.Equal(t, 1, strings.Count(out.String(), "Lost contact with other tabs"))
}

func TestTabClose(t *testing.T) {
	srv := newBackend(t)
	store, err := storage.NewFileStore(t.TempDir(), "ticketdesk")
	require.NoError(t, err)

	tb, err := openTab(testConfig(srv.URL), store, broadcast.NewHub(zerolog.Nop()).Open("ticketdesk"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, tb.coord.Start(context.Background()))

	require.NoError(t, tb.Close())
	_, _, err = store.Get("token")
	assert.ErrorIs(t, err, storage.ErrClosed)
}
