package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harun/ticketdesk/pkg/querycache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL: srv.URL,
		Tokens:  TokenFunc(func() string { return token }),
		Logger:  zerolog.Nop(),
	})
	return client, srv
}

func TestClient_GetProfileUnwrapsEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		_, _ = w.Write([]byte(`{"data":{"id":7,"name":"Ana","email":"ana@example.com","role":"admin"}}`))
	}, "tok-1")

	user, err := client.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, RoleAdmin, user.Role)
	assert.True(t, user.CanManageUsers())
}

func TestClient_BareBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"title":"Printer","status":"open","priority":"high"}]`))
	}, "tok")

	tickets, err := client.ListTickets(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, StatusOpen, tickets[0].Status)
	assert.Equal(t, PriorityHigh, tickets[0].Priority)
}

func TestClient_NoTokenSendsNoAuthorization(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"Bearer"}`))
	}, "")

	resp, err := client.Login(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.AccessToken)
	assert.Nil(t, resp.User)
}

func TestClient_UnauthorizedInvokesHook(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
	}, "expired")

	var hookCalls int32
	client.SetUnauthorizedHandler(func() { atomic.AddInt32(&hookCalls, 1) })

	_, err := client.GetProfile(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "Unauthenticated.")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hookCalls))
}

func TestClient_NotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, "tok")

	_, err := client.GetTicket(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsUnauthorized(err))
}

func TestClient_LoginWithoutTokenFails(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
	}, "")

	_, err := client.Login(context.Background(), "a@b.c", "x")
	assert.Error(t, err)
}

func TestClient_AssignTicketBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tickets/3/assign", r.URL.Path)

		var body map[string]int64
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(12), body["assigned_to"])

		_, _ = w.Write([]byte(`{"data":{"id":3,"assigned_to":12}}`))
	}, "tok")

	ticket, err := client.AssignTicket(context.Background(), 3, 12)
	require.NoError(t, err)
	require.NotNil(t, ticket.AssignedTo)
	assert.Equal(t, int64(12), *ticket.AssignedTo)
}

func TestClient_ValidationBeforeRequest(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}, "tok")
	ctx := context.Background()

	_, err := client.UpdateTicket(ctx, 1, UpdateTicketRequest{Status: "bogus"})
	assert.Error(t, err)
	_, err = client.CreateTicket(ctx, CreateTicketRequest{})
	assert.Error(t, err)
	_, err = client.CreateUser(ctx, CreateUserRequest{Password: "a", PasswordConfirmation: "b"})
	assert.Error(t, err)
	_, err = client.AddComment(ctx, 1, "")
	assert.Error(t, err)

	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestClient_ListSupportUsers(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":1,"role":"admin"},{"id":2,"role":"support"},{"id":3,"role":"user"}]}`))
	}, "tok")

	users, err := client.ListSupportUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(2), users[0].ID)
}

func TestClient_DeleteUserIgnoresEmptyBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}, "tok")

	assert.NoError(t, client.DeleteUser(context.Background(), 4))
}

func TestCachedClient_ReadsOnceAndInvalidatesOnWrite(t *testing.T) {
	var listCalls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			atomic.AddInt32(&listCalls, 1)
			_, _ = w.Write([]byte(`{"data":[{"id":1,"title":"A"}]}`))
		case http.MethodPost:
			_, _ = w.Write([]byte(`{"data":{"id":2,"title":"B"}}`))
		}
	}, "tok")

	cached := NewCachedClient(client, querycache.New(querycache.Config{TTL: time.Minute}))
	ctx := context.Background()

	_, err := cached.ListTickets(ctx)
	require.NoError(t, err)
	_, err = cached.ListTickets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&listCalls))

	_, err = cached.CreateTicket(ctx, CreateTicketRequest{Title: "B", Priority: PriorityLow})
	require.NoError(t, err)

	_, err = cached.ListTickets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&listCalls))
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/tickets/:id/comments", routeLabel("/tickets/42/comments"))
	assert.Equal(t, "/profile", routeLabel("/profile"))
}
