package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harun/ticketdesk/pkg/api"
	"github.com/harun/ticketdesk/pkg/broadcast"
	"github.com/harun/ticketdesk/pkg/credentials"
	"github.com/harun/ticketdesk/pkg/storage"
	"github.com/rs/zerolog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCommand(t *testing.T) {
	t.Run("command exists", func(t *testing.T) {
		cmd := GetRootCmd()
		statusCmd := cmd.Commands()

		found := false
		for _, c := range statusCmd {
			if c.Name() == "status" {
				found = true
				break
			}
		}
		assert.True(t, found, "status command should exist")
	})

	t.Run("help text", func(t *testing.T) {
		helpText, err := executeRoot(t, nil, "status", "--help")
		require.NoError(t, err)

		assert.Contains(t, helpText, "broadcast relay is reachable")
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"seconds only", 45 * time.Second, "45s"},
		{"minutes and seconds", 2*time.Minute + 30*time.Second, "2m30s"},
		{"hours minutes seconds", 3*time.Hour + 15*time.Minute + 20*time.Second, "3h15m20s"},
		{"zero", 0, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatDuration(tt.duration)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHealthURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ws://127.0.0.1:8787", "http://127.0.0.1:8787/healthz", false},
		{"wss://relay.example.com/", "https://relay.example.com/healthz", false},
		{"http://localhost:9000/base", "http://localhost:9000/base/healthz", false},
		{"ftp://relay", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := healthURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetchRelayHealth(t *testing.T) {
	relay, err := broadcast.NewRelay(broadcast.RelayConfig{
		Secret: "0123456789abcdef0123",
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(relay.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	health, err := fetchRelayHealth(context.Background(), srv.Client(), wsURL)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Zero(t, health.Members)
}

func TestFetchRelayHealthBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fetchRelayHealth(context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestWriteSessionStatus(t *testing.T) {
	store := storage.NewMemory()
	creds := credentials.New(store, zerolog.Nop())

	out := &bytes.Buffer{}
	writeSessionStatus(out, creds)
	assert.Equal(t, "Session: logged out\n", out.String())

	creds.Save("tok", nil)
	out.Reset()
	writeSessionStatus(out, creds)
	assert.Contains(t, out.String(), "profile not cached")

	creds.Save("tok", &api.User{ID: 1, Name: "Ana", Email: "ana@example.com", Role: api.RoleSupport})
	out.Reset()
	writeSessionStatus(out, creds)
	assert.Equal(t, "Session: logged in as ana@example.com (support)\n", out.String())
}
