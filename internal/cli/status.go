package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harun/ticketdesk/internal/config"
	"github.com/harun/ticketdesk/pkg/broadcast"
	"github.com/harun/ticketdesk/pkg/credentials"
	"github.com/harun/ticketdesk/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const healthTimeout = 5 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show relay and session status",
	Long:  `Show whether the broadcast relay is reachable and which user, if any, is logged in.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if cfg.Broadcast.Mode == config.BroadcastRelay {
		ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
		defer cancel()
		health, err := fetchRelayHealth(ctx, http.DefaultClient, cfg.Broadcast.RelayURL)
		if err != nil {
			fmt.Fprintf(out, "Relay: unreachable (%v)\n", err)
		} else {
			fmt.Fprintf(out, "Relay: %s\n", health.Status)
			fmt.Fprintf(out, "Members: %d\n", health.Members)
			fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Duration(health.UptimeSeconds)*time.Second))
		}
	} else {
		fmt.Fprintln(out, "Relay: disabled (local broadcast)")
	}

	store, err := storage.Open(storage.Options{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
		Origin: cfg.Storage.Origin,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	writeSessionStatus(out, credentials.New(store, zerolog.Nop()))
	return nil
}

// writeSessionStatus prints the persisted session without contacting the backend
func writeSessionStatus(out io.Writer, creds *credentials.Store) {
	token, user := creds.Load()
	switch {
	case token == "":
		fmt.Fprintln(out, "Session: logged out")
	case user == nil:
		fmt.Fprintln(out, "Session: logged in (profile not cached)")
	default:
		fmt.Fprintf(out, "Session: logged in as %s (%s)\n", user.Email, user.Role)
	}
}

// healthURL turns a relay base address into its http health endpoint
func healthURL(relayURL string) (string, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return "", fmt.Errorf("invalid relay url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported relay url scheme: %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/healthz"
	u.RawQuery = ""
	return u.String(), nil
}

func fetchRelayHealth(ctx context.Context, client *http.Client, relayURL string) (*broadcast.Health, error) {
	endpoint, err := healthURL(relayURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var health broadcast.Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("invalid health response: %w", err)
	}
	return &health, nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
