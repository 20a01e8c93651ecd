package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/ticketdesk/internal/observability"
	"github.com/harun/ticketdesk/pkg/broadcast"
	"github.com/spf13/cobra"
)

const relayShutdownTimeout = 10 * time.Second

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Serve the broadcast relay",
	Long: `Serve the websocket relay that carries tab-announce and leadership-claim
messages between ticketdesk tabs running in separate processes.
Tabs authenticate with the shared origin secret. If the relay stops,
open tabs report the lost connection and stop coordinating until they are
restarted.`,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)
}

// relaySecret prefers the relay's own secret and falls back to the one
// the tabs use
func relaySecret(shared, broadcastSecret string) string {
	if shared != "" {
		return shared
	}
	return broadcastSecret
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer log.Close()

	if err := observability.InitAuditLogger(cfg.Relay.AuditLog); err != nil {
		return fmt.Errorf("failed to initialize audit log: %w", err)
	}
	defer observability.GetAuditLogger().Close()

	relay, err := broadcast.NewRelay(broadcast.RelayConfig{
		Addr:            cfg.RelayAddr(),
		Secret:          relaySecret(cfg.Relay.SharedSecret, cfg.Broadcast.Secret),
		FramesPerMinute: cfg.Relay.FramesPerMinute,
		Logger:          log.GetZerolog(),
	})
	if err != nil {
		return err
	}
	if err := relay.Start(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Relay listening on %s\n", relay.Addr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), relayShutdownTimeout)
	defer cancel()
	if err := relay.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop relay: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Relay stopped")
	return nil
}
