package cli

import (
	"fmt"

	"github.com/harun/ticketdesk/internal/config"
	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Run interactive configuration wizard",
	Long: `Run an interactive configuration wizard to set up ticketdesk.
The wizard asks for the backend URL, the credential storage driver, the
broadcast relay and the inactivity timeout.`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	wizard := config.NewWizardWithIO(cmd.InOrStdin(), cmd.OutOrStdout())

	cfg, err := wizard.Run()
	if err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errs[0])
	}

	loader := config.NewLoader(cfgFile)
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nConfiguration saved to: %s\n", loader.GetConfigPath())
	if cfg.Broadcast.Mode == config.BroadcastRelay {
		fmt.Fprintln(out, "\nStart the relay with: ticketdesk relay")
	}
	fmt.Fprintln(out, "Open a tab with: ticketdesk tab")

	return nil
}
