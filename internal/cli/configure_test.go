package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/harun/ticketdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureCommand(t *testing.T) {
	t.Run("command exists", func(t *testing.T) {
		cmd := GetRootCmd()
		configureCmd := cmd.Commands()

		found := false
		for _, c := range configureCmd {
			if c.Name() == "configure" {
				found = true
				break
			}
		}
		assert.True(t, found, "configure command should exist")
	})

	t.Run("help text", func(t *testing.T) {
		helpText, err := executeRoot(t, nil, "configure", "--help")
		require.NoError(t, err)

		assert.Contains(t, helpText, "interactive configuration wizard")
	})
}

func TestConfigureSavesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticketdesk.json")

	// Accept every default except the relay, then pick a 5 minute timeout.
	input := strings.Join([]string{"", "sqlite", "n", "5", "warn"}, "\n") + "\n"

	output, err := executeRoot(t, strings.NewReader(input), "--config", path, "configure")
	require.NoError(t, err)
	assert.Contains(t, output, "Configuration saved to: "+path)
	assert.NotContains(t, output, "ticketdesk relay")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, config.BroadcastLocal, cfg.Broadcast.Mode)
	assert.Equal(t, 300, cfg.Session.InactivityTimeout)
	assert.Equal(t, "warn", cfg.Logging.Level)
}
