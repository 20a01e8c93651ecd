package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayCommand(t *testing.T) {
	output, err := executeRoot(t, nil, "relay", "--help")
	require.NoError(t, err)
	assert.Contains(t, output, "leadership-claim")
}

func TestRelaySecret(t *testing.T) {
	assert.Equal(t, "relay-secret", relaySecret("relay-secret", "tab-secret"))
	assert.Equal(t, "tab-secret", relaySecret("", "tab-secret"))
	assert.Empty(t, relaySecret("", ""))
}
