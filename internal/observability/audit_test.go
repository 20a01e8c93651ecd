package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_WritesSessionEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(path))

	RecordSessionAudit("tab-1", "auto_logout", "success", map[string]interface{}{"timeout": "15m0s"})
	require.NoError(t, GetAuditLogger().Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &event))
	assert.Equal(t, "session", event["type"])
	assert.Equal(t, "tab-1", event["tab_id"])
	assert.Equal(t, "auto_logout", event["action"])
}

func TestMetricsHandler(t *testing.T) {
	RecordSessionEvent("login")
	RecordLeadershipChange(true)
	assert.NotNil(t, MetricsHandler())
}
