package broadcast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("accepts both message types", func(t *testing.T) {
		msg, err := Validate([]byte(`{"type":"tab-announce","tabId":"a1"}`))
		require.NoError(t, err)
		assert.Equal(t, Message{Type: TypeTabAnnounce, TabID: "a1"}, msg)

		msg, err = Validate([]byte(`{"type":"leadership-claim","tabId":"b2"}`))
		require.NoError(t, err)
		assert.Equal(t, TypeLeadershipClaim, msg.Type)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := Validate([]byte(`{"type":"logout","tabId":"a1"}`))
		assert.Error(t, err)
	})

	t.Run("rejects missing tab id", func(t *testing.T) {
		_, err := Validate([]byte(`{"type":"tab-announce"}`))
		assert.Error(t, err)

		_, err = Validate([]byte(`{"type":"tab-announce","tabId":""}`))
		assert.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := Validate([]byte(`{"type":`))
		assert.Error(t, err)
	})

	t.Run("ignores extra fields", func(t *testing.T) {
		msg, err := Validate([]byte(`{"type":"tab-announce","tabId":"a1","extra":true}`))
		require.NoError(t, err)
		assert.Equal(t, "a1", msg.TabID)
	})
}

func TestMessageCheck(t *testing.T) {
	assert.NoError(t, Message{Type: TypeLeadershipClaim, TabID: "x"}.Check())
	assert.Error(t, Message{Type: "other", TabID: "x"}.Check())
	assert.Error(t, Message{Type: TypeTabAnnounce}.Check())
	assert.Error(t, Message{Type: TypeTabAnnounce, TabID: strings.Repeat("x", 129)}.Check())
}
