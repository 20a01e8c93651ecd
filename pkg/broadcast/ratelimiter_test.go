package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameLimiter(t *testing.T) {
	t.Run("allows frames under limit", func(t *testing.T) {
		limiter := newFrameLimiter(3)
		for i := 0; i < 3; i++ {
			assert.True(t, limiter.allow())
		}
		assert.False(t, limiter.allow())
	})

	t.Run("allows frames after window expires", func(t *testing.T) {
		now := time.Unix(1000, 0)
		limiter := newFrameLimiter(2)
		limiter.now = func() time.Time { return now }

		assert.True(t, limiter.allow())
		assert.True(t, limiter.allow())
		assert.False(t, limiter.allow())

		now = now.Add(61 * time.Second)
		assert.True(t, limiter.allow())
	})

	t.Run("defaults non-positive limits", func(t *testing.T) {
		limiter := newFrameLimiter(0)
		assert.Equal(t, DefaultFramesPerMinute, limiter.perMinute)
	})
}
