package broadcast

import (
	"sync"
	"time"
)

// DefaultFramesPerMinute bounds how fast one member may post
const DefaultFramesPerMinute = 120

// frameLimiter implements sliding window rate limiting per member
type frameLimiter struct {
	mu        sync.Mutex
	perMinute int
	frames    []time.Time
	now       func() time.Time
}

func newFrameLimiter(perMinute int) *frameLimiter {
	if perMinute <= 0 {
		perMinute = DefaultFramesPerMinute
	}
	return &frameLimiter{
		perMinute: perMinute,
		now:       time.Now,
	}
}

// allow records a frame and reports whether it fits in the window
func (l *frameLimiter) allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-time.Minute)
	valid := l.frames[:0]
	for _, t := range l.frames {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	l.frames = valid

	if len(l.frames) >= l.perMinute {
		return false
	}
	l.frames = append(l.frames, now)
	return true
}
