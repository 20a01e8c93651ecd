package session

import (
	"github.com/harun/ticketdesk/internal/observability"
)

// ActivityKind names a user input event
type ActivityKind string

// Qualifying activity kinds. Anything else leaves the timer untouched.
const (
	ActivityPointerDown ActivityKind = "pointer-down"
	ActivityKeyDown     ActivityKind = "key-down"
	ActivityScroll      ActivityKind = "scroll"
	ActivityTouchStart  ActivityKind = "touch-start"
)

// Qualifies reports whether k resets the inactivity timer
func (k ActivityKind) Qualifies() bool {
	switch k {
	case ActivityPointerDown, ActivityKeyDown, ActivityScroll, ActivityTouchStart:
		return true
	}
	return false
}

// RecordActivity restarts the inactivity countdown. It is a no-op unless
// the timer is armed and kind qualifies.
func (c *Coordinator) RecordActivity(kind ActivityKind) {
	if !kind.Qualifies() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return
	}
	c.timer.Stop()
	c.scheduleLocked()
}

// syncTimerLocked arms or disarms the timer to match "token present and
// tab active"
func (c *Coordinator) syncTimerLocked() {
	armed := c.token != "" && c.active && !c.closed
	switch {
	case armed && c.timer == nil:
		c.scheduleLocked()
		observability.SetInactivityArmed(true)
		c.logger.Debug().Dur("timeout", c.timeout).Msg("Inactivity timer armed")
	case !armed && c.timer != nil:
		c.disarmLocked()
	}
}

func (c *Coordinator) disarmLocked() {
	if c.timer == nil {
		return
	}
	c.timer.Stop()
	c.timer = nil
	c.timerSeq++
	observability.SetInactivityArmed(false)
	c.logger.Debug().Msg("Inactivity timer disarmed")
}

// scheduleLocked starts a fresh countdown. A callback from an earlier
// countdown sees a stale sequence number and returns.
func (c *Coordinator) scheduleLocked() {
	c.timerSeq++
	seq := c.timerSeq
	c.timer = c.clock.AfterFunc(c.timeout, func() {
		c.expire(seq)
	})
}

func (c *Coordinator) expire(seq uint64) {
	c.mu.Lock()
	if c.closed || c.timer == nil || c.timerSeq != seq {
		c.mu.Unlock()
		return
	}
	cleared := c.clearLocked()
	c.mu.Unlock()

	if cleared {
		c.logger.Info().Dur("timeout", c.timeout).Msg("Session expired after inactivity")
		observability.RecordAutoLogout()
		c.afterLogout("auto_logout")
	}
}

func (c *Coordinator) setActiveLocked(active bool) {
	if c.active != active {
		c.active = active
		observability.RecordLeadershipChange(active)
	}
	c.syncTimerLocked()
}
