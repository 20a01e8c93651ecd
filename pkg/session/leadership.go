package session

import (
	"context"

	"github.com/harun/ticketdesk/pkg/broadcast"
)

// listen applies leadership messages until the channel closes
func (c *Coordinator) listen() {
	defer close(c.loopDone)

	for msg := range c.channel.Messages() {
		c.handleMessage(msg)
	}

	c.mu.Lock()
	lost := !c.closed
	if lost {
		c.channelLost = true
	}
	c.mu.Unlock()

	if !lost {
		c.logger.Debug().Msg("Broadcast channel closed, leadership listener stopped")
		return
	}
	// Sibling tabs can no longer pause this one, nor be paused by it
	c.logger.Warn().Msg("Broadcast channel lost, tab no longer coordinates with siblings")
	c.notify()
}

func (c *Coordinator) handleMessage(msg broadcast.Message) {
	if msg.TabID == c.tabID {
		return
	}

	switch msg.Type {
	case broadcast.TypeTabAnnounce:
		c.mu.Lock()
		reassert := c.active && !c.closed
		c.mu.Unlock()
		if reassert {
			c.logger.Debug().Str("from", msg.TabID).Msg("New tab announced, reasserting leadership")
			c.post(context.Background(), broadcast.TypeLeadershipClaim)
		}

	case broadcast.TypeLeadershipClaim:
		c.mu.Lock()
		wasActive := c.active
		c.setActiveLocked(false)
		c.mu.Unlock()
		if wasActive {
			c.logger.Info().Str("from", msg.TabID).Msg("Session claimed by another tab, pausing")
			c.notify()
		}

	default:
		c.logger.Debug().Str("type", string(msg.Type)).Msg("Ignoring unknown broadcast message")
	}
}
