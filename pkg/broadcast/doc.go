// Package broadcast is the same-origin publish/subscribe bus tabs use to
// agree on which one is active.
//
// Invariants:
// - Every message posted on a channel is delivered to every open member of
//   that channel, the sender included.
// - Delivery is best-effort: a member that is not keeping up loses
//   messages rather than stalling the sender.
// - Messages are not persisted and carry no version or acknowledgement.
//
// Two transports implement Channel: Hub connects members inside one
// process, and Relay/Dial connect processes through a websocket relay that
// authenticates members with a shared origin secret.
//
// Usage:
//
//	hub := broadcast.NewHub(zerolog.Nop())
//	ch := hub.Open("ticketdesk")
//	_ = ch.Post(ctx, broadcast.Message{Type: broadcast.TypeTabAnnounce, TabID: "a"})
//	msg := <-ch.Messages()
//	_ = msg
package broadcast
