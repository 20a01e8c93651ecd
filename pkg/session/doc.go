// Package session coordinates the authenticated session of one tab.
//
// A Coordinator owns three things: the inactivity auto-logout timer, the
// leadership protocol that keeps a single tab active among every tab
// sharing the same stored credential, and the credential lifecycle.
//
// Invariants:
// - The inactivity timer is armed iff a token is present and the tab is active.
// - A remote leadership-claim always deactivates the tab; a tab only becomes
//   active again through ClaimSession or Login.
// - Logout and Login start a new session epoch; a profile response fetched
//   under an older epoch is discarded.
//
// Usage:
//
//	c, _ := session.New(session.Config{
//		Credentials: credentials.New(store, logger),
//		Channel:     hub.Open("ticketdesk"),
//		Profiles:    client,
//		Cache:       cache,
//	})
//	_ = c.Start(ctx)
//	defer c.Close()
package session
