// Package querycache holds server data fetched by the client so repeated
// views do not re-request it.
//
// Invariants:
// - Concurrent fetches of the same key share one in-flight request.
// - Clear drops every entry, and a fetch that started before Clear never
//   writes its result back into the cache.
// - Invalidate drops entries by key prefix; writes call it for the
//   resources they touch.
//
// Usage:
//
//	cache := querycache.New(querycache.Config{TTL: time.Minute})
//	v, _ := cache.Fetch(ctx, "tickets", func(ctx context.Context) (interface{}, error) {
//		return client.ListTickets(ctx)
//	})
//	_ = v
package querycache
