// Package storage provides durable per-origin key/value storage shared by
// every tab of the client on one machine.
//
// Invariants:
// - Entries outlive the process that wrote them.
// - Each origin is an isolated namespace.
// - There are no transactions across keys; the last writer wins.
//
// Usage:
//
//	store, _ := storage.Open(storage.Options{Driver: storage.DriverFile, Path: "/tmp/ticketdesk", Origin: "app"})
//	_ = store.Set("token", "abc")
//	token, ok, _ := store.Get("token")
//	_, _ = token, ok
package storage
