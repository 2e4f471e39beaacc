// Package service implements the business layer of netinventory.
//
// InventoryService sits between the outer surfaces (HTTP handlers, the CLI,
// the file watcher) and the in-memory inventory. It builds devices from
// requests, runs the inventory operations, persists through a storage.Store
// and publishes an Event for every change.
//
// # Persistence
//
// Mutations are saved immediately when autosave is on. Save and Reload are
// also exposed so operators can persist or discard in-memory changes
// explicitly. Reload is a no-op when the stored inventory matches memory,
// which keeps the file watcher from echoing the service's own writes.
//
// # Policy
//
// ApplyPolicy runs the traffic cap on demand. PolicyEnforcer runs it on a
// fixed interval; it never lifts suspensions, which expire lazily.
//
// # Event System
//
// Events are delivered through EventBus to the SSE hub. Publishing never
// blocks; slow subscribers miss events.
package service
