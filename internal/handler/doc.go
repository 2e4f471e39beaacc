// Package handler implements the HTTP API for the network inventory.
//
// InventoryHandler maps REST routes onto service.InventoryService. Request
// bodies are decoded strictly and checked with the validate tags declared on
// the service request types before any state changes.
//
// # Response Format
//
// Devices are returned in their persisted record form, the same shape the
// JSON export writes. Errors are returned as {error, details} with:
//
//   - 400 for validation failures, negative traffic and non-positive durations
//   - 404 for unknown devices and formats
//   - 409 for duplicate names, addresses and connections, full ports and
//     self-connections
//   - 422 for operations that do not apply to the device type
//
// # Middleware
//
// NewAPI wraps the mux with Recover, CORS, Logger and, when a registry is
// given, Metrics. Metrics label requests by route pattern.
//
// # Server-Sent Events
//
// GET /events streams every inventory event published on the service bus.
package handler
