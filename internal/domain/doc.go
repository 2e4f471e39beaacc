// Package domain defines the device model for the netinventory tracker.
//
// # Core Types
//
// Device is the capability set shared by every managed entity: a trimmed,
// immutable name, a fixed DeviceType, an ACTIVE/INACTIVE Status and free-form
// Metadata (model, serial interface flag, observations).
//
// The four variants are Router, Switch, AccessPoint and Endpoint. Each is
// built by a constructor that validates every field up front and returns
// either a complete device or a *ValidationError, never a partial value.
//
// # Capabilities
//
// Callers that need variant-specific behavior check for a capability
// interface instead of probing fields:
//
// - Connector: Router, Switch and AccessPoint keep an ordered peer list.
// - Addressed: Router, Switch and Endpoint carry a MAC and optional IPv4.
// - DualStack: Router and Endpoint may also carry IPv6.
//
// # Suspension
//
// Endpoint suspension is lazy. SuspendFor stores an expiry and forces
// INACTIVE; RefreshStatus restores ACTIVE once the expiry has passed. Nothing
// runs in the background, so status-dependent reads refresh first. The *At
// variants take the current time explicitly for deterministic callers.
//
// # Design Principles
//
// - No I/O, no logging, no global state
// - Every failure is a typed error matched with errors.Is
// - Peer names are not resolved; connecting to an unknown name is allowed
package domain
