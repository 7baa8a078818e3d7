// Package session owns the device's single identity record: the [Session]
// model, a compact versioned binary encoding, encrypted at-rest vaults,
// and the pure validator that applies the per-role grace-period rules.
//
// # Binary encoding
//
// Records are sealed with an AEAD before touching durable storage. The
// encoder is append-only: new schema versions add fields but never
// reinterpret old ones, and unknown versions decode as "no session".
//
// # Architecture boundaries
//
// This package does NOT talk to the identity provider, evaluate
// permissions, or consult connectivity — those responsibilities belong to
// the Engine. [Validate] takes the current instant and connectivity as
// plain arguments so it stays deterministic and testable.
package session
