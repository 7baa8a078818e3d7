// Package middleware exposes HTTP guards for a device's local admin
// surface, built on the engine's session and permission checks.
//
// # Guards
//
//   - [RequireSession] — the device must hold a valid session.
//   - [RequirePermission] — the session must be allowed a specific
//     resource/action pair.
//
// The device holds one session at a time, so guards carry no token
// plumbing; they validate whatever the vault holds for this device.
//
// # What this package must NOT do
//
//   - Touch the vault or the store directly (the Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from the Engine.
package middleware
