// Package permission provides the static role table consulted by the
// engine's authorization checks.
//
// # Rule model
//
// A rule grants a set of actions (create/read/update/delete) on one
// resource, optionally constrained to resources the caller owns. ROOT
// carries the universal wildcard. Rules are registered with [Table.Grant]
// during initialization and the table is frozen before use.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. Ownership
// comparison and remote-authority consultation happen in the Engine,
// layered on top of [Table.Allows].
//
// # What this package must NOT do
//
//   - Access storage or the network.
//   - Mutate the table after Freeze.
package permission
