// Package store provides a SQLite-backed registry of generated metric
// definitions and the compilations that produced them.
//
// The registry holds:
//   - Definitions: generated and caller-supplied metrics, keyed by identifier
//   - Compilations: one record per assembled request, with its canonical form
//   - Compilation definitions: which definitions each request carried, in order
//
// # Invariants
//
// Idempotent writes
//   - Identifiers are content-addressed, so a definition is written once
//     and later writes of the same identifier are ignored
//     (ON CONFLICT DO NOTHING)
//
// Logical time
//   - Compilations are ordered by seq INTEGER (logical clock), never by
//     timestamps
//
// Deterministic reads
//   - Every query carries an ORDER BY ending in a binary-collated key
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
