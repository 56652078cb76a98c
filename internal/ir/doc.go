// Package ir provides the input and output model of the metric compiler.
//
// The package holds the visualization description (buckets, measures,
// attributes, sort items, totals), the shaped Measure union the compiler
// dispatches on, the attributes map supplied by the metadata service, and
// generated metric definitions. All other internal packages import ir; ir
// imports nothing internal.
//
// Key constraints:
//   - Measure is a sealed union; only types in this package implement it
//   - Empty filters are semantically absent and never reach an expression
//   - Aggregation names are lower-case once shaped
//   - Canonical JSON (MarshalCanonical) is the only serialization used for
//     digests and golden snapshots
package ir
