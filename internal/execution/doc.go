// Package execution assembles execution requests from visualizations.
//
// Assemble is the entry point: it compiles every measure of a
// visualization, resolves its categories through the attributes map, and
// produces the columns, ordered metric definitions, measure mappings, sort
// and totals an execution backend consumes. ApplyMappings runs on the way
// back, attaching measure indexes to result headers.
//
// Assembly is pure: the same visualization, attributes map, definitions and
// options always produce a byte-identical canonical request.
package execution
