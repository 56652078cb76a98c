// Package harness provides conformance testing for the request assembler.
//
// A scenario is a YAML file holding a visualization, the attributes map a
// caller would supply, optional caller definitions and assertions on the
// assembled request. The harness runs the real assembler, records the
// result in an in-memory definition registry and evaluates the assertions.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	visualization:
//	  buckets:
//	    - localIdentifier: measures
//	      items:
//	        - measure: { localIdentifier: m1, objectUri: ..., aggregation: sum }
//	attributes:
//	  <display form uri>: { uri: <attribute uri>, type: GDC.time.year }
//	definitions:
//	  - { identifier: ratio, expression: "SELECT {a} / {b}" }
//	known: [b]
//	options: { hash: md5, remove_date_items: false }
//	assertions:
//	  - type: columns
//	    columns: [...]
//	  - type: error
//	    code: MISSING_ATTRIBUTE
//
// # Assertion Types
//
//   - columns: the request columns, exactly and in order
//   - definition: a definition exists, optionally with expression, title, format
//   - definition_order: definitions appear in the given relative order
//   - mapping: an element maps to a measure index (and PoP flag)
//   - error: assembly failed with the given code
//   - registry: the registry linked the given number of definitions
//
// # Golden Files
//
// Every scenario has a snapshot: the canonical JSON of the request, or the
// error code. Snapshots live in a golden/ directory next to the scenarios
// and are byte-compared, so any change to an expression, title, format or
// identifier shows up as a diff.
package harness
