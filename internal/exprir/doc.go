// Package exprir provides a structured intermediate representation for
// generated metric expressions.
//
// The compiler builds expressions as exprir trees and only flattens them to
// text at the end (package maql). Parenthesization is therefore a property
// of the tree shape rather than of string concatenation:
//
//	[measure] → [exprir tree] → [maql text]
//
// NODES:
//
//	ObjectRef    [<uri>]
//	Aggregate    <FUNC>([<uri>])
//	Ratio        (<select>) / (<select>)
//	Select       SELECT <body> [BY ALL [<attr>]] [WHERE <cond>] [FOR PREVIOUS ([<attr>])]
//	In           [<attr>] [NOT ]IN ([<e1>],[<e2>])
//	And          <cond> AND <cond>
//
// A Select used as the body of another Select, or as a Ratio operand, is a
// sub-select and always renders in parentheses.
//
// SEALED INTERFACES:
//
// Expr and Condition use the marker method pattern, so only types in this
// package implement them and renderers can switch exhaustively:
//
//	switch e := expr.(type) {
//	case ObjectRef:
//	case Aggregate:
//	case Ratio:
//	case Select:
//	}
package exprir
