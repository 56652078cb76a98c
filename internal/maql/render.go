// Package maql renders exprir trees to the textual query language the
// execution backend accepts.
package maql

import (
	"fmt"
	"strings"

	"github.com/roach88/metricc/internal/exprir"
)

// Render converts an expression tree to text.
//
// Rendering is deterministic: the same tree always yields the same bytes.
// Sub-selects (a Select used as a Select body or as a Ratio operand) are
// wrapped in parentheses; nothing else is.
func Render(e exprir.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("cannot render nil expression")
	}
	var b strings.Builder
	if err := renderExpr(&b, e); err != nil {
		return "", err
	}
	return b.String(), nil
}

func renderExpr(b *strings.Builder, e exprir.Expr) error {
	switch expr := e.(type) {
	case exprir.ObjectRef:
		renderRef(b, expr.URI)
	case exprir.Aggregate:
		b.WriteString(strings.ToUpper(expr.Func))
		b.WriteByte('(')
		renderRef(b, expr.Object.URI)
		b.WriteByte(')')
	case exprir.Ratio:
		if err := renderSubSelect(b, expr.Numerator); err != nil {
			return fmt.Errorf("numerator: %w", err)
		}
		b.WriteString(" / ")
		if err := renderSubSelect(b, expr.Denominator); err != nil {
			return fmt.Errorf("denominator: %w", err)
		}
	case exprir.Select:
		return renderSelect(b, expr)
	case *exprir.Select:
		if expr == nil {
			return fmt.Errorf("cannot render nil select")
		}
		return renderSelect(b, *expr)
	default:
		return fmt.Errorf("unsupported expression type: %T", e)
	}
	return nil
}

// renderSelect writes SELECT <body> [BY ALL] [WHERE] [FOR PREVIOUS].
func renderSelect(b *strings.Builder, s exprir.Select) error {
	if s.Body == nil {
		return fmt.Errorf("select without body")
	}
	b.WriteString("SELECT ")
	if exprir.IsSelect(s.Body) {
		if err := renderSubSelect(b, s.Body); err != nil {
			return err
		}
	} else if err := renderExpr(b, s.Body); err != nil {
		return err
	}

	if s.ByAll != "" {
		b.WriteString(" BY ALL ")
		renderRef(b, s.ByAll)
	}
	if s.Where != nil {
		b.WriteString(" WHERE ")
		if err := renderCondition(b, s.Where); err != nil {
			return err
		}
	}
	if s.ForPrevious != "" {
		b.WriteString(" FOR PREVIOUS (")
		renderRef(b, s.ForPrevious)
		b.WriteByte(')')
	}
	return nil
}

func renderSubSelect(b *strings.Builder, e exprir.Expr) error {
	b.WriteByte('(')
	if err := renderExpr(b, e); err != nil {
		return err
	}
	b.WriteByte(')')
	return nil
}

func renderCondition(b *strings.Builder, c exprir.Condition) error {
	switch cond := c.(type) {
	case exprir.In:
		if len(cond.Elements) == 0 {
			return fmt.Errorf("IN condition on %q selects no elements", cond.Attribute)
		}
		renderRef(b, cond.Attribute)
		if cond.Negated {
			b.WriteString(" NOT")
		}
		b.WriteString(" IN (")
		for i, el := range cond.Elements {
			if i > 0 {
				b.WriteByte(',')
			}
			renderRef(b, el)
		}
		b.WriteByte(')')
	case exprir.And:
		if len(cond.Conditions) == 0 {
			return fmt.Errorf("empty AND condition")
		}
		for i, sub := range cond.Conditions {
			if i > 0 {
				b.WriteString(" AND ")
			}
			if err := renderCondition(b, sub); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported condition type: %T", c)
	}
	return nil
}

func renderRef(b *strings.Builder, uri string) {
	b.WriteByte('[')
	b.WriteString(uri)
	b.WriteByte(']')
}
