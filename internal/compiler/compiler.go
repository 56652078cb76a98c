package compiler

import (
	"errors"
	"io"
	"log/slog"

	"github.com/roach88/metricc/internal/ir"
)

// Compiler turns measure items into columns and generated definitions.
// A Compiler holds no per-compilation state and is safe for concurrent use.
type Compiler struct {
	hasher ir.Hasher
	logger *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithHasher sets the content hash used in identifiers. Defaults to MD5.
func WithHasher(h ir.Hasher) Option {
	return func(c *Compiler) {
		if h != nil {
			c.hasher = h
		}
	}
}

// WithLogger sets the logger for per-measure decisions. Defaults to a
// logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		hasher: ir.MD5Hasher{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compiled is the outcome of compiling one measure.
type Compiled struct {
	LocalIdentifier string
	Strategy        Strategy

	// Element is the column: the generated identifier, or the object URI
	// of a pure measure.
	Element string

	// Definition is nil for pure measures.
	Definition *ir.MetricDefinition

	IsPoP bool
}

// CompileMeasure classifies, synthesizes and names one measure item.
// Errors carry the measure's local identifier.
func (c *Compiler) CompileMeasure(vis *ir.Visualization, item *ir.MeasureItem, ctx Context) (*Compiled, error) {
	if item == nil {
		return nil, newInvariantError("nil measure item")
	}
	compiled, err := c.compileMeasure(vis, item, ctx)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) && ce.Measure == "" {
			ce.Measure = item.LocalIdentifier
		}
		c.logger.Debug("measure failed", "measure", item.LocalIdentifier, "code", CodeOf(err), "error", err)
		return nil, err
	}
	c.logger.Debug("measure compiled",
		"measure", item.LocalIdentifier,
		"strategy", compiled.Strategy,
		"element", compiled.Element)
	return compiled, nil
}

func (c *Compiler) compileMeasure(vis *ir.Visualization, item *ir.MeasureItem, ctx Context) (*Compiled, error) {
	m, err := ir.Shape(vis, item)
	if err != nil {
		return nil, &CompileError{Code: ErrCodeInvalidMeasure, Message: err.Error()}
	}

	strategy, err := Classify(m)
	if err != nil {
		return nil, err
	}
	compiled := &Compiled{
		LocalIdentifier: item.LocalIdentifier,
		Strategy:        strategy,
		IsPoP:           strategy.IsPoP(),
	}
	if !strategy.Generates() {
		compiled.Element = item.ObjectURI
		return compiled, nil
	}

	syn, err := Synthesize(m, item.Title, item.Format, ctx)
	if err != nil {
		return nil, err
	}
	id, err := IdentifierFor(m, syn, c.hasher)
	if err != nil {
		return nil, err
	}
	compiled.Element = id
	compiled.Definition = &ir.MetricDefinition{
		Identifier: id,
		Expression: syn.Expression,
		Title:      syn.Title,
		Format:     syn.Format,
	}
	return compiled, nil
}
