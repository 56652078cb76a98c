package execution

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/metricc/internal/compiler"
	"github.com/roach88/metricc/internal/ir"
)

// Input is everything one assembly reads.
type Input struct {
	Visualization *ir.Visualization

	// Attributes must cover every display form of the visualization.
	// See MissingDisplayForms.
	Attributes ir.AttributesMap

	// Definitions are caller-supplied metrics sent with the request. They
	// may reference generated identifiers and each other.
	Definitions []ir.MetricDefinition
}

// Recorder receives compilation outcomes. observability.Metrics
// implements it.
type Recorder interface {
	MeasureCompiled(strategy string)
	CompileFailed(code string)
	CompileFinished(d time.Duration)
}

type options struct {
	hasher          ir.Hasher
	logger          *slog.Logger
	removeDateItems bool
	known           []string
	recorder        Recorder
}

// Option configures Assemble.
type Option func(*options)

// WithHasher sets the hash used in generated identifiers.
func WithHasher(h ir.Hasher) Option {
	return func(o *options) { o.hasher = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRemoveDateItems drops date categories from the columns.
func WithRemoveDateItems(remove bool) Option {
	return func(o *options) { o.removeDateItems = remove }
}

// WithKnownIdentifiers declares identifiers that exist outside the request
// (catalog metrics) so caller definitions may reference them.
func WithKnownIdentifiers(ids ...string) Option {
	return func(o *options) { o.known = append(o.known, ids...) }
}

// WithRecorder reports compilation outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

type nopRecorder struct{}

func (nopRecorder) MeasureCompiled(string)        {}
func (nopRecorder) CompileFailed(string)          {}
func (nopRecorder) CompileFinished(time.Duration) {}

// category is a resolved attribute item.
type category struct {
	item *ir.AttributeItem
	attr ir.AttributeInfo
}

// Assemble compiles in into an execution request.
//
// Steps, in order:
//  1. Validate the visualization
//  2. Resolve every category through the attributes map
//  3. Compile every measure in bucket order
//  4. Build columns (categories, then measures, de-duplicated)
//  5. Order generated and caller definitions by their references
//  6. Build mappings, sort and totals
//
// The first failure aborts assembly; no partial request is returned.
func Assemble(in Input, opts ...Option) (*Request, error) {
	o := options{
		hasher:   ir.MD5Hasher{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.hasher == nil {
		o.hasher = ir.MD5Hasher{}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.recorder == nil {
		o.recorder = nopRecorder{}
	}

	start := time.Now()
	req, err := assemble(in, o)
	o.recorder.CompileFinished(time.Since(start))
	if err != nil {
		o.recorder.CompileFailed(string(compiler.CodeOf(err)))
		return nil, err
	}
	return req, nil
}

func assemble(in Input, o options) (*Request, error) {
	vis := in.Visualization
	if vis == nil {
		return nil, &compiler.CompileError{Code: compiler.ErrCodeInvalidInput, Message: "nil visualization"}
	}
	if err := ir.ValidateVisualization(vis); err != nil {
		return nil, err
	}

	categories, err := resolveCategories(vis, in.Attributes)
	if err != nil {
		return nil, err
	}

	// Contributions group by the first category, date or not.
	ctx := compiler.Context{Attributes: in.Attributes}
	if len(categories) > 0 {
		ctx.GroupBy = categories[0].item.DisplayFormURI
	}

	comp := compiler.New(compiler.WithHasher(o.hasher), compiler.WithLogger(o.logger))
	measures := vis.Measures()
	compiled := make([]*compiler.Compiled, len(measures))
	for i, m := range measures {
		c, err := comp.CompileMeasure(vis, m, ctx)
		if err != nil {
			return nil, err
		}
		o.recorder.MeasureCompiled(string(c.Strategy))
		compiled[i] = c
	}

	if o.removeDateItems {
		kept := categories[:0:0]
		for _, c := range categories {
			if c.attr.IsDate() {
				o.logger.Debug("date category removed", "attribute", c.item.LocalIdentifier)
				continue
			}
			kept = append(kept, c)
		}
		categories = kept
	}

	req := &Request{
		Columns:        []string{},
		Definitions:    []ir.MetricDefinition{},
		MetricMappings: []MetricMapping{},
		OrderBy:        []OrderBy{},
		Totals:         []Total{},
	}

	seenColumn := make(map[string]bool)
	addColumn := func(element string) {
		if !seenColumn[element] {
			seenColumn[element] = true
			req.Columns = append(req.Columns, element)
		}
	}
	for _, c := range categories {
		addColumn(c.attr.URI)
	}
	for _, c := range compiled {
		addColumn(c.Element)
	}

	defs, err := orderDefinitions(compiled, in.Definitions, o.known)
	if err != nil {
		return nil, err
	}
	req.Definitions = defs

	for i, c := range compiled {
		req.MetricMappings = append(req.MetricMappings, MetricMapping{
			Element:      c.Element,
			MeasureIndex: i,
			IsPoP:        c.IsPoP,
		})
	}

	req.OrderBy = orderBy(vis, categories, measures, compiled)

	totals, err := resolveTotals(vis, categories, compiled, o.logger)
	if err != nil {
		return nil, err
	}
	req.Totals = totals

	o.logger.Debug("request assembled",
		"columns", len(req.Columns),
		"definitions", len(req.Definitions),
		"totals", len(req.Totals))
	return req, nil
}

func resolveCategories(vis *ir.Visualization, attrs ir.AttributesMap) ([]category, error) {
	var out []category
	for _, a := range vis.Attributes() {
		info, ok := attrs[a.DisplayFormURI]
		if !ok {
			return nil, &compiler.CompileError{
				Code:    compiler.ErrCodeMissingAttribute,
				Message: fmt.Sprintf("no attribute found for category %q", a.DisplayFormURI),
				Details: map[string]string{"role": "category", "uri": a.DisplayFormURI, "attribute": a.LocalIdentifier},
			}
		}
		out = append(out, category{item: a, attr: info})
	}
	return out, nil
}

// orderDefinitions de-duplicates generated definitions by identifier,
// appends caller definitions not already present and sorts the result.
func orderDefinitions(compiled []*compiler.Compiled, extra []ir.MetricDefinition, known []string) ([]ir.MetricDefinition, error) {
	seen := make(map[string]bool)
	var defs []ir.MetricDefinition
	for _, c := range compiled {
		if c.Definition == nil || seen[c.Definition.Identifier] {
			continue
		}
		seen[c.Definition.Identifier] = true
		defs = append(defs, *c.Definition)
	}
	for _, d := range extra {
		if seen[d.Identifier] {
			continue
		}
		seen[d.Identifier] = true
		defs = append(defs, d)
	}
	return compiler.SortDefinitions(defs, known...)
}

// orderBy lists sorted columns: categories first, then measures. A column
// shared by several measures sorts by the first one that has a direction.
func orderBy(vis *ir.Visualization, categories []category, measures []*ir.MeasureItem, compiled []*compiler.Compiled) []OrderBy {
	out := []OrderBy{}
	seen := make(map[string]bool)
	add := func(column, direction string) {
		if direction == "" || seen[column] {
			return
		}
		seen[column] = true
		out = append(out, OrderBy{Column: column, Direction: direction})
	}
	for _, c := range categories {
		add(c.attr.URI, vis.AttributeSortDirection(c.item.LocalIdentifier))
	}
	for i, m := range measures {
		add(compiled[i].Element, vis.MeasureSortDirection(m.LocalIdentifier))
	}
	return out
}

// resolveTotals maps bucket totals to columns. Totals over a category
// dropped as a date item are dropped with it.
func resolveTotals(vis *ir.Visualization, categories []category, compiled []*compiler.Compiled, logger *slog.Logger) ([]Total, error) {
	elements := make(map[string]string, len(compiled))
	for _, c := range compiled {
		elements[c.LocalIdentifier] = c.Element
	}
	kept := make(map[string]string, len(categories))
	for _, c := range categories {
		kept[c.item.LocalIdentifier] = c.attr.URI
	}
	declared := make(map[string]bool)
	for _, a := range vis.Attributes() {
		declared[a.LocalIdentifier] = true
	}

	out := []Total{}
	for _, b := range vis.Buckets {
		for _, t := range b.Totals {
			column, ok := elements[t.MeasureIdentifier]
			if !ok {
				return nil, invalidReference("total", "measure", t.MeasureIdentifier)
			}
			attrColumn, ok := kept[t.AttributeIdentifier]
			if !ok {
				if declared[t.AttributeIdentifier] {
					logger.Debug("total dropped with date category", "attribute", t.AttributeIdentifier)
					continue
				}
				return nil, invalidReference("total", "attribute", t.AttributeIdentifier)
			}
			out = append(out, Total{Type: t.Type, Column: column, AttributeColumn: attrColumn})
		}
	}
	return out, nil
}

func invalidReference(owner, kind, id string) *compiler.CompileError {
	return &compiler.CompileError{
		Code:    compiler.ErrCodeInvalidReference,
		Message: fmt.Sprintf("%s references unknown %s %q", owner, kind, id),
		Details: map[string]string{"kind": kind, "localIdentifier": id},
	}
}
