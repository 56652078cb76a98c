package compiler

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metricc/internal/ir"
)

func ref(id string) string {
	return "[" + obj(id) + "]"
}

// TestSynthesize_Derived tests an aggregated fact with an attribute filter.
func TestSynthesize_Derived(t *testing.T) {
	m := ir.Derived{
		ObjectURI:   obj("1144"),
		Aggregation: "sum",
		Filters: []ir.Filter{
			positive(obj("952"), obj("949")+"/elements?id=168284", obj("949")+"/elements?id=168282"),
		},
	}

	syn, err := Synthesize(m, "Sum of Amount", "#,##0.00", testContext())
	require.NoError(t, err)

	assert.Equal(t, StrategyDerived, syn.Strategy)
	assert.Equal(t,
		"SELECT SUM("+ref("1144")+") WHERE "+ref("949")+" IN ("+
			"["+obj("949")+"/elements?id=168284],["+obj("949")+"/elements?id=168282])",
		syn.Expression)
	assert.Equal(t, "Sum of Amount", syn.Title)
	assert.Equal(t, "#,##0.00", syn.Format)
}

// TestSynthesize_DerivedWithoutAggregation tests a filtered metric.
func TestSynthesize_DerivedWithoutAggregation(t *testing.T) {
	m := ir.Derived{
		ObjectURI: obj("2825"),
		Filters:   []ir.Filter{positive(obj("970"), obj("969")+"/elements?id=1")},
	}

	syn, err := Synthesize(m, "t", "f", testContext())
	require.NoError(t, err)
	assert.Equal(t, "SELECT "+ref("2825")+" WHERE "+ref("969")+" IN (["+obj("969")+"/elements?id=1])", syn.Expression)
}

// TestSynthesize_MultipleFilters tests that conditions are joined with AND
// in filter order and negative filters render NOT IN.
func TestSynthesize_MultipleFilters(t *testing.T) {
	m := ir.Derived{
		ObjectURI:   obj("1144"),
		Aggregation: "avg",
		Filters: []ir.Filter{
			positive(obj("952"), "a"),
			negative(obj("43"), "b", "c"),
		},
	}

	syn, err := Synthesize(m, "t", "f", testContext())
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT AVG("+ref("1144")+") WHERE "+ref("949")+" IN ([a]) AND "+ref("42")+" NOT IN ([b],[c])",
		syn.Expression)
}

// TestSynthesize_DateFilterContributesNothing tests that date filters never
// reach the expression.
func TestSynthesize_DateFilterContributesNothing(t *testing.T) {
	from := -3
	m := ir.Derived{
		ObjectURI:   obj("1144"),
		Aggregation: "sum",
		Filters: []ir.Filter{
			{RelativeDate: &ir.RelativeDateFilter{DataSet: obj("900"), Granularity: "GDC.time.year", From: &from}},
		},
	}

	syn, err := Synthesize(m, "t", "f", testContext())
	require.NoError(t, err)
	assert.Equal(t, "SELECT SUM("+ref("1144")+")", syn.Expression)
}

// TestSynthesize_EmptyFilterDropped tests that a filter selecting nothing
// never renders as IN ().
func TestSynthesize_EmptyFilterDropped(t *testing.T) {
	m := ir.Derived{
		ObjectURI:   obj("1144"),
		Aggregation: "sum",
		Filters:     []ir.Filter{positive(obj("952")), positive(obj("43"), "x")},
	}

	syn, err := Synthesize(m, "t", "f", testContext())
	require.NoError(t, err)
	assert.Equal(t, "SELECT SUM("+ref("1144")+") WHERE "+ref("42")+" IN ([x])", syn.Expression)
	assert.NotContains(t, syn.Expression, "IN ()")
}

// TestSynthesize_FilterWithUnknownDisplayForm tests strict filter resolution.
func TestSynthesize_FilterWithUnknownDisplayForm(t *testing.T) {
	m := ir.Derived{
		ObjectURI: obj("1144"),
		Filters:   []ir.Filter{positive(obj("999"), "x")},
	}

	_, err := Synthesize(m, "t", "f", testContext())
	require.Error(t, err)
	assert.True(t, IsMissingAttributeError(err))
	assert.Contains(t, err.Error(), obj("999"))
}

// TestSynthesize_ContributionOverPure tests percent of a catalog metric.
func TestSynthesize_ContributionOverPure(t *testing.T) {
	m := ir.Contribution{Inner: ir.PureReference{ObjectURI: obj("2825")}}

	syn, err := Synthesize(m, "% # of Opportunities", "#,##0", testContext())
	require.NoError(t, err)

	assert.Equal(t, StrategyContribution, syn.Strategy)
	assert.Equal(t,
		"SELECT (SELECT "+ref("2825")+") / (SELECT "+ref("2825")+" BY ALL "+ref("1027")+")",
		syn.Expression)
	assert.Equal(t, ContributionFormat, syn.Format, "contribution format overrides the measure format")
}

// TestSynthesize_ContributionWithFilters tests that the same WHERE clause
// lands on both sides of the ratio.
func TestSynthesize_ContributionWithFilters(t *testing.T) {
	m := ir.Contribution{Inner: ir.Derived{
		ObjectURI:   obj("1"),
		Aggregation: "sum",
		Filters:     []ir.Filter{positive(obj("43"), obj("42")+"/elements?id=61527")},
	}}

	syn, err := Synthesize(m, "% Sum of Amount", "#,##0.00", testContext())
	require.NoError(t, err)

	where := " WHERE " + ref("42") + " IN ([" + obj("42") + "/elements?id=61527])"
	assert.Equal(t,
		"SELECT (SELECT SUM("+ref("1")+")"+where+") / (SELECT SUM("+ref("1")+") BY ALL "+ref("1027")+where+")",
		syn.Expression)
}

// TestSynthesize_ContributionWithoutGrouping tests that a contribution
// needs a category in scope.
func TestSynthesize_ContributionWithoutGrouping(t *testing.T) {
	m := ir.Contribution{Inner: ir.PureReference{ObjectURI: obj("2825")}}
	ctx := Context{Attributes: testAttributes()}

	_, err := Synthesize(m, "t", "f", ctx)
	require.Error(t, err)
	assert.True(t, IsMissingAttributeError(err))
}

// TestSynthesize_ContributionUnresolvableGrouping tests a grouping display
// form the attributes map does not know.
func TestSynthesize_ContributionUnresolvableGrouping(t *testing.T) {
	m := ir.Contribution{Inner: ir.PureReference{ObjectURI: obj("2825")}}
	ctx := Context{Attributes: testAttributes(), GroupBy: obj("1029")}

	_, err := Synthesize(m, "t", "f", ctx)
	require.Error(t, err)
	assert.True(t, IsMissingAttributeError(err))
	assert.Contains(t, err.Error(), obj("1029"))
}

// TestSynthesize_PoPOverPure tests that a pure original is embedded bare.
func TestSynthesize_PoPOverPure(t *testing.T) {
	m := ir.PeriodOverPeriod{Inner: ir.PureReference{ObjectURI: obj("2825")}, PopAttributeURI: obj("1233")}

	syn, err := Synthesize(m, "# of Opportunities - previous year", "#,##0", testContext())
	require.NoError(t, err)

	assert.Equal(t, StrategyPoP, syn.Strategy)
	assert.Equal(t, "SELECT "+ref("2825")+" FOR PREVIOUS ("+ref("1233")+")", syn.Expression)
	assert.Equal(t, "#,##0", syn.Format)
}

// TestSynthesize_PoPOverDerived tests that a derived original is embedded
// as a sub-select.
func TestSynthesize_PoPOverDerived(t *testing.T) {
	m := ir.PeriodOverPeriod{
		Inner:           ir.Derived{ObjectURI: obj("1144"), Aggregation: "sum"},
		PopAttributeURI: obj("1233"),
	}

	syn, err := Synthesize(m, "Sum of Amount - previous year", "#,##0.00", testContext())
	require.NoError(t, err)
	assert.Equal(t, "SELECT (SELECT SUM("+ref("1144")+")) FOR PREVIOUS ("+ref("1233")+")", syn.Expression)
}

// TestSynthesize_PoPOverContribution tests the nested form and the forced
// percentage format.
func TestSynthesize_PoPOverContribution(t *testing.T) {
	m := ir.PeriodOverPeriod{
		Inner:           ir.Contribution{Inner: ir.Derived{ObjectURI: obj("1144"), Aggregation: "sum"}},
		PopAttributeURI: obj("1233"),
	}
	ctx := Context{Attributes: testAttributes(), GroupBy: obj("1234")}

	syn, err := Synthesize(m, "% Sum of Amount - previous year", "#,##0.00", ctx)
	require.NoError(t, err)

	assert.Equal(t, StrategyPoPContribution, syn.Strategy)
	assert.Equal(t,
		"SELECT (SELECT (SELECT SUM("+ref("1144")+")) / (SELECT SUM("+ref("1144")+") BY ALL "+ref("1233")+")) FOR PREVIOUS ("+ref("1233")+")",
		syn.Expression)
	assert.Equal(t, ContributionFormat, syn.Format)
}

// TestSynthesize_PoPAttributeByDisplayForm tests that a display form URI
// resolves to its attribute.
func TestSynthesize_PoPAttributeByDisplayForm(t *testing.T) {
	m := ir.PeriodOverPeriod{Inner: ir.PureReference{ObjectURI: obj("2825")}, PopAttributeURI: obj("1234")}

	syn, err := Synthesize(m, "t", "f", testContext())
	require.NoError(t, err)
	assert.Equal(t, "SELECT "+ref("2825")+" FOR PREVIOUS ("+ref("1233")+")", syn.Expression)
}

// TestSynthesize_PoPUnknownAttribute tests strict PoP attribute resolution.
func TestSynthesize_PoPUnknownAttribute(t *testing.T) {
	m := ir.PeriodOverPeriod{Inner: ir.PureReference{ObjectURI: obj("2825")}, PopAttributeURI: obj("5555")}

	_, err := Synthesize(m, "t", "f", testContext())
	require.Error(t, err)
	assert.True(t, IsMissingAttributeError(err))
}

// TestSynthesize_Deterministic tests that equal inputs give equal output.
func TestSynthesize_Deterministic(t *testing.T) {
	m := ir.Contribution{Inner: ir.Derived{
		ObjectURI:   obj("1"),
		Aggregation: "sum",
		Filters:     []ir.Filter{positive(obj("43"), "a", "b")},
	}}
	first, err := Synthesize(m, "t", "f", testContext())
	require.NoError(t, err)
	for range 10 {
		again, err := Synthesize(m, "t", "f", testContext())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// TestTruncateTitle tests the title length cap.
func TestTruncateTitle(t *testing.T) {
	short := "Sum of Amount"
	assert.Equal(t, short, TruncateTitle(short))

	exact := strings.Repeat("a", MaxTitleLength)
	assert.Equal(t, exact, TruncateTitle(exact))

	long := "Sum of Amount (" + strings.Repeat("element,", 1050) + "element)"
	got := TruncateTitle(long)
	assert.Equal(t, MaxTitleLength, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…)"), "closing paren is kept")
	assert.True(t, strings.HasPrefix(got, "Sum of Amount ("))

	open := strings.Repeat("b", MaxTitleLength+5)
	got = TruncateTitle(open)
	assert.Equal(t, MaxTitleLength, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "b…"))
}

// TestTruncateTitle_MultiByte tests that truncation counts characters.
func TestTruncateTitle_MultiByte(t *testing.T) {
	title := strings.Repeat("ü", MaxTitleLength+1)
	got := TruncateTitle(title)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, MaxTitleLength, utf8.RuneCountInString(got))
}

// TestSynthesize_TruncatesTitle tests that synthesis applies the cap.
func TestSynthesize_TruncatesTitle(t *testing.T) {
	m := ir.Contribution{Inner: ir.Derived{ObjectURI: obj("1144"), Aggregation: "sum"}}
	title := "Sum of Amount (" + strings.Repeat("element,", 1050) + "element)"

	syn, err := Synthesize(m, title, "#,##0.00", testContext())
	require.NoError(t, err)
	assert.Equal(t, MaxTitleLength, utf8.RuneCountInString(syn.Title))
}
