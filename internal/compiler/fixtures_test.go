package compiler

import "github.com/roach88/metricc/internal/ir"

const project = "/gdc/md/qamfsd9cw85e53mcqs74k8a0mwbf5gc2"

func obj(id string) string {
	return project + "/obj/" + id
}

func testAttributes() ir.AttributesMap {
	return ir.AttributesMap{
		obj("952"):  {URI: obj("949")},
		obj("970"):  {URI: obj("969")},
		obj("1028"): {URI: obj("1027")},
		obj("43"):   {URI: obj("42")},
		obj("1234"): {URI: obj("1233"), Type: "GDC.time.year"},
	}
}

func testContext() Context {
	return Context{Attributes: testAttributes(), GroupBy: obj("1028")}
}

func positive(displayForm string, elements ...string) ir.Filter {
	return ir.Filter{PositiveAttribute: &ir.PositiveAttributeFilter{DisplayForm: displayForm, In: elements}}
}

func negative(displayForm string, elements ...string) ir.Filter {
	return ir.Filter{NegativeAttribute: &ir.NegativeAttributeFilter{DisplayForm: displayForm, NotIn: elements}}
}

func measuresVis(items ...*ir.MeasureItem) *ir.Visualization {
	vis := &ir.Visualization{Buckets: []ir.Bucket{{LocalIdentifier: "measures"}}}
	for _, m := range items {
		vis.Buckets[0].Items = append(vis.Buckets[0].Items, ir.BucketItem{Measure: m})
	}
	return vis
}
