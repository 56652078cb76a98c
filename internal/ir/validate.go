package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the validator instance for the input model.
// Initialized in init() with custom rules.
var validate *validator.Validate

// Aggregations accepted on a measure (case-insensitive).
var Aggregations = []string{"sum", "count", "avg", "min", "max", "median", "runsum"}

func init() {
	validate = validator.New()

	_ = validate.RegisterValidation("sortdir", validateSortDirection)
	_ = validate.RegisterValidation("aggregation", validateAggregation)

	validate.RegisterStructValidation(validateBucketItem, BucketItem{})
	validate.RegisterStructValidation(validateSortItem, SortItem{})
	validate.RegisterStructValidation(validateFilter, Filter{})
}

// validateSortDirection accepts "asc" and "desc".
func validateSortDirection(fl validator.FieldLevel) bool {
	dir := fl.Field().String()
	return dir == SortAsc || dir == SortDesc
}

// validateAggregation accepts the names in Aggregations in any case.
func validateAggregation(fl validator.FieldLevel) bool {
	agg := strings.ToLower(fl.Field().String())
	for _, a := range Aggregations {
		if a == agg {
			return true
		}
	}
	return false
}

func validateBucketItem(sl validator.StructLevel) {
	item := sl.Current().Interface().(BucketItem)
	if (item.Measure == nil) == (item.Attribute == nil) {
		sl.ReportError(item.Measure, "Measure", "measure", "exactlyone", "")
	}
}

func validateSortItem(sl validator.StructLevel) {
	item := sl.Current().Interface().(SortItem)
	if (item.AttributeSort == nil) == (item.MeasureSort == nil) {
		sl.ReportError(item.AttributeSort, "AttributeSort", "attributeSortItem", "exactlyone", "")
	}
}

func validateFilter(sl validator.StructLevel) {
	f := sl.Current().Interface().(Filter)
	set := 0
	for _, present := range []bool{
		f.PositiveAttribute != nil,
		f.NegativeAttribute != nil,
		f.AbsoluteDate != nil,
		f.RelativeDate != nil,
	} {
		if present {
			set++
		}
	}
	if set > 1 {
		sl.ReportError(f.PositiveAttribute, "PositiveAttribute", "positiveAttributeFilter", "atmostone", "")
	}
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Subject string
	Fields  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Subject, strings.Join(e.Fields, "; "))
}

// ValidateVisualization checks the structural rules of vis.
// Semantic problems (unknown PoP originals, unresolvable display forms)
// are reported by the compiler.
func ValidateVisualization(vis *Visualization) error {
	if vis == nil {
		return &ValidationError{Subject: "visualization", Fields: []string{"visualization is nil"}}
	}
	return toValidationError("visualization", validate.Struct(vis))
}

// ValidateAttributesMap checks that every entry carries an attribute URI.
func ValidateAttributesMap(m AttributesMap) error {
	var fields []string
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := validate.Struct(m[k]); err != nil {
			fields = append(fields, describe(err, k)...)
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Subject: "attributes map", Fields: fields}
	}
	return nil
}

// ValidateDefinitions checks caller-supplied definitions.
func ValidateDefinitions(defs []MetricDefinition) error {
	var fields []string
	for i, d := range defs {
		if err := validate.Struct(d); err != nil {
			fields = append(fields, describe(err, fmt.Sprintf("definitions[%d]", i))...)
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Subject: "definitions", Fields: fields}
	}
	return nil
}

func toValidationError(subject string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Subject: subject, Fields: describe(err, "")}
}

// describe flattens validator errors into "namespace: tag" strings.
func describe(err error, prefix string) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if prefix != "" {
			ns = prefix + "." + ns
		}
		if fe.Param() != "" {
			out = append(out, fmt.Sprintf("%s: %s=%s", ns, fe.Tag(), fe.Param()))
		} else {
			out = append(out, fmt.Sprintf("%s: %s", ns, fe.Tag()))
		}
	}
	return out
}
