package vectorstore

import (
	"fmt"
	"sort"
	"strings"
)

// Filter is a conjunction of per-field constraints compiled to a Milvus
// boolean expression. Fields are ANDed; values within a field are ORed.
type Filter struct {
	equals map[string]string
	in     map[string][]string
	minTS  int64
	maxTS  int64
}

// NewFilter creates an empty filter.
func NewFilter() Filter {
	return Filter{
		equals: make(map[string]string),
		in:     make(map[string][]string),
	}
}

// Eq constrains a field to a single value.
func (f Filter) Eq(field, value string) Filter {
	f.equals[field] = value
	return f
}

// In constrains a field to any of the given values. An empty list is a
// no-op.
func (f Filter) In(field string, values []string) Filter {
	if len(values) > 0 {
		f.in[field] = values
	}
	return f
}

// TimeRange constrains the timestamp field to [min, max]. Zero bounds are
// open.
func (f Filter) TimeRange(minTS, maxTS int64) Filter {
	f.minTS = minTS
	f.maxTS = maxTS
	return f
}

// quote escapes a value for embedding in a Milvus expression.
func quote(v string) string {
	escaped := strings.ReplaceAll(v, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

// Expr compiles the filter to a Milvus boolean expression. Terms are sorted
// by field name so identical filters produce identical expressions.
func (f Filter) Expr() string {
	var terms []string

	eqFields := make([]string, 0, len(f.equals))
	for field := range f.equals {
		eqFields = append(eqFields, field)
	}
	sort.Strings(eqFields)
	for _, field := range eqFields {
		terms = append(terms, fmt.Sprintf("%s == %s", field, quote(f.equals[field])))
	}

	inFields := make([]string, 0, len(f.in))
	for field := range f.in {
		inFields = append(inFields, field)
	}
	sort.Strings(inFields)
	for _, field := range inFields {
		quoted := make([]string, len(f.in[field]))
		for i, v := range f.in[field] {
			quoted[i] = quote(v)
		}
		terms = append(terms, fmt.Sprintf("%s in [%s]", field, strings.Join(quoted, ", ")))
	}

	if f.minTS > 0 {
		terms = append(terms, fmt.Sprintf("%s >= %d", fieldTimestamp, f.minTS))
	}
	if f.maxTS > 0 {
		terms = append(terms, fmt.Sprintf("%s <= %d", fieldTimestamp, f.maxTS))
	}

	return strings.Join(terms, " and ")
}
