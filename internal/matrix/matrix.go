// Package matrix expands a declarative test matrix into the ordered list of
// concrete instantiations it describes.
package matrix

import (
	"fmt"
	"strings"

	"github.com/hpcbench/multibench/internal/domain"
	"github.com/hpcbench/multibench/internal/validate"
)

// Axis is one sweep dimension. A single-field axis varies its one field
// independently; a linked axis names several fields that vary in lock-step,
// with each value tuple supplying all named fields at once.
type Axis struct {
	Fields []string
	Values []any
}

// Linked reports whether the axis varies several fields in lock-step.
func (a Axis) Linked() bool {
	return len(a.Fields) > 1
}

// Key returns the axis key as written in the plan, for diagnostics.
func (a Axis) Key() string {
	return strings.Join(a.Fields, ",")
}

// Spec is an ordered list of axes. Order is significant: it fixes the
// instantiation order of the expanded sweep.
type Spec []Axis

// Validate checks axis shape without expanding: non-empty keys, non-empty
// value lists, tuple arity on linked axes, and field disjointness across
// axes.
func (s Spec) Validate() error {
	verr := &validate.Error{}
	seen := map[string]string{}
	for _, axis := range s {
		if len(axis.Fields) == 0 {
			verr.Add("matrix axis with no field names")
			continue
		}
		for _, field := range axis.Fields {
			if strings.TrimSpace(field) == "" {
				verr.Add(fmt.Sprintf("matrix axis %q has an empty field name", axis.Key()))
				continue
			}
			if prior, ok := seen[field]; ok {
				verr.Add(fmt.Sprintf("field %q appears in axes %q and %q", field, prior, axis.Key()))
				continue
			}
			seen[field] = axis.Key()
		}
		if len(axis.Values) == 0 {
			verr.Add(fmt.Sprintf("matrix axis %q has no values", axis.Key()))
		}
		if !axis.Linked() {
			continue
		}
		for idx, value := range axis.Values {
			tuple, ok := value.([]any)
			if !ok {
				verr.Add(fmt.Sprintf("linked axis %q value %d is not a tuple", axis.Key(), idx))
				continue
			}
			if len(tuple) != len(axis.Fields) {
				verr.Add(fmt.Sprintf("linked axis %q value %d has %d entries, want %d",
					axis.Key(), idx, len(tuple), len(axis.Fields)))
			}
		}
	}
	return verr.OrNil()
}

// Expand produces the Cartesian product of the spec's axes in declaration
// order. An empty spec yields a single empty instantiation. The output is a
// pure function of the input: identical specs expand to identical lists.
func Expand(spec Spec) ([]domain.Instantiation, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	// A fragment is the slice of field bindings contributed by picking one
	// value on one axis.
	fragments := make([][][]domain.Field, 0, len(spec))
	for _, axis := range spec {
		axisFragments := make([][]domain.Field, 0, len(axis.Values))
		for _, value := range axis.Values {
			if !axis.Linked() {
				axisFragments = append(axisFragments, []domain.Field{{Name: axis.Fields[0], Value: value}})
				continue
			}
			tuple := value.([]any)
			fragment := make([]domain.Field, 0, len(axis.Fields))
			for idx, field := range axis.Fields {
				fragment = append(fragment, domain.Field{Name: field, Value: tuple[idx]})
			}
			axisFragments = append(axisFragments, fragment)
		}
		fragments = append(fragments, axisFragments)
	}

	combinations := product(fragments)
	out := make([]domain.Instantiation, 0, len(combinations))
	for _, combination := range combinations {
		merged := make([]domain.Field, 0)
		for _, fragment := range combination {
			merged = append(merged, fragment...)
		}
		out = append(out, domain.NewInstantiation(merged...))
	}
	return out, nil
}

// product walks the axes left to right so the last axis varies fastest,
// matching lexicographic order over axis declaration order.
func product(fragments [][][]domain.Field) [][][]domain.Field {
	result := [][][]domain.Field{{}}
	for _, axisFragments := range fragments {
		next := make([][][]domain.Field, 0, len(result)*len(axisFragments))
		for _, prefix := range result {
			for _, fragment := range axisFragments {
				combined := make([][]domain.Field, 0, len(prefix)+1)
				combined = append(combined, prefix...)
				combined = append(combined, fragment)
				next = append(next, combined)
			}
		}
		result = next
	}
	return result
}
