package metrics

import (
	"math"
	"testing"

	"github.com/hpcbench/multibench/internal/domain"
)

func result(config string, instantiation domain.Instantiation, metrics map[string]domain.Measurement) domain.Result {
	return domain.Result{Config: config, Instantiation: instantiation, Metrics: metrics}
}

func instWith(nodes int) domain.Instantiation {
	return domain.NewInstantiation(domain.Field{Name: "nodes", Value: nodes})
}

func TestEvalDerivedSpeedup(t *testing.T) {
	results := []domain.Result{
		result("ref", instWith(1), map[string]domain.Measurement{"runtime": domain.Aggregated(40, 0)}),
		result("ref", instWith(2), map[string]domain.Measurement{"runtime": domain.Aggregated(24, 0)}),
		result("opt", instWith(1), map[string]domain.Measurement{"runtime": domain.Aggregated(20, 0)}),
		result("opt", instWith(2), map[string]domain.Measurement{"runtime": domain.Aggregated(8, 0)}),
	}
	EvalDerived(results, []DerivedMetric{
		{Name: "speedup", Formula: `other("ref", "runtime") / "runtime"`},
	}, nil)

	if got := results[2].Metrics["speedup"].Mean; got != 2 {
		t.Fatalf("opt nodes=1 speedup: got %v, want 2", got)
	}
	if got := results[3].Metrics["speedup"].Mean; got != 3 {
		t.Fatalf("opt nodes=2 speedup: got %v, want 3", got)
	}
	// Cross-reference matches by instantiation index, so the reference
	// configuration's own speedup is 1.
	if got := results[0].Metrics["speedup"].Mean; got != 1 {
		t.Fatalf("ref speedup: got %v, want 1", got)
	}
}

func TestEvalDerivedShift(t *testing.T) {
	results := []domain.Result{
		result("ref", instWith(1), map[string]domain.Measurement{"runtime": domain.Aggregated(40, 0)}),
		result("ref", instWith(2), map[string]domain.Measurement{"runtime": domain.Aggregated(20, 0)}),
	}
	EvalDerived(results, []DerivedMetric{
		{Name: "scaling", Formula: `shift("runtime", -1) / "runtime"`},
	}, nil)

	if _, ok := results[0].Metrics["scaling"]; ok {
		t.Fatalf("first instantiation has no predecessor, metric must be absent")
	}
	if got := results[1].Metrics["scaling"].Mean; got != 2 {
		t.Fatalf("scaling: got %v, want 2", got)
	}
}

func TestEvalDerivedArithmeticAndUncertainty(t *testing.T) {
	results := []domain.Result{
		result("ref", instWith(1), map[string]domain.Measurement{
			"a": domain.Aggregated(3, 0.3),
			"b": domain.Aggregated(4, 0.4),
		}),
	}
	EvalDerived(results, []DerivedMetric{
		{Name: "sum", Formula: `"a" + "b"`},
		{Name: "scaled", Formula: `2 * "a"`},
	}, nil)

	sum := results[0].Metrics["sum"]
	if sum.Mean != 7 {
		t.Fatalf("sum: got %v, want 7", sum.Mean)
	}
	if math.Abs(sum.Stdev-0.5) > 1e-9 {
		t.Fatalf("sum uncertainty: got %v, want 0.5", sum.Stdev)
	}
	scaled := results[0].Metrics["scaled"]
	if scaled.Mean != 6 || math.Abs(scaled.Stdev-0.6) > 1e-9 {
		t.Fatalf("scaled: got %v ± %v", scaled.Mean, scaled.Stdev)
	}
}

func TestEvalDerivedChainsFormulas(t *testing.T) {
	results := []domain.Result{
		result("ref", instWith(1), map[string]domain.Measurement{"runtime": domain.Aggregated(10, 0)}),
	}
	EvalDerived(results, []DerivedMetric{
		{Name: "double", Formula: `2 * "runtime"`},
		{Name: "quadruple", Formula: `2 * "double"`},
	}, nil)
	if got := results[0].Metrics["quadruple"].Mean; got != 40 {
		t.Fatalf("quadruple: got %v, want 40", got)
	}
}

func TestEvalDerivedErrorsDoNotAbort(t *testing.T) {
	results := []domain.Result{
		result("ref", instWith(1), map[string]domain.Measurement{"runtime": domain.Aggregated(10, 0)}),
		result("ref", instWith(2), map[string]domain.Measurement{"runtime": domain.Aggregated(20, 0)}),
	}
	EvalDerived(results, []DerivedMetric{
		{Name: "broken", Formula: `other("missing-config", "runtime")`},
		{Name: "fine", Formula: `"runtime" * 1`},
	}, nil)
	if _, ok := results[0].Metrics["broken"]; ok {
		t.Fatalf("broken formula must not produce a value")
	}
	if got := results[1].Metrics["fine"].Mean; got != 20 {
		t.Fatalf("later formulas must still evaluate, got %v", got)
	}
}

func TestParseFormulaErrors(t *testing.T) {
	for _, formula := range []string{
		`"unterminated`,
		`exec("rm", "-rf")`,
		`1 +`,
		`shift("runtime")`,
		`other("a", "b") trailing`,
	} {
		if _, err := parseFormula(formula); err == nil {
			t.Fatalf("expected parse error for %q", formula)
		}
	}
}

func TestParseFormulaPrecedence(t *testing.T) {
	node, err := parseFormula(`1 + 2 * 3 - (4 - 2) / 2`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, err := node.eval(&evalContext{results: []domain.Result{{}}, index: indexResults([]domain.Result{{}})})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value.v != 6 {
		t.Fatalf("got %v, want 6", value.v)
	}
}
