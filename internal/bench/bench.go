// Package bench coordinates the record and report phases of a test bench:
// expanding its matrix, submitting realized runs with build/rerun dependency
// chaining, and turning collected output back into aggregated results.
package bench

import (
	"github.com/hpcbench/multibench/internal/domain"
	"github.com/hpcbench/multibench/internal/matrix"
	"github.com/hpcbench/multibench/internal/metrics"
)

// Configuration names one run configuration template inside a bench.
type Configuration struct {
	Name     string
	Template domain.Template
}

// RerunSettings controls statistical repetition of each instantiation.
type RerunSettings struct {
	Count          int
	HighestDiscard int
	LowestDiscard  int
	Unaggregatable []string
}

// CountOrOne treats an unset rerun count as a single run.
func (s RerunSettings) CountOrOne() int {
	if s.Count < 1 {
		return 1
	}
	return s.Count
}

// Analysis describes how a bench's output turns into metrics.
type Analysis struct {
	// Metrics maps metric names to extraction patterns.
	Metrics map[string]string
	// DerivedMetrics are evaluated over the aggregated result set.
	DerivedMetrics []metrics.DerivedMetric
}

// Bench is one named sweep over a set of run configurations.
type Bench struct {
	Name           string
	Configurations []Configuration
	Matrix         matrix.Spec
	Reruns         RerunSettings
	Analysis       Analysis
	Enabled        bool
}

func (b *Bench) aggregateOptions() metrics.AggregateOptions {
	unaggregatable := make(map[string]bool, len(b.Reruns.Unaggregatable))
	for _, name := range b.Reruns.Unaggregatable {
		unaggregatable[name] = true
	}
	return metrics.AggregateOptions{
		Reruns:         b.Reruns.CountOrOne(),
		HighestDiscard: b.Reruns.HighestDiscard,
		LowestDiscard:  b.Reruns.LowestDiscard,
		Unaggregatable: unaggregatable,
	}
}
