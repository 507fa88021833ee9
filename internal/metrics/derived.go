package metrics

import (
	"fmt"
	"log/slog"

	"github.com/hpcbench/multibench/internal/domain"
)

// DerivedMetric is a named formula evaluated against the aggregated results
// of every configuration in a bench.
type DerivedMetric struct {
	Name    string
	Formula string
}

// resultIndex gives each result a stable ordinal within its configuration's
// own instantiation sequence, matched by canonical instantiation form rather
// than identity, since each configuration realizes its instantiations
// independently.
type resultIndex struct {
	position []int
	byConfig map[string][]int
}

func indexResults(results []domain.Result) resultIndex {
	idx := resultIndex{
		position: make([]int, len(results)),
		byConfig: make(map[string][]int),
	}
	seen := map[string]map[string]int{}
	for i, result := range results {
		positions, ok := seen[result.Config]
		if !ok {
			positions = map[string]int{}
			seen[result.Config] = positions
		}
		canonical := result.Instantiation.Canonical()
		position, ok := positions[canonical]
		if !ok {
			position = len(idx.byConfig[result.Config])
			positions[canonical] = position
			idx.byConfig[result.Config] = append(idx.byConfig[result.Config], i)
		}
		idx.position[i] = position
	}
	return idx
}

type evalContext struct {
	results []domain.Result
	index   resultIndex
	current int
}

func (ctx *evalContext) metric(name string) (uval, error) {
	return metricValue(ctx.results[ctx.current], name)
}

func (ctx *evalContext) other(config, metric string) (uval, error) {
	position := ctx.index.position[ctx.current]
	indices, ok := ctx.index.byConfig[config]
	if !ok {
		return uval{}, fmt.Errorf("no results for configuration %q", config)
	}
	if position >= len(indices) {
		return uval{}, fmt.Errorf("configuration %q has no instantiation at index %d", config, position)
	}
	return metricValue(ctx.results[indices[position]], metric)
}

func (ctx *evalContext) shift(metric string, offset int) (uval, error) {
	config := ctx.results[ctx.current].Config
	position := ctx.index.position[ctx.current] + offset
	indices := ctx.index.byConfig[config]
	if position < 0 || position >= len(indices) {
		return uval{}, fmt.Errorf("configuration %q has no instantiation at index %d", config, position)
	}
	return metricValue(ctx.results[indices[position]], metric)
}

func metricValue(result domain.Result, name string) (uval, error) {
	measurement, ok := result.Metrics[name]
	if !ok {
		return uval{}, fmt.Errorf("metric %q not present", name)
	}
	value, err := measurement.Float()
	if err != nil {
		return uval{}, err
	}
	return uval{v: value, e: measurement.Stdev}, nil
}

// EvalDerived extends every result's metric map in place with the derived
// metrics, one formula at a time across the whole result set so a later
// formula can reference an earlier one, including across configurations.
// Evaluation errors are reported per (configuration, instantiation, metric)
// and never abort the remaining entries.
func EvalDerived(results []domain.Result, derived []DerivedMetric, logger *slog.Logger) {
	if len(derived) == 0 || len(results) == 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	index := indexResults(results)

	for _, metric := range derived {
		node, err := parseFormula(metric.Formula)
		if err != nil {
			logger.Error("invalid derived metric formula",
				"metric", metric.Name, "formula", metric.Formula, "error", err)
			continue
		}
		for i := range results {
			ctx := &evalContext{results: results, index: index, current: i}
			value, err := node.eval(ctx)
			if err != nil {
				logger.Warn("derived metric evaluation failed",
					"config", results[i].Config,
					"instantiation", results[i].Instantiation.Canonical(),
					"metric", metric.Name,
					"error", err)
				continue
			}
			results[i].Metrics[metric.Name] = domain.Aggregated(value.v, value.e)
		}
	}
}
