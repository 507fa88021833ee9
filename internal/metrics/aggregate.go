package metrics

import (
	"math"
	"sort"
	"strconv"

	"github.com/hpcbench/multibench/internal/domain"
)

// AggregateOptions controls how a rerun group's samples collapse into one
// measurement per metric.
type AggregateOptions struct {
	// Reruns is the configured rerun count. With a single rerun, values
	// pass through verbatim.
	Reruns int
	// HighestDiscard and LowestDiscard are the number of extreme values
	// trimmed before averaging, removed alternately highest-first.
	HighestDiscard int
	LowestDiscard  int
	// Unaggregatable names metrics carried through as raw strings, such as
	// categorical fields.
	Unaggregatable map[string]bool
}

// Aggregate collapses one rerun group's extracted samples. samples holds one
// metric map per usable rerun, in rerun order; reruns whose extraction failed
// are simply absent. A metric with no usable values contributes no entry, so
// the returned map may be sparse; an empty map means the whole group produced
// nothing.
func Aggregate(samples []map[string]string, opts AggregateOptions) map[string]domain.Measurement {
	names := map[string]struct{}{}
	for _, sample := range samples {
		for name := range sample {
			names[name] = struct{}{}
		}
	}

	out := make(map[string]domain.Measurement, len(names))
	for name := range names {
		values := make([]string, 0, len(samples))
		for _, sample := range samples {
			if value, ok := sample[name]; ok {
				values = append(values, value)
			}
		}
		if len(values) == 0 {
			continue
		}
		if opts.Reruns <= 1 || opts.Unaggregatable[name] {
			out[name] = domain.Passthrough(values[0])
			continue
		}
		parsed, ok := parseAll(values)
		if !ok {
			// Numeric aggregation is impossible; keep the first raw
			// value rather than dropping the metric.
			out[name] = domain.Passthrough(values[0])
			continue
		}
		sort.Float64s(parsed)
		trimmed := trim(parsed, opts.HighestDiscard, opts.LowestDiscard)
		out[name] = domain.Aggregated(mean(trimmed), sampleStdev(trimmed))
	}
	return out
}

func parseAll(values []string) ([]float64, bool) {
	out := make([]float64, 0, len(values))
	for _, value := range values {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, false
		}
		out = append(out, parsed)
	}
	return out, true
}

// trim removes extremes from an ascending-sorted slice, alternating a
// highest value then a lowest value, and stops as soon as a single value
// remains.
func trim(values []float64, highest, lowest int) []float64 {
	for (highest > 0 || lowest > 0) && len(values) > 1 {
		if highest > 0 {
			values = values[:len(values)-1]
			highest--
			if len(values) == 1 {
				break
			}
		}
		if lowest > 0 {
			values = values[1:]
			lowest--
		}
	}
	return values
}

func mean(values []float64) float64 {
	var sum float64
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}

// sampleStdev is the n-1 standard deviation, defined as zero when fewer than
// two values remain after trimming.
func sampleStdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	center := mean(values)
	var sum float64
	for _, value := range values {
		delta := value - center
		sum += delta * delta
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
