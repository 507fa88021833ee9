// Package metrics turns raw job output into aggregated, cross-referenced
// benchmark measurements.
package metrics

import (
	"fmt"
	"regexp"
	"sort"
)

// ExtractionError names the first configured metric whose pattern did not
// match a job's output.
type ExtractionError struct {
	Metric string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("metric %q not found in output", e.Metric)
}

type compiledPattern struct {
	name  string
	regex *regexp.Regexp
}

// Extractor pulls named metrics out of job output text. Extraction is
// all-or-nothing per job: if any pattern fails to match, the whole job is
// unusable, because aggregation cannot reason about missing fields.
type Extractor struct {
	patterns []compiledPattern
}

func NewExtractor(patterns map[string]string) (*Extractor, error) {
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)

	compiled := make([]compiledPattern, 0, len(names))
	for _, name := range names {
		regex, err := regexp.Compile(patterns[name])
		if err != nil {
			return nil, fmt.Errorf("metric %q: %w", name, err)
		}
		compiled = append(compiled, compiledPattern{name: name, regex: regex})
	}
	return &Extractor{patterns: compiled}, nil
}

// Extract returns metric-name to raw-string for one job's output, or an
// ExtractionError naming the first missing metric.
func (e *Extractor) Extract(output string) (map[string]string, error) {
	results := make(map[string]string, len(e.patterns))
	for _, pattern := range e.patterns {
		match := pattern.regex.FindStringSubmatch(output)
		if match == nil {
			return nil, &ExtractionError{Metric: pattern.name}
		}
		if len(match) > 1 {
			results[pattern.name] = match[1]
		} else {
			results[pattern.name] = match[0]
		}
	}
	return results, nil
}
