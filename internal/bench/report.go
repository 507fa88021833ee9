package bench

import (
	"context"
	"errors"
	"fmt"
	"path"

	"golang.org/x/sync/errgroup"

	"github.com/hpcbench/multibench/internal/collect"
	"github.com/hpcbench/multibench/internal/domain"
	"github.com/hpcbench/multibench/internal/ledger"
	"github.com/hpcbench/multibench/internal/metrics"
)

const defaultCollectors = 8

// Report reads the bench's ledger back, fetches each recorded job's output,
// extracts the configured metrics, and aggregates every rerun group into one
// result. Jobs whose output is missing or incomplete are skipped with a
// warning; a group with no usable jobs contributes no result. Derived metrics
// are evaluated over the full result set before it is returned.
func (r *Runner) Report(ctx context.Context, b *Bench) ([]domain.Result, error) {
	entries, err := r.Ledgers.ForBench(b.Name).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("bench %q: %w", b.Name, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	extractor, err := metrics.NewExtractor(b.Analysis.Metrics)
	if err != nil {
		return nil, fmt.Errorf("bench %q: %w", b.Name, err)
	}

	groups := ledger.Groups(entries)

	// Fetch and extract per ledger row concurrently, keyed back to the
	// group by position so rerun order survives.
	type slot struct {
		sample map[string]string
		ok     bool
	}
	samples := make([][]slot, len(groups))
	for i, group := range groups {
		samples[i] = make([]slot, len(group.Entries))
	}

	collectors := r.Collectors
	if collectors < 1 {
		collectors = defaultCollectors
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(collectors)
	for i, group := range groups {
		for j, entry := range group.Entries {
			i, j, entry := i, j, entry
			eg.Go(func() error {
				output, err := r.Reader.ReadOutput(egCtx, path.Join(b.Name, entry.OutputFile))
				if errors.Is(err, collect.ErrNotAvailable) {
					r.logger().Warn("job output not available, skipping",
						"bench", b.Name, "job", entry.JobID, "file", entry.OutputFile)
					return nil
				}
				if err != nil {
					return fmt.Errorf("job %s: %w", entry.JobID, err)
				}
				sample, err := extractor.Extract(output)
				if err != nil {
					r.logger().Warn("metric extraction failed, skipping job",
						"bench", b.Name, "job", entry.JobID, "error", err)
					return nil
				}
				samples[i][j] = slot{sample: sample, ok: true}
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("bench %q: %w", b.Name, err)
	}

	opts := b.aggregateOptions()
	results := make([]domain.Result, 0, len(groups))
	for i, group := range groups {
		usable := make([]map[string]string, 0, len(samples[i]))
		for _, s := range samples[i] {
			if s.ok {
				usable = append(usable, s.sample)
			}
		}
		aggregated := metrics.Aggregate(usable, opts)
		if len(aggregated) == 0 {
			r.logger().Warn("rerun group produced no usable results",
				"bench", b.Name,
				"config", group.Config,
				"instantiation", group.Instantiation.Canonical())
			continue
		}
		results = append(results, domain.Result{
			Config:        group.Config,
			Instantiation: group.Instantiation,
			Metrics:       aggregated,
		})
	}

	metrics.EvalDerived(results, b.Analysis.DerivedMetrics, r.logger())
	return results, nil
}
