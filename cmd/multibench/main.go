// multibench drives batch-scheduler benchmark sweeps: it records a test
// plan's matrix onto the cluster queue, waits for the queue to drain, and
// reports aggregated metrics from the collected output.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hpcbench/multibench/internal/bench"
	"github.com/hpcbench/multibench/internal/collect"
	"github.com/hpcbench/multibench/internal/domain"
	"github.com/hpcbench/multibench/internal/ledger"
	"github.com/hpcbench/multibench/internal/ledger/postgres"
	"github.com/hpcbench/multibench/internal/ledger/sqlite"
	"github.com/hpcbench/multibench/internal/plan"
	"github.com/hpcbench/multibench/internal/platform/env"
	"github.com/hpcbench/multibench/internal/sched"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(logger).ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand(logger *slog.Logger) *cobra.Command {
	var planPath string

	root := &cobra.Command{
		Use:           "multibench",
		Short:         "Benchmark sweeps over a batch scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&planPath, "plan", "p", "plan.yaml", "test plan file")

	var (
		dryRun  bool
		clobber bool
		noWait  bool
	)
	record := &cobra.Command{
		Use:   "record [bench...]",
		Short: "Submit every run the plan's matrix describes",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, benches, cleanup, err := setup(cmd.Context(), logger, planPath, args)
			if err != nil {
				return err
			}
			defer cleanup()
			for _, b := range benches {
				submitted, err := runner.Record(cmd.Context(), b, bench.RecordOptions{
					DryRun:    dryRun,
					DryRunOut: cmd.OutOrStdout(),
					Clobber:   clobber,
				})
				if err != nil {
					return err
				}
				if dryRun {
					continue
				}
				logger.Info("bench recorded", "bench", b.Name, "jobs", len(submitted))
				if noWait {
					continue
				}
				drained, err := runner.WaitForQueue(cmd.Context(), b)
				if err != nil {
					return err
				}
				if !drained {
					logger.Warn("gave up waiting for queue to drain", "bench", b.Name)
				}
			}
			return nil
		},
	}
	record.Flags().BoolVar(&dryRun, "dry-run", false, "print submission scripts without submitting")
	record.Flags().BoolVar(&clobber, "clobber", false, "discard previous ledger and output before recording")
	record.Flags().BoolVar(&noWait, "no-wait", false, "return after submission instead of waiting for the queue")

	report := &cobra.Command{
		Use:   "report [bench...]",
		Short: "Aggregate recorded results into metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, benches, cleanup, err := setup(cmd.Context(), logger, planPath, args)
			if err != nil {
				return err
			}
			defer cleanup()
			for _, b := range benches {
				results, err := runner.Report(cmd.Context(), b)
				if err != nil {
					return err
				}
				printResults(cmd, b, results)
			}
			return nil
		},
	}

	wait := &cobra.Command{
		Use:   "wait [bench...]",
		Short: "Block until every recorded job has left the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, benches, cleanup, err := setup(cmd.Context(), logger, planPath, args)
			if err != nil {
				return err
			}
			defer cleanup()
			for _, b := range benches {
				drained, err := runner.WaitForQueue(cmd.Context(), b)
				if err != nil {
					return err
				}
				if !drained {
					return fmt.Errorf("bench %q: queue did not drain", b.Name)
				}
			}
			return nil
		},
	}

	root.AddCommand(record, report, wait)
	return root
}

// setup loads the plan, selects the requested benches, and wires the runner
// from the environment. The returned cleanup closes any backing database.
func setup(ctx context.Context, logger *slog.Logger, planPath string, names []string) (*bench.Runner, []*bench.Bench, func(), error) {
	p, err := plan.Load(planPath)
	if err != nil {
		return nil, nil, nil, err
	}
	benches, err := selectBenches(p, names)
	if err != nil {
		return nil, nil, nil, err
	}

	outputRoot := env.String("MULTIBENCH_OUTPUT_ROOT", "results")

	ledgers, cleanup, err := ledgerProvider(ctx, outputRoot)
	if err != nil {
		return nil, nil, nil, err
	}
	reader, err := outputReader(outputRoot)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	backoff, err := env.Durations("MULTIBENCH_WAIT_BACKOFF", sched.DefaultBackoff)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	maxWait, err := env.Duration("MULTIBENCH_WAIT_MAX", sched.DefaultMaxWait)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	collectors, err := env.Int("MULTIBENCH_COLLECTORS", 0)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	scheduler := &sched.Slurm{User: env.String("MULTIBENCH_SLURM_USER", "")}
	runner := &bench.Runner{
		Scheduler:  scheduler,
		Ledgers:    ledgers,
		Reader:     reader,
		Waiter:     sched.Waiter{Scheduler: scheduler, Backoff: backoff, MaxWait: maxWait, Logger: logger},
		OutputRoot: outputRoot,
		Collectors: collectors,
		Logger:     logger,
	}
	return runner, benches, cleanup, nil
}

func selectBenches(p *plan.Plan, names []string) ([]*bench.Bench, error) {
	if len(names) == 0 {
		benches := p.EnabledBenches()
		if len(benches) == 0 {
			return nil, fmt.Errorf("plan has no enabled benches")
		}
		return benches, nil
	}
	benches := make([]*bench.Bench, 0, len(names))
	for _, name := range names {
		b := p.Bench(name)
		if b == nil {
			return nil, fmt.Errorf("plan has no bench %q", name)
		}
		benches = append(benches, b)
	}
	return benches, nil
}

func ledgerProvider(ctx context.Context, outputRoot string) (ledger.Provider, func(), error) {
	switch backend := env.String("MULTIBENCH_LEDGER", "file"); backend {
	case "file":
		return ledger.FileProvider{Root: outputRoot}, func() {}, nil
	case "sqlite":
		path := env.String("MULTIBENCH_SQLITE_PATH", "multibench.db")
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.Provider{DB: db}, func() { _ = db.Close() }, nil
	case "postgres":
		cfg, err := postgres.ConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		db, err := postgres.Open(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return postgres.Provider{DB: db}, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}

func outputReader(outputRoot string) (collect.OutputReader, error) {
	switch source := env.String("MULTIBENCH_OUTPUT_SOURCE", "fs"); source {
	case "fs":
		return collect.FileReader{Root: outputRoot}, nil
	case "s3":
		cfg, err := collect.ObjectStoreConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return collect.NewObjectReader(cfg)
	default:
		return nil, fmt.Errorf("unknown output source %q", source)
	}
}

func printResults(cmd *cobra.Command, b *bench.Bench, results []domain.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "bench %s: %d results\n", b.Name, len(results))
	for _, result := range results {
		fmt.Fprintf(out, "  %s [%s]\n", result.Config, result.Instantiation.Canonical())
		names := make([]string, 0, len(result.Metrics))
		for name := range result.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "    %s = %s\n", name, result.Metrics[name])
		}
	}
}
