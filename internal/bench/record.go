package bench

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/hpcbench/multibench/internal/collect"
	"github.com/hpcbench/multibench/internal/domain"
	"github.com/hpcbench/multibench/internal/ledger"
	"github.com/hpcbench/multibench/internal/matrix"
	"github.com/hpcbench/multibench/internal/realise"
	"github.com/hpcbench/multibench/internal/sched"
)

// Runner executes benches against its collaborators: the external scheduler,
// a ledger backend, and an output source.
type Runner struct {
	Scheduler  sched.Scheduler
	Ledgers    ledger.Provider
	Reader     collect.OutputReader
	Waiter     sched.Waiter
	OutputRoot string
	// Collectors bounds concurrent output fetches during reporting.
	Collectors int
	Logger     *slog.Logger

	realiser realise.Realiser
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) outputDir(b *Bench) string {
	return filepath.Join(r.OutputRoot, b.Name)
}

// RecordOptions modify one recording pass.
type RecordOptions struct {
	// DryRun renders every submission script to DryRunOut without
	// submitting anything or touching the ledger.
	DryRun    bool
	DryRunOut io.Writer
	// Clobber discards the bench's previous output directory and ledger
	// before recording.
	Clobber bool
}

// Record expands the bench's matrix and submits every (configuration,
// instantiation, rerun) combination. The first rerun of each group is the
// canonical build; later reruns are chained behind its job id and marked
// pre-built. Exactly one ledger row is appended per successful submission.
// It returns the job ids this pass submitted.
func (r *Runner) Record(ctx context.Context, b *Bench, opts RecordOptions) ([]sched.JobID, error) {
	instantiations, err := matrix.Expand(b.Matrix)
	if err != nil {
		return nil, fmt.Errorf("bench %q: %w", b.Name, err)
	}

	outputDir := r.outputDir(b)
	realiser := r.realiser
	realiser.Logger = r.logger()

	// Realize everything up front so configuration errors halt the bench
	// before any job is submitted.
	type plannedGroup struct {
		config Configuration
		inst   domain.Instantiation
		runs   []domain.RealisedRun
	}
	reruns := b.Reruns.CountOrOne()
	planned := make([]plannedGroup, 0, len(b.Configurations)*len(instantiations))
	for _, config := range b.Configurations {
		for _, inst := range instantiations {
			group := plannedGroup{config: config, inst: inst}
			for rerun := 0; rerun < reruns; rerun++ {
				run, err := realiser.Realise(config.Template, config.Name, outputDir, inst, rerun, rerun == 0)
				if err != nil {
					return nil, fmt.Errorf("bench %q configuration %q: %w", b.Name, config.Name, err)
				}
				group.runs = append(group.runs, run)
			}
			planned = append(planned, group)
		}
	}

	if opts.DryRun {
		out := opts.DryRunOut
		if out == nil {
			out = os.Stdout
		}
		for _, group := range planned {
			for _, run := range group.runs {
				fmt.Fprintf(out, "# %s [%s] rerun %d\n%s\n", run.Name, run.Instantiation, run.RerunIndex, run.Script)
			}
		}
		return nil, nil
	}

	store := r.Ledgers.ForBench(b.Name)
	if opts.Clobber {
		if err := store.Reset(ctx); err != nil {
			return nil, fmt.Errorf("bench %q: %w", b.Name, err)
		}
		if err := os.RemoveAll(outputDir); err != nil {
			return nil, fmt.Errorf("bench %q: clobber output directory: %w", b.Name, err)
		}
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("bench %q: create output directory: %w", b.Name, err)
	}

	session := uuid.NewString()
	var submitted []sched.JobID
	for _, group := range planned {
		canonical := group.runs[0]
		firstID, err := r.Scheduler.Submit(ctx, canonical.Script, nil)
		if err != nil {
			r.logger().Error("canonical build submission failed, skipping reruns",
				"bench", b.Name,
				"config", group.config.Name,
				"instantiation", group.inst.Canonical(),
				"error", err)
			continue
		}
		submitted = append(submitted, firstID)
		entry := entryFor(canonical, group.config.Name, group.inst, firstID, session)
		if err := store.Append(ctx, []ledger.Entry{entry}); err != nil {
			return submitted, fmt.Errorf("bench %q: %w", b.Name, err)
		}

		for _, run := range group.runs[1:] {
			id, err := r.Scheduler.Submit(ctx, run.Script, []sched.JobID{firstID})
			if err != nil {
				r.logger().Error("rerun submission failed",
					"bench", b.Name,
					"config", group.config.Name,
					"instantiation", group.inst.Canonical(),
					"rerun", run.RerunIndex,
					"error", err)
				continue
			}
			submitted = append(submitted, id)
			entry := entryFor(run, group.config.Name, group.inst, id, session)
			if err := store.Append(ctx, []ledger.Entry{entry}); err != nil {
				return submitted, fmt.Errorf("bench %q: %w", b.Name, err)
			}
		}
	}
	return submitted, nil
}

func entryFor(run domain.RealisedRun, config string, inst domain.Instantiation, id sched.JobID, session string) ledger.Entry {
	return ledger.Entry{
		JobID:      string(id),
		RerunIndex: run.RerunIndex,
		Config:     config,
		OutputFile: run.TrueOutputFile(string(id)),
		SessionID:  session,
		Inst:       inst,
	}
}

// WaitForQueue blocks until every job this bench has recorded leaves the
// queue, or the waiter gives up. It reports whether the queue drained.
func (r *Runner) WaitForQueue(ctx context.Context, b *Bench) (bool, error) {
	entries, err := r.Ledgers.ForBench(b.Name).List(ctx)
	if err != nil {
		return false, fmt.Errorf("bench %q: %w", b.Name, err)
	}
	ids := make(map[sched.JobID]struct{}, len(entries))
	for _, entry := range entries {
		ids[sched.JobID(entry.JobID)] = struct{}{}
	}
	waiter := r.Waiter
	if waiter.Scheduler == nil {
		waiter.Scheduler = r.Scheduler
	}
	if waiter.Logger == nil {
		waiter.Logger = r.logger()
	}
	return waiter.WaitForDrain(ctx, ids)
}
