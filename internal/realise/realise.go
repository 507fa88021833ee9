// Package realise binds run configuration templates to matrix instantiations,
// producing deterministic batch submission scripts.
package realise

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hpcbench/multibench/internal/domain"
	"github.com/hpcbench/multibench/internal/validate"
)

const (
	shellShebang = "#!/bin/sh\n"
	timeCommand  = "time -p "
)

// Realiser turns (template, instantiation, rerun index) triples into concrete
// RealisedRuns. It is stateless apart from its logger.
type Realiser struct {
	Logger *slog.Logger
}

func (r Realiser) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Realise applies the instantiation's overrides onto the template and renders
// the submission script. The same inputs always yield byte-identical script
// text. canonical marks the first run of a rerun group, the only one that
// actually builds; later runs are annotated as pre-built.
func (r Realiser) Realise(
	template domain.Template,
	name string,
	outputDir string,
	instantiation domain.Instantiation,
	rerunIndex int,
	canonical bool,
) (domain.RealisedRun, error) {
	applied, err := applyOverrides(template, instantiation)
	if err != nil {
		return domain.RealisedRun{}, err
	}

	run := domain.RealisedRun{
		Name:           name,
		Instantiation:  instantiation,
		OutputDir:      outputDir,
		RerunIndex:     rerunIndex,
		CanonicalBuild: canonical,
		OutputFile:     outputFileName(name, instantiation, rerunIndex),
	}
	run.Script = r.renderScript(applied, run)
	return run, nil
}

// outputFileName is unique per (name, instantiation, rerun) and keeps the
// scheduler's job-id placeholder as its final segment.
func outputFileName(name string, instantiation domain.Instantiation, rerunIndex int) string {
	segments := []string{name}
	if suffix := instantiation.Suffix(); suffix != "" {
		segments = append(segments, suffix)
	}
	segments = append(segments, fmt.Sprintf("r%d", rerunIndex), domain.JobIDPlaceholder+".out")
	return strings.Join(segments, "__")
}

func (r Realiser) renderScript(template domain.Template, run domain.RealisedRun) string {
	var b strings.Builder
	b.WriteString(shellShebang)

	for _, option := range template.SchedulerOptions {
		if option.Key == "output" {
			// The computed output file always wins over a configured one.
			r.logger().Warn("scheduler output option overridden by computed output file",
				"config", run.Name)
			continue
		}
		fmt.Fprintf(&b, "#SBATCH --%s=%s\n", option.Key, option.Value)
	}
	fmt.Fprintf(&b, "#SBATCH --output=%s\n", filepath.Join(run.OutputDir, run.OutputFile))

	b.WriteString("\necho '===== CONFIGURATION ====='\n")
	if len(template.ModuleLoads) > 0 {
		b.WriteString("echo '=== MODULE LOADS ==='\n")
		b.WriteString("module purge\n")
		fmt.Fprintf(&b, "module load %s\n", strings.Join(template.ModuleLoads, " "))
	}
	if len(template.Environment) > 0 {
		b.WriteString("echo '=== ENVIRONMENT VARIABLES ==='\n")
		for _, kv := range template.Environment {
			fmt.Fprintf(&b, "export %s=%s\n", kv.Key, kv.Value)
			fmt.Fprintf(&b, "echo '%s=%s'\n", kv.Key, kv.Value)
		}
	}
	b.WriteString("echo '=== CPU ARCHITECTURE ==='\n")
	b.WriteString("lscpu\n")
	b.WriteString("echo '=== SLURM CONFIG ==='\n")
	b.WriteString("scontrol show job $SLURM_JOB_ID\n")
	if run.Instantiation.Len() > 0 {
		b.WriteString("echo '=== RUN INSTANTIATION ==='\n")
		fmt.Fprintf(&b, "echo '%s'\n", run.Instantiation.Canonical())
	}
	b.WriteString("echo\n")

	b.WriteString("\necho '===== BUILD ====='\n")
	if template.Directory != "" {
		fmt.Fprintf(&b, "cd %s\n", template.Directory)
	}
	if run.CanonicalBuild {
		for _, command := range template.BuildCommands {
			b.WriteString(command)
			b.WriteString("\n")
		}
	} else {
		b.WriteString("echo 'run configuration was pre-built'\n")
	}
	b.WriteString("echo\n")

	b.WriteString("\necho '===== RUN ====='\n")
	b.WriteString(timeCommand)
	b.WriteString(template.RunCommand)
	if template.Args != "" {
		b.WriteString(" ")
		b.WriteString(template.Args)
	}
	b.WriteString("\n")

	if len(template.PostCommands) > 0 {
		b.WriteString("\necho '===== POST RUN ====='\n")
		for _, command := range template.PostCommands {
			b.WriteString(command)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// applyOverrides applies each instantiation field onto a copy of the
// template. Only the enumerated structural fields may be overridden; an
// unknown field name is a configuration error, never a silent no-op.
func applyOverrides(template domain.Template, instantiation domain.Instantiation) (domain.Template, error) {
	applied := template.Clone()
	verr := &validate.Error{}
	for _, field := range instantiation.Fields() {
		if err := applyField(&applied, field); err != nil {
			verr.Add(err.Error())
		}
	}
	if err := verr.OrNil(); err != nil {
		return domain.Template{}, err
	}
	return applied, nil
}

func applyField(template *domain.Template, field domain.Field) error {
	switch field.Name {
	case "sbatch_config":
		options, err := toKVs(field.Value)
		if err != nil {
			return fmt.Errorf("field %q: %w", field.Name, err)
		}
		template.SchedulerOptions = options
	case "module_loads":
		values, err := toStrings(field.Value)
		if err != nil {
			return fmt.Errorf("field %q: %w", field.Name, err)
		}
		template.ModuleLoads = values
	case "environment_variables":
		values, err := toKVs(field.Value)
		if err != nil {
			return fmt.Errorf("field %q: %w", field.Name, err)
		}
		template.Environment = values
	case "directory":
		template.Directory = domain.FormatValue(field.Value)
	case "build_commands":
		values, err := toStrings(field.Value)
		if err != nil {
			return fmt.Errorf("field %q: %w", field.Name, err)
		}
		template.BuildCommands = values
	case "run_command":
		template.RunCommand = domain.FormatValue(field.Value)
	case "args":
		template.Args = domain.FormatValue(field.Value)
	case "post_commands":
		values, err := toStrings(field.Value)
		if err != nil {
			return fmt.Errorf("field %q: %w", field.Name, err)
		}
		template.PostCommands = values
	default:
		return fmt.Errorf("unknown instantiation field %q", field.Name)
	}
	return nil
}

func toStrings(value any) ([]string, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", value)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, domain.FormatValue(item))
	}
	return out, nil
}

// toKVs converts a mapping override. Map keys are sorted so a wholesale
// override still renders deterministically.
func toKVs(value any) ([]domain.KV, error) {
	mapping, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a mapping, got %T", value)
	}
	keys := make([]string, 0, len(mapping))
	for key := range mapping {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]domain.KV, 0, len(keys))
	for _, key := range keys {
		out = append(out, domain.KV{Key: key, Value: domain.FormatValue(mapping[key])})
	}
	return out, nil
}
