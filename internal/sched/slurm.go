package sched

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"regexp"
	"strings"
)

const slurmUnqueuedSubstring = "Invalid job id specified"

var submitOutputRegex = regexp.MustCompile(`Submitted batch job (\d+)`)

// Slurm drives a local Slurm installation through sbatch and squeue.
type Slurm struct {
	// ScriptDir holds transient submission scripts; empty means the
	// system temp directory.
	ScriptDir string
	// User scopes queue queries; empty means the current user.
	User string
}

func (s *Slurm) Submit(ctx context.Context, script string, dependsOn []JobID) (JobID, error) {
	file, err := os.CreateTemp(s.ScriptDir, "multibench-*.sbatch")
	if err != nil {
		return "", fmt.Errorf("write submission script: %w", err)
	}
	defer func() { _ = os.Remove(file.Name()) }()
	if _, err := file.WriteString(script); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("write submission script: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("write submission script: %w", err)
	}

	args := make([]string, 0, 2)
	if arg := dependencyArg(dependsOn); arg != "" {
		args = append(args, arg)
	}
	args = append(args, file.Name())

	out, err := exec.CommandContext(ctx, "sbatch", args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("sbatch: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	id, err := parseSubmitOutput(string(out))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Slurm) IsQueued(ctx context.Context, id JobID) (bool, error) {
	out, err := exec.CommandContext(ctx, "squeue", "-h", "-j", string(id), "-o", "%A").CombinedOutput()
	if strings.Contains(string(out), slurmUnqueuedSubstring) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("squeue: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return strings.Contains(string(out), string(id)), nil
}

func (s *Slurm) QueuedIDs(ctx context.Context) (map[JobID]struct{}, error) {
	username := s.User
	if username == "" {
		current, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("resolve current user: %w", err)
		}
		username = current.Username
	}
	out, err := exec.CommandContext(ctx, "squeue", "-u", username, "-h", "-o", "%A").Output()
	if err != nil {
		return nil, fmt.Errorf("squeue: %w", err)
	}
	ids := make(map[JobID]struct{})
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ids[JobID(line)] = struct{}{}
	}
	return ids, nil
}

func dependencyArg(dependsOn []JobID) string {
	if len(dependsOn) == 0 {
		return ""
	}
	parts := make([]string, 0, len(dependsOn))
	for _, id := range dependsOn {
		parts = append(parts, string(id))
	}
	return "--dependency=afterok:" + strings.Join(parts, ":")
}

func parseSubmitOutput(out string) (JobID, error) {
	match := submitOutputRegex.FindStringSubmatch(out)
	if match == nil {
		return "", fmt.Errorf("unable to parse sbatch output: %q", strings.TrimSpace(out))
	}
	return JobID(match[1]), nil
}
