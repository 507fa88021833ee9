package plan

import (
	"strings"
	"testing"

	"github.com/hpcbench/multibench/internal/domain"
)

const samplePlan = `
run_configurations:
  cpp-reference:
    sbatch_config:
      nodes: 1
      ntasks: 16
      mem-per-cpu: 3700
    module_loads:
      - GCC/11.3.0
    environment_variables:
      OMP_NUM_THREADS: 16
      OMP_PROC_BIND: close
    directory: ./reference
    build_commands:
      - make clean
      - make all
    run_command: ./test_HPCCG
    args: "50 50 50"
  rust-port:
    directory: ./rust_port
    build_commands:
      - cargo build --release
    run_command: cargo run --release

benches:
  strong-scaling:
    run_configurations:
      - cpp-reference
      - rust-port
    matrix:
      - args: ["50 50 50", "100 100 100"]
      - "directory,run_command":
          - ["./reference", "./test_HPCCG"]
          - ["./rust_port", "cargo run --release"]
    reruns:
      number: 3
      highest_discard: 1
    analysis:
      metrics:
        wall_time: "Time in seconds\\s*=\\s*(\\d+\\.\\d+)"
        mesh: "Mesh dimensions: (.*)"
      derived_metrics:
        speedup: 'other("cpp-reference", "wall_time") / "wall_time"'
        efficiency: '"speedup" / 2'
  disabled-sweep:
    enabled: false
    run_configurations:
      - rust-port
    matrix:
      - args: ["-x 1"]
`

func TestParsePlan(t *testing.T) {
	plan, err := Parse([]byte(samplePlan))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(plan.Configurations) != 2 {
		t.Fatalf("got %d configurations, want 2", len(plan.Configurations))
	}
	ref := plan.Configurations[0]
	if ref.Name != "cpp-reference" {
		t.Fatalf("first configuration = %q, want cpp-reference", ref.Name)
	}
	wantOptions := []domain.KV{
		{Key: "nodes", Value: "1"},
		{Key: "ntasks", Value: "16"},
		{Key: "mem-per-cpu", Value: "3700"},
	}
	if len(ref.Template.SchedulerOptions) != len(wantOptions) {
		t.Fatalf("got %d scheduler options, want %d", len(ref.Template.SchedulerOptions), len(wantOptions))
	}
	for i, want := range wantOptions {
		if ref.Template.SchedulerOptions[i] != want {
			t.Errorf("scheduler option %d = %v, want %v", i, ref.Template.SchedulerOptions[i], want)
		}
	}
	if got := ref.Template.Environment[0]; got != (domain.KV{Key: "OMP_NUM_THREADS", Value: "16"}) {
		t.Errorf("first environment variable = %v", got)
	}
	if ref.Template.RunCommand != "./test_HPCCG" || ref.Template.Args != "50 50 50" {
		t.Errorf("run command = %q args %q", ref.Template.RunCommand, ref.Template.Args)
	}

	if len(plan.Benches) != 2 {
		t.Fatalf("got %d benches, want 2", len(plan.Benches))
	}
	b := plan.Bench("strong-scaling")
	if b == nil {
		t.Fatal("strong-scaling bench missing")
	}
	if !b.Enabled {
		t.Error("strong-scaling not enabled by default")
	}
	if len(b.Configurations) != 2 {
		t.Fatalf("bench has %d configurations, want 2", len(b.Configurations))
	}
	if len(b.Matrix) != 2 {
		t.Fatalf("bench has %d axes, want 2", len(b.Matrix))
	}
	if got := b.Matrix[1].Fields; len(got) != 2 || got[0] != "directory" || got[1] != "run_command" {
		t.Errorf("linked axis fields = %v, want [directory run_command]", got)
	}
	if b.Reruns.Count != 3 || b.Reruns.HighestDiscard != 1 {
		t.Errorf("reruns = %+v", b.Reruns)
	}
	if len(b.Analysis.Metrics) != 2 {
		t.Errorf("got %d metrics, want 2", len(b.Analysis.Metrics))
	}
	if len(b.Analysis.DerivedMetrics) != 2 {
		t.Fatalf("got %d derived metrics, want 2", len(b.Analysis.DerivedMetrics))
	}
	// Declaration order decides evaluation order.
	if b.Analysis.DerivedMetrics[0].Name != "speedup" || b.Analysis.DerivedMetrics[1].Name != "efficiency" {
		t.Errorf("derived metric order = %v, %v",
			b.Analysis.DerivedMetrics[0].Name, b.Analysis.DerivedMetrics[1].Name)
	}
}

func TestParsePlanDisabledBench(t *testing.T) {
	plan, err := Parse([]byte(samplePlan))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b := plan.Bench("disabled-sweep"); b == nil || b.Enabled {
		t.Error("disabled-sweep should parse but stay disabled")
	}
	enabled := plan.EnabledBenches()
	if len(enabled) != 1 || enabled[0].Name != "strong-scaling" {
		t.Errorf("enabled benches = %d", len(enabled))
	}
}

func TestParsePlanErrors(t *testing.T) {
	tests := []struct {
		name string
		plan string
		want string
	}{
		{
			name: "unknown run configuration",
			plan: `
run_configurations:
  base:
    run_command: ./a.out
benches:
  sweep:
    run_configurations: [missing]
    matrix:
      - args: ["-x"]
`,
			want: "unknown run configuration",
		},
		{
			name: "no run configurations",
			plan: `
benches:
  sweep:
    run_configurations: [base]
`,
			want: "no run configurations",
		},
		{
			name: "bench without configurations",
			plan: `
run_configurations:
  base:
    run_command: ./a.out
benches:
  sweep:
    matrix:
      - args: ["-x"]
`,
			want: "names no run configurations",
		},
		{
			name: "empty axis values",
			plan: `
run_configurations:
  base:
    run_command: ./a.out
benches:
  sweep:
    run_configurations: [base]
    matrix:
      - args: []
`,
			want: "has no values",
		},
		{
			name: "linked axis arity mismatch",
			plan: `
run_configurations:
  base:
    run_command: ./a.out
benches:
  sweep:
    run_configurations: [base]
    matrix:
      - "a,b":
          - [1, 2, 3]
`,
			want: "entries",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.plan))
			if err == nil {
				t.Fatal("Parse accepted an invalid plan")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
