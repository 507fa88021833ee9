// Package plan loads the declarative test plan: named run configurations and
// the benches that sweep over them. Mapping order in the plan file is
// significant for scheduler options, environment variables, matrix axes, and
// derived metrics, so those are decoded from the document tree rather than
// through Go maps.
package plan

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hpcbench/multibench/internal/bench"
	"github.com/hpcbench/multibench/internal/domain"
	"github.com/hpcbench/multibench/internal/matrix"
	"github.com/hpcbench/multibench/internal/metrics"
	"github.com/hpcbench/multibench/internal/validate"
)

// Plan is one parsed test plan file.
type Plan struct {
	// Configurations holds every run configuration in declaration order.
	Configurations []bench.Configuration
	// Benches holds every bench in declaration order, including disabled
	// ones.
	Benches []*bench.Bench
}

// Bench returns the named bench, or nil.
func (p *Plan) Bench(name string) *bench.Bench {
	for _, b := range p.Benches {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// EnabledBenches returns the benches not switched off in the plan.
func (p *Plan) EnabledBenches() []*bench.Bench {
	out := make([]*bench.Bench, 0, len(p.Benches))
	for _, b := range p.Benches {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	plan, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return plan, nil
}

type planYAML struct {
	RunConfigurations yaml.Node `yaml:"run_configurations"`
	Benches           yaml.Node `yaml:"benches"`
}

// Parse decodes and validates plan text.
func Parse(data []byte) (*Plan, error) {
	var doc planYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	plan := &Plan{}
	verr := &validate.Error{}

	templates := map[string]domain.Template{}
	for _, entry := range mappingEntries(&doc.RunConfigurations) {
		name := entry.name
		var tmpl templateYAML
		if err := entry.node.Decode(&tmpl); err != nil {
			verr.Add(fmt.Sprintf("run configuration %q: %v", name, err))
			continue
		}
		if _, ok := templates[name]; ok {
			verr.Add(fmt.Sprintf("run configuration %q declared twice", name))
			continue
		}
		template := tmpl.toDomain()
		templates[name] = template
		plan.Configurations = append(plan.Configurations, bench.Configuration{Name: name, Template: template})
	}
	if len(plan.Configurations) == 0 {
		verr.Add("plan declares no run configurations")
	}

	for _, entry := range mappingEntries(&doc.Benches) {
		name := entry.name
		var by benchYAML
		if err := entry.node.Decode(&by); err != nil {
			verr.Add(fmt.Sprintf("bench %q: %v", name, err))
			continue
		}
		if plan.Bench(name) != nil {
			verr.Add(fmt.Sprintf("bench %q declared twice", name))
			continue
		}
		b := by.toDomain(name)
		if len(by.RunConfigurations) == 0 {
			verr.Add(fmt.Sprintf("bench %q names no run configurations", name))
		}
		for _, configName := range by.RunConfigurations {
			template, ok := templates[configName]
			if !ok {
				verr.Add(fmt.Sprintf("bench %q references unknown run configuration %q", name, configName))
				continue
			}
			b.Configurations = append(b.Configurations, bench.Configuration{Name: configName, Template: template})
		}
		if err := b.Matrix.Validate(); err != nil {
			verr.Add(fmt.Sprintf("bench %q: %v", name, err))
		}
		plan.Benches = append(plan.Benches, b)
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return plan, nil
}

type mappingEntry struct {
	name string
	node *yaml.Node
}

// mappingEntries returns a mapping node's entries in document order. A zero
// or null node yields nothing.
func mappingEntries(node *yaml.Node) []mappingEntry {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	entries := make([]mappingEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		entries = append(entries, mappingEntry{name: node.Content[i].Value, node: node.Content[i+1]})
	}
	return entries
}

// kvList decodes a YAML mapping into ordered key/value pairs.
type kvList []domain.KV

func (l *kvList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		value := node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: value for %q is not a scalar", value.Line, node.Content[i].Value)
		}
		*l = append(*l, domain.KV{Key: node.Content[i].Value, Value: value.Value})
	}
	return nil
}

type templateYAML struct {
	SbatchConfig         kvList   `yaml:"sbatch_config"`
	ModuleLoads          []string `yaml:"module_loads"`
	EnvironmentVariables kvList   `yaml:"environment_variables"`
	Directory            string   `yaml:"directory"`
	BuildCommands        []string `yaml:"build_commands"`
	RunCommand           string   `yaml:"run_command"`
	Args                 string   `yaml:"args"`
	PostCommands         []string `yaml:"post_commands"`
}

func (t templateYAML) toDomain() domain.Template {
	return domain.Template{
		SchedulerOptions: []domain.KV(t.SbatchConfig),
		ModuleLoads:      t.ModuleLoads,
		Environment:      []domain.KV(t.EnvironmentVariables),
		Directory:        t.Directory,
		BuildCommands:    t.BuildCommands,
		RunCommand:       t.RunCommand,
		Args:             t.Args,
		PostCommands:     t.PostCommands,
	}
}

// matrixYAML decodes the matrix as a sequence of single-entry mappings, one
// axis each, so axis order survives. A linked axis names its fields either as
// a comma-separated scalar key or as a flow-sequence key.
type matrixYAML matrix.Spec

func (m *matrixYAML) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: matrix must be a list of axes", node.Line)
	}
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return fmt.Errorf("line %d: each matrix axis must be a single-entry mapping", item.Line)
		}
		fields, err := axisFields(item.Content[0])
		if err != nil {
			return err
		}
		var values []any
		if err := item.Content[1].Decode(&values); err != nil {
			return fmt.Errorf("axis %q: %w", strings.Join(fields, ","), err)
		}
		*m = append(*m, matrix.Axis{Fields: fields, Values: values})
	}
	return nil
}

func axisFields(key *yaml.Node) ([]string, error) {
	switch key.Kind {
	case yaml.ScalarNode:
		parts := strings.Split(key.Value, ",")
		fields := make([]string, 0, len(parts))
		for _, part := range parts {
			fields = append(fields, strings.TrimSpace(part))
		}
		return fields, nil
	case yaml.SequenceNode:
		fields := make([]string, 0, len(key.Content))
		for _, item := range key.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: axis field names must be scalars", item.Line)
			}
			fields = append(fields, item.Value)
		}
		return fields, nil
	default:
		return nil, fmt.Errorf("line %d: axis key must be a name or a list of names", key.Line)
	}
}

// derivedList decodes derived metrics as an ordered name-to-formula mapping;
// order fixes evaluation order, which lets later formulas build on earlier
// ones.
type derivedList []metrics.DerivedMetric

func (l *derivedList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: derived_metrics must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		value := node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: formula for %q is not a scalar", value.Line, node.Content[i].Value)
		}
		*l = append(*l, metrics.DerivedMetric{Name: node.Content[i].Value, Formula: value.Value})
	}
	return nil
}

type analysisYAML struct {
	Metrics        map[string]string `yaml:"metrics"`
	DerivedMetrics derivedList       `yaml:"derived_metrics"`
}

type rerunsYAML struct {
	Number         int      `yaml:"number"`
	HighestDiscard int      `yaml:"highest_discard"`
	LowestDiscard  int      `yaml:"lowest_discard"`
	Unaggregatable []string `yaml:"unaggregatable"`
}

type benchYAML struct {
	RunConfigurations []string     `yaml:"run_configurations"`
	Matrix            matrixYAML   `yaml:"matrix"`
	Analysis          analysisYAML `yaml:"analysis"`
	Reruns            rerunsYAML   `yaml:"reruns"`
	Enabled           *bool        `yaml:"enabled"`
}

func (b benchYAML) toDomain(name string) *bench.Bench {
	enabled := true
	if b.Enabled != nil {
		enabled = *b.Enabled
	}
	return &bench.Bench{
		Name:   name,
		Matrix: matrix.Spec(b.Matrix),
		Reruns: bench.RerunSettings{
			Count:          b.Reruns.Number,
			HighestDiscard: b.Reruns.HighestDiscard,
			LowestDiscard:  b.Reruns.LowestDiscard,
			Unaggregatable: b.Reruns.Unaggregatable,
		},
		Analysis: bench.Analysis{
			Metrics:        b.Analysis.Metrics,
			DerivedMetrics: []metrics.DerivedMetric(b.Analysis.DerivedMetrics),
		},
		Enabled: enabled,
	}
}
