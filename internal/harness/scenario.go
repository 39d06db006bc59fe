package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ingestlab/internal/analyze"
	"github.com/roach88/ingestlab/internal/compiler"
)

// Scenario defines an ingestion test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is an inline rule document. Exactly one of Rules and RulesFile
	// must be set.
	Rules yaml.Node `yaml:"rules,omitempty"`

	// RulesFile is a rule file path (.json, .yaml, .yml or .cue), relative
	// to the scenario file.
	RulesFile string `yaml:"rules_file,omitempty"`

	// Documents maps document ids to raw HTML.
	Documents map[string]string `yaml:"documents"`

	// Workers bounds concurrent extraction. Zero means one.
	Workers int `yaml:"workers,omitempty"`

	// QualityGates are caller gates, merged over the document's own.
	QualityGates map[string]any `yaml:"quality_gates,omitempty"`

	// LiveSchema lists tables (column -> SQL type) created in the store
	// before planning.
	LiveSchema map[string]map[string]string `yaml:"live_schema,omitempty"`

	// Apply runs the planned DDL, then simulate and apply.
	Apply bool `yaml:"apply,omitempty"`

	// Assertions check individual extracted values.
	Assertions []analyze.AssertionSpec `yaml:"assertions,omitempty"`

	// Expect holds stage-level expectations. Unset fields are not checked.
	Expect Expectations `yaml:"expect"`
}

// Expectations are the stage outcomes a scenario checks.
type Expectations struct {
	Aggregates       map[string]AggregateExpect `yaml:"aggregates,omitempty"`
	GatesPassed      *bool                      `yaml:"gates_passed,omitempty"`
	ConstraintIssues *int                       `yaml:"constraint_issues,omitempty"`

	// PlanActions lists "<kind> <table>[.<column>]" in plan order.
	PlanActions []string `yaml:"plan_actions,omitempty"`

	SimulationPassed *bool `yaml:"simulation_passed,omitempty"`
	AuditRows        *int  `yaml:"audit_rows,omitempty"`
}

// AggregateExpect is the expected dedup outcome for one resource.
type AggregateExpect struct {
	Total      int `yaml:"total"`
	Unique     int `yaml:"unique"`
	Duplicates int `yaml:"duplicates"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative rules_file is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.RulesFile != "" && !filepath.IsAbs(scenario.RulesFile) {
		scenario.RulesFile = filepath.Join(filepath.Dir(path), scenario.RulesFile)
	}
	if scenario.RulesFile != "" {
		if _, err := os.Stat(scenario.RulesFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: rules file not found: %s", scenario.RulesFile)
		}
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	inline := !s.Rules.IsZero()
	switch {
	case inline && s.RulesFile != "":
		return fmt.Errorf("rules and rules_file are mutually exclusive")
	case !inline && s.RulesFile == "":
		return fmt.Errorf("rules or rules_file is required")
	case inline && s.Rules.Kind != yaml.MappingNode:
		return fmt.Errorf("rules must be a mapping")
	}

	if len(s.Documents) == 0 {
		return fmt.Errorf("documents map is required and must be non-empty")
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", s.Workers)
	}

	for i, a := range s.Assertions {
		if _, err := a.Normalize(); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	for res, agg := range s.Expect.Aggregates {
		if agg.Total < 0 || agg.Unique < 0 || agg.Duplicates < 0 {
			return fmt.Errorf("expect.aggregates.%s: counts must be non-negative", res)
		}
	}
	if s.Expect.AuditRows != nil && !s.Apply {
		return fmt.Errorf("expect.audit_rows requires apply: true")
	}
	if s.Expect.SimulationPassed != nil && !s.Apply {
		return fmt.Errorf("expect.simulation_passed requires apply: true")
	}
	return nil
}

// loadRules builds the scenario's rule document and returns it with the raw
// payload used for hashing.
func (s *Scenario) loadRules() (*compiler.Loaded, error) {
	if s.RulesFile != "" {
		return compiler.LoadFile(s.RulesFile)
	}
	data, err := yaml.Marshal(&s.Rules)
	if err != nil {
		return nil, fmt.Errorf("encode inline rules: %w", err)
	}
	raw, err := compiler.Decode(data, compiler.FormatYAML, s.Name+".rules.yaml")
	if err != nil {
		return nil, err
	}
	doc, err := compiler.Build(raw)
	if err != nil {
		return nil, err
	}
	return &compiler.Loaded{Path: s.Name, Doc: doc, Raw: raw}, nil
}
