package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/domainreg/internal/registry"
)

// Scenario is one conformance test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backend selects "memory" (default) or "sqlite".
	Backend string `yaml:"backend,omitempty"`

	// FlowToken prefixes the per-operation flow tokens: <prefix>-1, <prefix>-2, ...
	// Defaults to "test-flow".
	FlowToken string `yaml:"flow_token,omitempty"`

	// Flow is the sequence of operations to run.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state and event log.
	Assertions []Assertion `yaml:"assertions"`
}

// Operation names.
const (
	OpInitialize = "initialize"
	OpCreate     = "create"
	OpUpdate     = "update"
)

// FlowStep is a single operation.
type FlowStep struct {
	// Op is initialize, create or update.
	Op string `yaml:"op"`

	// Owner is the owner alias for create.
	Owner string `yaml:"owner,omitempty"`

	// Signer is the alias whose key signs a create. Defaults to Owner.
	// Set it to another alias to exercise signature rejection.
	Signer string `yaml:"signer,omitempty"`

	// Name is the domain name for create.
	Name string `yaml:"name,omitempty"`

	// Type is the domain type for create and update.
	Type uint8 `yaml:"type,omitempty"`

	// ID is the record id for update.
	ID uint64 `yaml:"id,omitempty"`

	// Expect describes the outcome. Nil means the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected error code, e.g. RECORD_NOT_FOUND.
	// Empty means success.
	Error string `yaml:"error,omitempty"`

	// ID is the expected allocated id for a successful create.
	ID *uint64 `yaml:"id,omitempty"`
}

// Assertion validates the final state or the event log.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind filters event_count to one event kind.
	Kind string `yaml:"kind,omitempty"`

	// Kinds is the exact sequence of event kinds (event_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Count is the expected number of events (event_count).
	Count int `yaml:"count,omitempty"`

	// ID is the record id (record, record_absent).
	ID uint64 `yaml:"id,omitempty"`

	// Expect holds expected record fields: owner (alias), name, dom_type.
	// Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// NextID is the expected counter value (counter).
	NextID *uint64 `yaml:"next_id,omitempty"`
}

// Assertion types.
const (
	AssertEventCount   = "event_count"
	AssertEventOrder   = "event_order"
	AssertRecord       = "record"
	AssertRecordAbsent = "record_absent"
	AssertCounter      = "counter"
	AssertReplay       = "replay"
)

var errorCodes = []string{
	string(registry.CodeAlreadyInitialized),
	string(registry.CodeNotInitialized),
	string(registry.CodeDuplicateRecord),
	string(registry.CodeRecordNotFound),
	string(registry.CodeInvalidName),
	string(registry.CodeUnauthorized),
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
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

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string)
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(path), s.Name, prev)
		}
		seen[s.Name] = filepath.Base(path)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch s.Backend {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("backend must be memory or sqlite, got %q", s.Backend)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *FlowStep) error {
	switch step.Op {
	case OpInitialize, OpUpdate:
	case OpCreate:
		if step.Owner == "" {
			return fmt.Errorf("flow[%d]: owner is required for create", index)
		}
	case "":
		return fmt.Errorf("flow[%d]: op is required", index)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", index, step.Op)
	}

	if step.Expect != nil {
		if step.Expect.Error != "" && !slices.Contains(errorCodes, step.Expect.Error) {
			return fmt.Errorf("flow[%d].expect: unknown error code %q", index, step.Expect.Error)
		}
		if step.Expect.ID != nil && (step.Op != OpCreate || step.Expect.Error != "") {
			return fmt.Errorf("flow[%d].expect: id only applies to a successful create", index)
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertEventCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertEventOrder:
		if a.Kinds == nil {
			return fmt.Errorf("assertions[%d]: kinds list is required for event_order", index)
		}
	case AssertRecord:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for record", index)
		}
	case AssertCounter:
		if a.NextID == nil {
			return fmt.Errorf("assertions[%d]: next_id is required for counter", index)
		}
	case AssertRecordAbsent, AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
