package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fabulist/fabula/internal/ir"
	"github.com/fabulist/fabula/internal/world"
)

// Scenario defines a conformance test scenario: a self-contained world, a
// rule set in any supported syntax, a fixed number of steps, and assertions
// over the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario; it is also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// World is the world ID for the run. Defaults to "w-scenario".
	World string `yaml:"world,omitempty"`

	// BaseRules are compiled and registered before Rules, mirroring the
	// base-then-world schedule order of a stored world.
	BaseRules []RuleSource `yaml:"base_rules,omitempty"`

	// Rules is the world's rule set, as inline source text per syntax.
	Rules []RuleSource `yaml:"rules"`

	// Characters seeds the world's entities in registration order.
	Characters []CharacterSeed `yaml:"characters"`

	// Zones seeds the settlement zones.
	Zones []world.Zone `yaml:"zones,omitempty"`

	// Grammars registers symbol tables by grammar name.
	Grammars map[string]map[string][]string `yaml:"grammars,omitempty"`

	// Steps is the number of steps to run.
	Steps int `yaml:"steps"`

	// RNGSeed seeds the deterministic RNG. Defaults to 1.
	RNGSeed int64 `yaml:"rng_seed,omitempty"`

	// Context is the step context shared by every step.
	Context ContextSeed `yaml:"context,omitempty"`

	// Assertions validate the trace and final state.
	// Supported types: fired, not_fired, fired_order, attribute,
	// narrative_contains.
	Assertions []Assertion `yaml:"assertions"`
}

// RuleSource is one inline rule batch: source text plus its syntax.
type RuleSource struct {
	Syntax string `yaml:"syntax"`
	Source string `yaml:"source"`
}

// CharacterSeed seeds one entity. Attribute values are converted through
// ir.FromAny.
type CharacterSeed struct {
	ID         string         `yaml:"id"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
	Alive      *bool          `yaml:"alive,omitempty"`
}

// ContextSeed mirrors engine.StepContext in YAML form. InSettlement is
// derived from the zones and position, never declared.
type ContextSeed struct {
	X       float64  `yaml:"x,omitempty"`
	Y       float64  `yaml:"y,omitempty"`
	Energy  *float64 `yaml:"energy,omitempty"`
	Action  string   `yaml:"action,omitempty"`
	NearNPC bool     `yaml:"near_npc,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "fired": the rule appears in the trace
	// - "not_fired": the rule never appears in the trace
	// - "fired_order": the rules appear in this relative order
	// - "attribute": an entity attribute equals a value in the final state
	// - "narrative_contains": some firing's narrative contains the text
	Type string `yaml:"type"`

	// Rule is the rule ID (used by fired, not_fired).
	Rule string `yaml:"rule,omitempty"`

	// Rules is the expected relative firing order (used by fired_order).
	Rules []string `yaml:"rules,omitempty"`

	// Entity and Attribute locate the value to check (used by attribute).
	Entity    string `yaml:"entity,omitempty"`
	Attribute string `yaml:"attribute,omitempty"`

	// Equals is the expected attribute value (used by attribute).
	Equals any `yaml:"equals,omitempty"`

	// Text is the expected narrative substring (used by narrative_contains).
	Text string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertFired             = "fired"
	AssertNotFired          = "not_fired"
	AssertFiredOrder        = "fired_order"
	AssertAttribute         = "attribute"
	AssertNarrativeContains = "narrative_contains"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos ("assertion:" vs "assertions:") fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

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
	if len(s.Rules) == 0 && len(s.BaseRules) == 0 {
		return fmt.Errorf("rules list is required and must be non-empty")
	}
	if s.Steps <= 0 {
		return fmt.Errorf("steps must be positive")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, rs := range append(append([]RuleSource{}, s.BaseRules...), s.Rules...) {
		if _, err := ir.ParseFormat(rs.Syntax); err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}
		if rs.Source == "" {
			return fmt.Errorf("rules[%d]: source is required", i)
		}
	}

	for i, c := range s.Characters {
		if c.ID == "" {
			return fmt.Errorf("characters[%d]: id is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertFired, AssertNotFired:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for %s", index, a.Type)
		}
	case AssertFiredOrder:
		if len(a.Rules) < 2 {
			return fmt.Errorf("assertions[%d]: fired_order needs at least two rules", index)
		}
	case AssertAttribute:
		if a.Entity == "" || a.Attribute == "" {
			return fmt.Errorf("assertions[%d]: entity and attribute are required for attribute", index)
		}
	case AssertNarrativeContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for narrative_contains", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
