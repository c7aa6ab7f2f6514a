package ir

import (
	"encoding/json"
	"fmt"
)

// SourceFormat identifies the rule source syntax a rule was compiled from.
type SourceFormat string

const (
	FormatInsimul  SourceFormat = "insimul"
	FormatEnsemble SourceFormat = "ensemble"
	FormatKismet   SourceFormat = "kismet"
	FormatTott     SourceFormat = "tott"
)

// ValidFormats defines the accepted source formats.
var ValidFormats = map[SourceFormat]bool{
	FormatInsimul:  true,
	FormatEnsemble: true,
	FormatKismet:   true,
	FormatTott:     true,
}

// ParseFormat converts a format tag string into a SourceFormat.
func ParseFormat(s string) (SourceFormat, error) {
	f := SourceFormat(s)
	if !ValidFormats[f] {
		return "", fmt.Errorf("unknown source format %q (want insimul, ensemble, kismet, or tott)", s)
	}
	return f, nil
}

// RuleType categorizes a rule's role in the simulation.
type RuleType string

const (
	RuleTrigger  RuleType = "trigger"
	RuleVolition RuleType = "volition"
	RuleTrait    RuleType = "trait"
	RuleDefault  RuleType = "default"
	RulePattern  RuleType = "pattern"
)

// ValidRuleTypes defines the accepted rule types. Source formats that carry
// their own type vocabulary (tott's "social", for example) are mapped onto
// this set by the compiler; anything unmappable becomes RuleDefault.
var ValidRuleTypes = map[RuleType]bool{
	RuleTrigger:  true,
	RuleVolition: true,
	RuleTrait:    true,
	RuleDefault:  true,
	RulePattern:  true,
}

// Rule defaults applied by the compiler when the source omits them.
const (
	DefaultPriority   = 5
	DefaultLikelihood = 1.0
)

// Rule is the canonical compiled form of a simulation rule.
//
// A Rule is immutable once compiled. Conditions and effects are evaluated in
// declaration order; all conditions must hold (conjunction) for the rule to
// apply. Priority orders rules within a step (higher fires first, ties broken
// by registration order), and Likelihood gates whether a matched rule
// actually fires.
type Rule struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         RuleType     `json:"type"`
	Priority     int          `json:"priority"`
	Likelihood   float64      `json:"likelihood"`
	Conditions   []Condition  `json:"conditions"`
	Effects      []Effect     `json:"effects"`
	Tags         []string     `json:"tags,omitempty"`
	Dependencies []string     `json:"dependencies,omitempty"`
	IsActive     bool         `json:"is_active"`
	Format       SourceFormat `json:"format"`
}

// Validate checks rule invariants. Called by the compiler before a rule is
// returned; a rule failing validation becomes a per-rule compile error, not
// a batch failure.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if !ValidRuleTypes[r.Type] {
		return fmt.Errorf("rule %s: invalid rule type %q", r.Name, r.Type)
	}
	if r.Likelihood < 0 || r.Likelihood > 1 {
		return fmt.Errorf("rule %s: likelihood %v outside [0,1]", r.Name, r.Likelihood)
	}
	if !ValidFormats[r.Format] {
		return fmt.Errorf("rule %s: invalid source format %q", r.Name, r.Format)
	}
	for i := range r.Conditions {
		if err := r.Conditions[i].Validate(); err != nil {
			return fmt.Errorf("rule %s: condition %d: %w", r.Name, i, err)
		}
	}
	for i := range r.Effects {
		if err := r.Effects[i].Validate(); err != nil {
			return fmt.Errorf("rule %s: effect %d: %w", r.Name, i, err)
		}
	}
	return nil
}

// ConditionType discriminates Condition variants.
type ConditionType string

const (
	ConditionPredicate ConditionType = "predicate"
	ConditionLocation  ConditionType = "location"
	ConditionZone      ConditionType = "zone"
	ConditionAction    ConditionType = "action"
	ConditionEnergy    ConditionType = "energy"
	ConditionProximity ConditionType = "proximity"
	ConditionTag       ConditionType = "tag"
	ConditionUnknown   ConditionType = "unknown"
)

// KnownConditionType reports whether t is a recognized condition type
// (including the explicit unknown variant).
func KnownConditionType(t ConditionType) bool {
	return knownConditionTypes[t]
}

var knownConditionTypes = map[ConditionType]bool{
	ConditionPredicate: true,
	ConditionLocation:  true,
	ConditionZone:      true,
	ConditionAction:    true,
	ConditionEnergy:    true,
	ConditionProximity: true,
	ConditionTag:       true,
	ConditionUnknown:   true,
}

// ValidOperators defines the comparison operators usable in conditions.
var ValidOperators = map[string]bool{
	">": true, ">=": true, "<": true, "<=": true, "==": true,
}

// Condition is one clause of a rule's conjunction.
//
// The variant is discriminated by Type. Arguments may contain unification
// variables (tokens prefixed "?") which the matcher resolves consistently
// across the whole condition list. Unknown condition types evaluate to pass
// (engine policy, see the matcher); Raw preserves their original payload.
type Condition struct {
	Type     ConditionType `json:"type"`
	Name     string        `json:"name,omitempty"`     // predicate name
	Operator string        `json:"operator,omitempty"` // numeric comparison operator
	Value    Value         `json:"value,omitempty"`
	Args     []string      `json:"args,omitempty"` // positional args, may include ?vars
	Raw      Map           `json:"raw,omitempty"`  // preserved payload for unknown types
}

// Validate checks condition invariants.
func (c *Condition) Validate() error {
	if !knownConditionTypes[c.Type] {
		return fmt.Errorf("invalid condition type %q", c.Type)
	}
	if c.Operator != "" && !ValidOperators[c.Operator] {
		return fmt.Errorf("invalid operator %q", c.Operator)
	}
	return nil
}

// EffectType discriminates Effect variants.
type EffectType string

const (
	EffectModifyAttribute    EffectType = "modify_attribute"
	EffectRelationshipChange EffectType = "relationship_change"
	EffectGenerateText       EffectType = "generate_text"
	EffectRestrict           EffectType = "restrict"
	EffectUnknown            EffectType = "unknown"
)

// KnownEffectType reports whether t is a recognized effect type (including
// the explicit unknown variant).
func KnownEffectType(t EffectType) bool {
	return knownEffectTypes[t]
}

var knownEffectTypes = map[EffectType]bool{
	EffectModifyAttribute:    true,
	EffectRelationshipChange: true,
	EffectGenerateText:       true,
	EffectRestrict:           true,
	EffectUnknown:            true,
}

// Effect is one action applied when a rule fires.
//
// Effects execute strictly in declaration order. Target may be an entity ID
// or a unification variable resolved from the matcher's bindings. For
// generate_text, either Grammar names a registered grammar (expansion starts
// at "origin") or Template holds an inline template; Variables seed the
// expansion context. Unknown effect types are recorded as failed without
// aborting the rule; Raw preserves their payload.
type Effect struct {
	Type      EffectType        `json:"type"`
	Target    string            `json:"target,omitempty"`
	Attribute string            `json:"attribute,omitempty"`
	Value     Value             `json:"value,omitempty"`
	Grammar   string            `json:"grammar,omitempty"`
	Template  string            `json:"template,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
	Other     string            `json:"other,omitempty"` // relationship_change counterpart
	Delta     float64           `json:"delta,omitempty"` // relationship_change amount
	Action    string            `json:"action,omitempty"` // restrict target action
	Raw       Map               `json:"raw,omitempty"`
}

// Validate checks effect invariants.
func (e *Effect) Validate() error {
	if !knownEffectTypes[e.Type] {
		return fmt.Errorf("invalid effect type %q", e.Type)
	}
	switch e.Type {
	case EffectModifyAttribute:
		if e.Attribute == "" {
			return fmt.Errorf("modify_attribute requires attribute")
		}
	case EffectGenerateText:
		if e.Grammar == "" && e.Template == "" {
			return fmt.Errorf("generate_text requires grammar or template")
		}
	}
	return nil
}

// conditionJSON mirrors Condition with a raw value field for two-phase decode.
type conditionJSON struct {
	Type     ConditionType   `json:"type"`
	Name     string          `json:"name,omitempty"`
	Operator string          `json:"operator,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Args     []string        `json:"args,omitempty"`
	Raw      Map             `json:"raw,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler for Condition. Needed because
// Value is an interface and cannot be decoded directly.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var aux conditionJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Type = aux.Type
	c.Name = aux.Name
	c.Operator = aux.Operator
	c.Args = aux.Args
	c.Raw = aux.Raw
	if len(aux.Value) > 0 {
		val, err := UnmarshalValue(aux.Value)
		if err != nil {
			return fmt.Errorf("condition value: %w", err)
		}
		c.Value = val
	}
	return nil
}

// effectJSON mirrors Effect with a raw value field for two-phase decode.
type effectJSON struct {
	Type      EffectType        `json:"type"`
	Target    string            `json:"target,omitempty"`
	Attribute string            `json:"attribute,omitempty"`
	Value     json.RawMessage   `json:"value,omitempty"`
	Grammar   string            `json:"grammar,omitempty"`
	Template  string            `json:"template,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
	Other     string            `json:"other,omitempty"`
	Delta     float64           `json:"delta,omitempty"`
	Action    string            `json:"action,omitempty"`
	Raw       Map               `json:"raw,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler for Effect.
func (e *Effect) UnmarshalJSON(data []byte) error {
	var aux effectJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Type = aux.Type
	e.Target = aux.Target
	e.Attribute = aux.Attribute
	e.Grammar = aux.Grammar
	e.Template = aux.Template
	e.Variables = aux.Variables
	e.Other = aux.Other
	e.Delta = aux.Delta
	e.Action = aux.Action
	e.Raw = aux.Raw
	if len(aux.Value) > 0 {
		val, err := UnmarshalValue(aux.Value)
		if err != nil {
			return fmt.Errorf("effect value: %w", err)
		}
		e.Value = val
	}
	return nil
}

// MarshalRules serializes a compiled rule list to JSON. The output is
// deterministic (struct field order plus sorted map keys), so compiling,
// serializing, and recompiling yields structurally equal rule lists.
func MarshalRules(rules []Rule) ([]byte, error) {
	return json.MarshalIndent(rules, "", "  ")
}

// UnmarshalRules deserializes a rule list produced by MarshalRules.
func UnmarshalRules(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return nil, fmt.Errorf("unmarshal rules: %w", err)
		}
	}
	return rules, nil
}

// IsVariable reports whether a token is a unification variable ("?x").
func IsVariable(token string) bool {
	return len(token) > 1 && token[0] == '?'
}
