package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fabulist/fabula/internal/ir"
)

// ensembleSchema validates the document shape only. Per-rule semantic
// problems (bad likelihood, unknown effect fields) are reported as per-rule
// CompileErrors so sibling rules still compile.
const ensembleSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["rules"],
  "properties": {
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string"},
          "priority": {"type": "integer"},
          "likelihood": {"type": "number"},
          "conditions": {"type": "array", "items": {"type": "object"}},
          "effects": {"type": "array", "items": {"type": "object"}},
          "tags": {"type": "array", "items": {"type": "string"}},
          "dependencies": {"type": "array", "items": {"type": "string"}},
          "isActive": {"type": "boolean"}
        }
      }
    }
  }
}`

var ensembleSchemaCompiled = jsonschema.MustCompileString("ensemble.schema.json", ensembleSchema)

// ensembleRule mirrors the ensemble JSON rule shape. Conditions and effects
// are kept raw so unknown types survive the mapping.
type ensembleRule struct {
	Name         string           `json:"name"`
	Type         string           `json:"type"`
	Priority     *int             `json:"priority"`
	Likelihood   *float64         `json:"likelihood"`
	Conditions   []map[string]any `json:"conditions"`
	Effects      []map[string]any `json:"effects"`
	Tags         []string         `json:"tags"`
	Dependencies []string         `json:"dependencies"`
	IsActive     *bool            `json:"isActive"`
}

type ensembleDoc struct {
	Rules []ensembleRule `json:"rules"`
}

// compileEnsemble validates and maps an ensemble JSON document. The format
// is already structurally close to canonical form; compilation is field
// renaming plus defaulting (priority 5, likelihood 1.0, active true).
func compileEnsemble(source []byte) (*Result, error) {
	var anyDoc any
	dec := json.NewDecoder(bytes.NewReader(source))
	dec.UseNumber()
	if err := dec.Decode(&anyDoc); err != nil {
		return nil, fmt.Errorf("ensemble: decode JSON: %w", err)
	}
	if err := ensembleSchemaCompiled.Validate(anyDoc); err != nil {
		return nil, fmt.Errorf("ensemble: schema validation: %w", err)
	}

	var doc ensembleDoc
	if err := json.Unmarshal(source, &doc); err != nil {
		return nil, fmt.Errorf("ensemble: decode rules: %w", err)
	}

	res := &Result{}
	for _, raw := range doc.Rules {
		rule, err := mapEnsembleRule(raw)
		if err != nil {
			res.Errors = append(res.Errors, &CompileError{
				Format:   ir.FormatEnsemble,
				RuleName: raw.Name,
				Message:  err.Error(),
			})
			continue
		}
		res.Rules = append(res.Rules, rule)
	}
	return res, nil
}

func mapEnsembleRule(raw ensembleRule) (ir.Rule, error) {
	rule := ir.Rule{
		Name:         raw.Name,
		Type:         ir.RuleDefault,
		Priority:     ir.DefaultPriority,
		Likelihood:   ir.DefaultLikelihood,
		Tags:         raw.Tags,
		Dependencies: raw.Dependencies,
		IsActive:     true,
	}
	if raw.Type != "" {
		rule.Type = ir.RuleType(raw.Type)
	}
	if raw.Priority != nil {
		rule.Priority = *raw.Priority
	}
	if raw.Likelihood != nil {
		rule.Likelihood = *raw.Likelihood
	}
	if raw.IsActive != nil {
		rule.IsActive = *raw.IsActive
	}

	for i, rawCond := range raw.Conditions {
		cond, err := mapEnsembleCondition(rawCond)
		if err != nil {
			return ir.Rule{}, fmt.Errorf("condition %d: %w", i, err)
		}
		rule.Conditions = append(rule.Conditions, cond)
	}
	for i, rawEff := range raw.Effects {
		eff, err := mapEnsembleEffect(rawEff)
		if err != nil {
			return ir.Rule{}, fmt.Errorf("effect %d: %w", i, err)
		}
		rule.Effects = append(rule.Effects, eff)
	}
	return rule, nil
}

func mapEnsembleCondition(raw map[string]any) (ir.Condition, error) {
	cond := ir.Condition{
		Type:     ir.ConditionType(stringField(raw, "type")),
		Name:     stringField(raw, "name"),
		Operator: stringField(raw, "operator"),
	}
	if v, ok := raw["value"]; ok {
		val, err := ir.FromAny(v)
		if err != nil {
			return ir.Condition{}, fmt.Errorf("value: %w", err)
		}
		cond.Value = val
	}
	if args, ok := raw["args"].([]any); ok {
		for _, a := range args {
			cond.Args = append(cond.Args, fmt.Sprintf("%v", a))
		}
	}

	// Unknown condition types are preserved, not rejected: the matcher's
	// policy is that unknown predicates pass. A recognized type with a bad
	// operator is a genuine compile error.
	if cond.Validate() != nil {
		if !ir.KnownConditionType(cond.Type) {
			preserved, convErr := ir.FromAny(raw)
			if convErr != nil {
				return ir.Condition{}, convErr
			}
			return ir.Condition{
				Type: ir.ConditionUnknown,
				Name: stringField(raw, "type"),
				Raw:  preserved.(ir.Map),
			}, nil
		}
		return ir.Condition{}, cond.Validate()
	}
	return cond, nil
}

func mapEnsembleEffect(raw map[string]any) (ir.Effect, error) {
	eff := ir.Effect{
		Type:      ir.EffectType(stringField(raw, "type")),
		Target:    stringField(raw, "target"),
		Attribute: stringField(raw, "attribute"),
		Grammar:   firstStringField(raw, "grammar", "traceryTemplate"),
		Template:  stringField(raw, "template"),
		Other:     stringField(raw, "other"),
		Action:    stringField(raw, "action"),
	}
	if v, ok := raw["value"]; ok {
		val, err := ir.FromAny(v)
		if err != nil {
			return ir.Effect{}, fmt.Errorf("value: %w", err)
		}
		eff.Value = val
	}
	if d, ok := raw["delta"]; ok {
		conv, err := ir.FromAny(d)
		if err != nil {
			return ir.Effect{}, fmt.Errorf("delta: %w", err)
		}
		num, ok := ir.AsNum(conv)
		if !ok {
			return ir.Effect{}, fmt.Errorf("delta is not numeric")
		}
		eff.Delta = num
	}
	if vars, ok := raw["variables"].(map[string]any); ok {
		eff.Variables = make(map[string]string, len(vars))
		for k, v := range vars {
			eff.Variables[k] = fmt.Sprintf("%v", v)
		}
	}

	// restrict/prevent/block aliases normalize to the restrict variant.
	switch eff.Type {
	case "prevent", "block":
		eff.Type = ir.EffectRestrict
	}

	// An unrecognized effect type is preserved as unknown (recorded as a
	// failed effect at execution time); a recognized type with broken
	// fields is a genuine compile error.
	if eff.Validate() != nil {
		if !ir.KnownEffectType(eff.Type) {
			preserved, convErr := ir.FromAny(raw)
			if convErr != nil {
				return ir.Effect{}, convErr
			}
			return ir.Effect{Type: ir.EffectUnknown, Raw: preserved.(ir.Map)}, nil
		}
		return ir.Effect{}, eff.Validate()
	}
	return eff, nil
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func firstStringField(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringField(raw, k); s != "" {
			return s
		}
	}
	return ""
}
