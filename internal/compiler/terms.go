package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fabulist/fabula/internal/ir"
)

// Shared term parsing for the textual formats (insimul and kismet). Both
// express conditions as predicate literals or comparisons and effects as
// calls, so the mapping onto canonical Condition/Effect lives here.

// call is a parsed functor application: name(arg1, arg2, ...).
type call struct {
	name string
	args []string
}

var comparisonRe = regexp.MustCompile(`^(.+?)\s*(>=|<=|==|>|<)\s*(.+)$`)

// parseCall parses "name(a, b)" into a call. Bare identifiers parse as
// zero-argument calls.
func parseCall(s string) (call, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		if s == "" {
			return call{}, fmt.Errorf("empty term")
		}
		return call{name: s}, nil
	}
	if !strings.HasSuffix(s, ")") {
		return call{}, fmt.Errorf("unbalanced parentheses in %q", s)
	}
	name := strings.TrimSpace(s[:open])
	if name == "" {
		return call{}, fmt.Errorf("missing functor in %q", s)
	}
	inner := s[open+1 : len(s)-1]
	args, err := splitTopLevel(inner, ',')
	if err != nil {
		return call{}, fmt.Errorf("arguments of %q: %w", name, err)
	}
	return call{name: name, args: args}, nil
}

// splitTopLevel splits on a separator, ignoring separators nested inside
// parentheses, braces, brackets, or double-quoted strings. Empty input
// yields no fields.
func splitTopLevel(s string, sep byte) ([]string, error) {
	var fields []string
	var depth int
	var inString bool
	start := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inString:
			if c == '"' && (i == 0 || s[i-1] != '\\') {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '(' || c == '{' || c == '[':
			depth++
		case c == ')' || c == '}' || c == ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q in %q", string(c), s)
			}
		case c == sep && depth == 0:
			fields = append(fields, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if inString {
		return nil, fmt.Errorf("unterminated string in %q", s)
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses in %q", s)
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		fields = append(fields, tail)
	}
	return fields, nil
}

// parseScalar converts a literal token into a Value: quoted strings,
// numbers, booleans, or a bare word (kept as a string).
func parseScalar(tok string) ir.Value {
	tok = strings.TrimSpace(tok)
	switch {
	case tok == "":
		return ir.Null{}
	case tok == "true":
		return ir.Bool(true)
	case tok == "false":
		return ir.Bool(false)
	case len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"':
		if unq, err := strconv.Unquote(tok); err == nil {
			return ir.String(unq)
		}
		return ir.String(tok[1 : len(tok)-1])
	default:
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return ir.Num(f)
		}
		return ir.String(tok)
	}
}

// scalarString renders a token as a plain string, stripping quotes.
func scalarString(tok string) string {
	tok = strings.TrimSpace(tok)
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
		if unq, err := strconv.Unquote(tok); err == nil {
			return unq
		}
		return tok[1 : len(tok)-1]
	}
	return tok
}

// parseConditionLiteral maps one condition literal (a comparison or a
// predicate call) onto a canonical Condition.
func parseConditionLiteral(lit string) (ir.Condition, error) {
	lit = strings.TrimSpace(lit)

	if m := comparisonRe.FindStringSubmatch(lit); m != nil {
		return conditionFromComparison(m[1], m[2], m[3])
	}

	c, err := parseCall(lit)
	if err != nil {
		return ir.Condition{}, err
	}
	return conditionFromCall(c, "", nil)
}

func conditionFromComparison(lhs, op, rhs string) (ir.Condition, error) {
	value := parseScalar(rhs)
	lhs = strings.TrimSpace(lhs)

	if strings.ContainsRune(lhs, '(') {
		c, err := parseCall(lhs)
		if err != nil {
			return ir.Condition{}, err
		}
		return conditionFromCall(c, op, value)
	}

	if lhs == "energy" {
		return ir.Condition{Type: ir.ConditionEnergy, Operator: op, Value: value}, nil
	}
	return ir.Condition{Type: ir.ConditionPredicate, Name: lhs, Operator: op, Value: value}, nil
}

// conditionFromCall maps a predicate call (optionally from a comparison
// context with operator and value) onto a Condition variant.
func conditionFromCall(c call, op string, value ir.Value) (ir.Condition, error) {
	oneArg := func() ir.Value {
		if len(c.args) > 0 {
			return parseScalar(c.args[0])
		}
		return ir.Null{}
	}

	switch c.name {
	case "location":
		return ir.Condition{Type: ir.ConditionLocation, Value: oneArg()}, nil
	case "zone":
		return ir.Condition{Type: ir.ConditionZone, Value: oneArg()}, nil
	case "action":
		return ir.Condition{Type: ir.ConditionAction, Value: oneArg()}, nil
	case "proximity", "near_npc":
		near := ir.Value(ir.Bool(true))
		if len(c.args) > 0 {
			near = parseScalar(c.args[0])
		}
		return ir.Condition{Type: ir.ConditionProximity, Value: near}, nil
	case "tag":
		return ir.Condition{Type: ir.ConditionTag, Value: oneArg()}, nil
	case "energy":
		// energy(50) is shorthand for energy >= 50.
		if op == "" {
			op = ">="
			value = oneArg()
		}
		return ir.Condition{Type: ir.ConditionEnergy, Operator: op, Value: value}, nil
	default:
		args := make([]string, len(c.args))
		for i, a := range c.args {
			args[i] = scalarString(a)
		}
		return ir.Condition{
			Type:     ir.ConditionPredicate,
			Name:     c.name,
			Operator: op,
			Value:    value,
			Args:     args,
		}, nil
	}
}

// parseEffectCall maps an effect call onto a canonical Effect. Calls with a
// recognized name get a typed variant; everything else is preserved as an
// unknown effect.
func parseEffectCall(lit string) (ir.Effect, error) {
	c, err := parseCall(lit)
	if err != nil {
		return ir.Effect{}, err
	}

	switch c.name {
	case "modify_attribute":
		if len(c.args) != 3 {
			return ir.Effect{}, fmt.Errorf("modify_attribute wants 3 args, got %d", len(c.args))
		}
		return ir.Effect{
			Type:      ir.EffectModifyAttribute,
			Target:    scalarString(c.args[0]),
			Attribute: scalarString(c.args[1]),
			Value:     parseScalar(c.args[2]),
		}, nil

	case "relationship_change":
		if len(c.args) != 3 {
			return ir.Effect{}, fmt.Errorf("relationship_change wants 3 args, got %d", len(c.args))
		}
		delta, ok := ir.AsNum(parseScalar(c.args[2]))
		if !ok {
			return ir.Effect{}, fmt.Errorf("relationship_change delta %q is not numeric", c.args[2])
		}
		return ir.Effect{
			Type:   ir.EffectRelationshipChange,
			Target: scalarString(c.args[0]),
			Other:  scalarString(c.args[1]),
			Delta:  delta,
		}, nil

	case "tracery_generate":
		if len(c.args) < 1 {
			return ir.Effect{}, fmt.Errorf("tracery_generate wants a grammar name")
		}
		eff := ir.Effect{
			Type:    ir.EffectGenerateText,
			Grammar: scalarString(c.args[0]),
		}
		if len(c.args) > 1 {
			vars, err := parseVariableMap(c.args[1])
			if err != nil {
				return ir.Effect{}, fmt.Errorf("tracery_generate variables: %w", err)
			}
			eff.Variables = vars
		}
		return eff, nil

	case "say":
		// say(target, "text") emits the literal text as an inline template.
		if len(c.args) != 2 {
			return ir.Effect{}, fmt.Errorf("say wants 2 args, got %d", len(c.args))
		}
		return ir.Effect{
			Type:     ir.EffectGenerateText,
			Target:   scalarString(c.args[0]),
			Template: scalarString(c.args[1]),
		}, nil

	case "restrict", "prevent", "block":
		if len(c.args) != 1 {
			return ir.Effect{}, fmt.Errorf("%s wants 1 arg, got %d", c.name, len(c.args))
		}
		return ir.Effect{Type: ir.EffectRestrict, Action: scalarString(c.args[0])}, nil

	default:
		rawArgs := make(ir.List, len(c.args))
		for i, a := range c.args {
			rawArgs[i] = parseScalar(a)
		}
		return ir.Effect{
			Type: ir.EffectUnknown,
			Raw:  ir.Map{"name": ir.String(c.name), "args": rawArgs},
		}, nil
	}
}

// parseVariableMap parses "{name: ?c, place: \"market\"}" into a variable
// map for generate_text effects.
func parseVariableMap(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, fmt.Errorf("expected {key: value, ...}, got %q", s)
	}
	inner := s[1 : len(s)-1]
	pairs, err := splitTopLevel(inner, ',')
	if err != nil {
		return nil, err
	}
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, val, found := strings.Cut(pair, ":")
		if !found {
			return nil, fmt.Errorf("expected key: value, got %q", pair)
		}
		vars[strings.TrimSpace(key)] = scalarString(val)
	}
	return vars, nil
}
