package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fabulist/fabula/internal/ir"
)

// tott (Talk-of-the-Town-style) sources are Python class definitions:
//
//	class FriendlyGreeting:
//	    name = "Friendly Greeting"
//	    rule_type = "social"
//	    priority = 5
//
//	    @staticmethod
//	    def preconditions(character, target):
//	        return (
//	            character.mood == "happy" and
//	            character.get_relationship(target) > 0.5
//	        )
//
//	    @staticmethod
//	    def effects(character, target):
//	        character.say("Hello, friend!")
//	        character.modify_relationship(target, 0.1)
//
// There is no formal grammar for this format; extraction is regex and line
// heuristics over known shapes, and is deliberately lossy. Unrecognized
// precondition or effect lines produce per-rule errors without aborting the
// batch; unparseable classes are skipped the same way.

var (
	tottClassRe      = regexp.MustCompile(`^class\s+(\w+)\s*(?:\([^)]*\))?\s*:`)
	tottAssignRe     = regexp.MustCompile(`^(\w+)\s*=\s*(.+)$`)
	tottDefRe        = regexp.MustCompile(`^def\s+(\w+)\s*\(`)
	tottAttrCompRe   = regexp.MustCompile(`^(\w+)\.(\w+)\s*(>=|<=|==|>|<)\s*(.+?)\s*(?:and|or)?\s*$`)
	tottMethodCompRe = regexp.MustCompile(`^(\w+)\.get_(\w+)\((\w+)\)\s*(>=|<=|==|>|<)\s*(.+?)\s*(?:and|or)?\s*$`)
	tottCallRe       = regexp.MustCompile(`^(\w+)\.(\w+)\((.*)\)$`)
	tottAttrSetRe    = regexp.MustCompile(`^(\w+)\.(\w+)\s*=\s*(.+)$`)
)

// tottRuleTypes maps tott rule_type vocabulary onto the canonical set.
// Anything unmapped falls back to default.
var tottRuleTypes = map[string]ir.RuleType{
	"social":   ir.RuleTrait,
	"trigger":  ir.RuleTrigger,
	"volition": ir.RuleVolition,
	"trait":    ir.RuleTrait,
	"pattern":  ir.RulePattern,
	"default":  ir.RuleDefault,
}

func compileTott(source []byte) *Result {
	res := &Result{}
	lines := strings.Split(string(source), "\n")

	var i int
	for i < len(lines) {
		text := strings.TrimSpace(lines[i])
		m := tottClassRe.FindStringSubmatch(text)
		if m == nil {
			i++
			continue
		}

		className := m[1]
		end := findClassEnd(lines, i+1)
		rule, errs := extractTottRule(className, lines[i+1:end], i+1)
		for _, e := range errs {
			res.Errors = append(res.Errors, e)
		}
		if rule != nil {
			res.Rules = append(res.Rules, *rule)
		}
		i = end
	}
	return res
}

// findClassEnd returns the index of the first line after the class body
// (the next top-level class or EOF).
func findClassEnd(lines []string, start int) int {
	for i := start; i < len(lines); i++ {
		if tottClassRe.MatchString(strings.TrimSpace(lines[i])) && leadingSpace(lines[i]) == 0 {
			return i
		}
	}
	return len(lines)
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t"))
}

// extractTottRule pulls rule metadata and method bodies out of one class.
// A nil rule means the class was unusable (every recoverable problem is
// reported as a CompileError and the rest of the class still contributes).
func extractTottRule(className string, body []string, baseLine int) (*ir.Rule, []*CompileError) {
	rule := &ir.Rule{
		Name:       className,
		Type:       ir.RuleDefault,
		Priority:   ir.DefaultPriority,
		Likelihood: ir.DefaultLikelihood,
		IsActive:   true,
	}
	var errs []*CompileError

	fail := func(line int, format string, args ...any) {
		errs = append(errs, &CompileError{
			Format:   ir.FormatTott,
			RuleName: rule.Name,
			Line:     baseLine + line + 1,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	section := "" // "", "preconditions", "effects"
	inDocstring := false
	for i, raw := range body {
		text := strings.TrimSpace(raw)

		// Docstrings may span lines: """one-liner""" or an open/close pair.
		if inDocstring {
			if strings.Contains(text, `"""`) {
				inDocstring = false
			}
			continue
		}
		if strings.HasPrefix(text, `"""`) {
			if !strings.Contains(text[3:], `"""`) {
				inDocstring = true
			}
			continue
		}

		if text == "" || strings.HasPrefix(text, "#") ||
			strings.HasPrefix(text, "@") || text == "return (" || text == ")" || text == "return" {
			continue
		}

		if m := tottDefRe.FindStringSubmatch(text); m != nil {
			switch m[1] {
			case "preconditions", "effects":
				section = m[1]
			default:
				section = ""
			}
			continue
		}

		switch section {
		case "":
			if m := tottAssignRe.FindStringSubmatch(text); m != nil {
				applyTottClassAttr(rule, m[1], m[2])
			}
		case "preconditions":
			cond, err := parseTottPrecondition(text)
			if err != nil {
				fail(i, "precondition: %v", err)
				continue
			}
			rule.Conditions = append(rule.Conditions, cond)
		case "effects":
			eff, err := parseTottEffect(text)
			if err != nil {
				fail(i, "effect: %v", err)
				continue
			}
			rule.Effects = append(rule.Effects, eff)
		}
	}

	return rule, errs
}

func applyTottClassAttr(rule *ir.Rule, key, value string) {
	switch key {
	case "name":
		if name := scalarString(value); name != "" {
			rule.Name = name
		}
	case "rule_type":
		if mapped, ok := tottRuleTypes[scalarString(value)]; ok {
			rule.Type = mapped
		}
	case "priority":
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			rule.Priority = n
		}
	case "likelihood":
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			rule.Likelihood = f
		}
	}
}

// parseTottPrecondition maps a Python condition line onto a predicate
// condition. Receiver and call arguments become unification variables
// ("character" → "?character") so the matcher can bind them.
func parseTottPrecondition(text string) (ir.Condition, error) {
	if m := tottMethodCompRe.FindStringSubmatch(text); m != nil {
		// character.get_relationship(target) > 0.5
		return ir.Condition{
			Type:     ir.ConditionPredicate,
			Name:     m[2],
			Args:     []string{"?" + m[1], "?" + m[3]},
			Operator: m[4],
			Value:    parseScalar(m[5]),
		}, nil
	}
	if m := tottAttrCompRe.FindStringSubmatch(text); m != nil {
		// character.mood == "happy"
		return ir.Condition{
			Type:     ir.ConditionPredicate,
			Name:     m[2],
			Args:     []string{"?" + m[1]},
			Operator: m[3],
			Value:    parseScalar(m[4]),
		}, nil
	}
	return ir.Condition{}, fmt.Errorf("unrecognized precondition %q", text)
}

// parseTottEffect maps a Python effect line onto a canonical effect.
func parseTottEffect(text string) (ir.Effect, error) {
	if m := tottCallRe.FindStringSubmatch(text); m != nil {
		receiver, method, argText := m[1], m[2], m[3]
		args, err := splitTopLevel(argText, ',')
		if err != nil {
			return ir.Effect{}, err
		}

		switch method {
		case "say":
			if len(args) != 1 {
				return ir.Effect{}, fmt.Errorf("say wants 1 arg, got %d", len(args))
			}
			return ir.Effect{
				Type:     ir.EffectGenerateText,
				Target:   "?" + receiver,
				Template: scalarString(args[0]),
			}, nil
		case "modify_relationship":
			if len(args) != 2 {
				return ir.Effect{}, fmt.Errorf("modify_relationship wants 2 args, got %d", len(args))
			}
			delta, ok := ir.AsNum(parseScalar(args[1]))
			if !ok {
				return ir.Effect{}, fmt.Errorf("delta %q is not numeric", args[1])
			}
			return ir.Effect{
				Type:   ir.EffectRelationshipChange,
				Target: "?" + receiver,
				Other:  "?" + args[0],
				Delta:  delta,
			}, nil
		default:
			rawArgs := make(ir.List, len(args))
			for i, a := range args {
				rawArgs[i] = parseScalar(a)
			}
			return ir.Effect{
				Type: ir.EffectUnknown,
				Raw: ir.Map{
					"receiver": ir.String(receiver),
					"method":   ir.String(method),
					"args":     rawArgs,
				},
			}, nil
		}
	}

	if m := tottAttrSetRe.FindStringSubmatch(text); m != nil {
		// character.mood = "calm"
		return ir.Effect{
			Type:      ir.EffectModifyAttribute,
			Target:    "?" + m[1],
			Attribute: m[2],
			Value:     parseScalar(m[3]),
		}, nil
	}

	return ir.Effect{}, fmt.Errorf("unrecognized effect %q", text)
}
