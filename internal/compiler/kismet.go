package compiler

import (
	"fmt"
	"strings"

	"github.com/fabulist/fabula/internal/ir"
)

// kismet clause syntax, Prolog-style:
//
//	% a comment
//	modify_attribute(?x, occupation, "apprentice") :-
//	    energy >= 50, location(settlement), knows(?x, ?y).
//
// Effects come from the clause head, conditions from the body literals.
// Multiple head actions are joined with "&". Metadata literals in the body
// (priority(8), likelihood(0.6), type(volition), tag(social)) annotate the
// rule instead of becoming conditions. A clause ends with "." at top level.
//
// Rule names derive from the first head functor; repeated functors get a
// numeric suffix so IDs stay unique and deterministic.

func compileKismet(source []byte) *Result {
	res := &Result{}
	clauses := splitClauses(string(source))
	seen := make(map[string]int)

	for _, cl := range clauses {
		text := strings.TrimSpace(cl.text)
		if text == "" {
			continue
		}

		rule, err := parseKismetClause(text)
		if err != nil {
			res.Errors = append(res.Errors, &CompileError{
				Format:  ir.FormatKismet,
				Line:    cl.line,
				Message: err.Error(),
			})
			continue
		}

		seen[rule.Name]++
		if n := seen[rule.Name]; n > 1 {
			rule.Name = fmt.Sprintf("%s_%d", rule.Name, n)
		}
		res.Rules = append(res.Rules, rule)
	}
	return res
}

type clauseText struct {
	text string
	line int
}

// splitClauses splits source into clauses terminated by "." at top level,
// stripping %-comments and tracking the starting line of each clause.
func splitClauses(source string) []clauseText {
	var clauses []clauseText
	var buf strings.Builder
	var depth int
	var inString bool
	line := 1
	clauseLine := 1
	pendingStart := true

	for i := 0; i < len(source); i++ {
		c := source[i]
		if c == '\n' {
			line++
		}

		switch {
		case inString:
			buf.WriteByte(c)
			if c == '"' && source[i-1] != '\\' {
				inString = false
			}
		case c == '"':
			inString = true
			buf.WriteByte(c)
		case c == '%':
			// comment to end of line
			for i < len(source) && source[i] != '\n' {
				i++
			}
			if i < len(source) {
				line++
			}
			buf.WriteByte(' ')
		case c == '(' || c == '{' || c == '[':
			depth++
			buf.WriteByte(c)
		case c == ')' || c == '}' || c == ']':
			depth--
			buf.WriteByte(c)
		case c == '.' && depth == 0 && !isDecimalDot(source, i):
			clauses = append(clauses, clauseText{text: buf.String(), line: clauseLine})
			buf.Reset()
			pendingStart = true
		default:
			if pendingStart && !isSpace(c) {
				clauseLine = line
				pendingStart = false
			}
			buf.WriteByte(c)
		}
	}
	if strings.TrimSpace(buf.String()) != "" {
		clauses = append(clauses, clauseText{text: buf.String(), line: clauseLine})
	}
	return clauses
}

// isDecimalDot reports whether the '.' at index i sits between two digits
// (part of a number like 0.6, not a clause terminator).
func isDecimalDot(s string, i int) bool {
	return i > 0 && i+1 < len(s) && isDigit(s[i-1]) && isDigit(s[i+1])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func parseKismetClause(text string) (ir.Rule, error) {
	head, body, hasBody := strings.Cut(text, ":-")
	head = strings.TrimSpace(head)
	if head == "" {
		return ir.Rule{}, fmt.Errorf("clause has no head")
	}

	rule := ir.Rule{
		Type:       ir.RuleDefault,
		Priority:   ir.DefaultPriority,
		Likelihood: ir.DefaultLikelihood,
		IsActive:   true,
	}

	// Head: one or more effect calls joined with "&".
	headTerms, err := splitTopLevel(head, '&')
	if err != nil {
		return ir.Rule{}, fmt.Errorf("head: %w", err)
	}
	for i, term := range headTerms {
		eff, err := parseEffectCall(term)
		if err != nil {
			return ir.Rule{}, fmt.Errorf("head action %d: %w", i, err)
		}
		rule.Effects = append(rule.Effects, eff)

		if i == 0 {
			c, err := parseCall(term)
			if err == nil {
				rule.Name = c.name
			}
		}
	}
	if rule.Name == "" {
		return ir.Rule{}, fmt.Errorf("could not derive rule name from head")
	}

	if !hasBody {
		return rule, nil
	}

	literals, err := splitTopLevel(body, ',')
	if err != nil {
		return ir.Rule{}, fmt.Errorf("body: %w", err)
	}
	for i, lit := range literals {
		if consumed, err := applyKismetMeta(&rule, lit); err != nil {
			return ir.Rule{}, fmt.Errorf("body literal %d: %w", i, err)
		} else if consumed {
			continue
		}

		cond, err := parseConditionLiteral(lit)
		if err != nil {
			return ir.Rule{}, fmt.Errorf("body literal %d: %w", i, err)
		}
		rule.Conditions = append(rule.Conditions, cond)
	}
	return rule, nil
}

// applyKismetMeta consumes metadata literals (priority, likelihood, type,
// rule tags) and reports whether the literal was metadata.
func applyKismetMeta(rule *ir.Rule, lit string) (bool, error) {
	c, err := parseCall(lit)
	if err != nil || len(c.args) != 1 {
		return false, nil
	}
	arg := strings.TrimSpace(c.args[0])

	switch c.name {
	case "priority":
		n, ok := ir.AsNum(parseScalar(arg))
		if !ok {
			return false, fmt.Errorf("priority %q is not numeric", arg)
		}
		rule.Priority = int(n)
		return true, nil
	case "likelihood":
		f, ok := ir.AsNum(parseScalar(arg))
		if !ok {
			return false, fmt.Errorf("likelihood %q is not numeric", arg)
		}
		rule.Likelihood = f
		return true, nil
	case "type":
		t := ir.RuleType(scalarString(arg))
		if !ir.ValidRuleTypes[t] {
			return false, fmt.Errorf("invalid rule type %q", arg)
		}
		rule.Type = t
		return true, nil
	case "rule_tag":
		rule.Tags = append(rule.Tags, scalarString(arg))
		return true, nil
	default:
		return false, nil
	}
}
