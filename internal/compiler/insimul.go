package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fabulist/fabula/internal/ir"
)

// insimul block syntax:
//
//	rule BefriendStranger {
//	  type trigger
//	  priority 8
//	  likelihood 0.75
//	  tags social, friendly
//	  when {
//	    energy >= 50
//	    location(settlement)
//	    knows(?c, ?other)
//	  }
//	  then {
//	    modify_attribute(?c, occupation, "apprentice")
//	    tracery_generate("meeting", {name: ?c})
//	  }
//	}
//
// Conditions are one literal per line; effects are one call per line.
// Line comments start with "//".

type insimulParser struct {
	lines []string
	pos   int
	res   *Result
}

func compileInsimul(source []byte) *Result {
	p := &insimulParser{
		lines: strings.Split(string(source), "\n"),
		res:   &Result{},
	}
	p.run()
	return p.res
}

// line returns the current 1-based line number for error reporting.
func (p *insimulParser) line() int {
	return p.pos + 1
}

func (p *insimulParser) fail(ruleName string, line int, format string, args ...any) {
	p.res.Errors = append(p.res.Errors, &CompileError{
		Format:   ir.FormatInsimul,
		RuleName: ruleName,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (p *insimulParser) run() {
	for p.pos < len(p.lines) {
		text := stripComment(p.lines[p.pos])
		if text == "" {
			p.pos++
			continue
		}

		name, ok := parseRuleHeader(text)
		if !ok {
			p.fail("", p.line(), "expected `rule <name> {`, got %q", text)
			p.pos++
			continue
		}

		p.pos++
		p.parseRule(name)
	}
}

// parseRule consumes the body of one rule block. On error it records the
// problem and skips to the block's closing brace so sibling rules still
// compile.
func (p *insimulParser) parseRule(name string) {
	rule := ir.Rule{
		Name:       name,
		Type:       ir.RuleDefault,
		Priority:   ir.DefaultPriority,
		Likelihood: ir.DefaultLikelihood,
		IsActive:   true,
	}
	failed := false

	for p.pos < len(p.lines) {
		text := stripComment(p.lines[p.pos])
		if text == "" {
			p.pos++
			continue
		}

		switch {
		case text == "}":
			p.pos++
			if !failed {
				p.res.Rules = append(p.res.Rules, rule)
			}
			return

		case text == "when {":
			p.pos++
			if !p.parseConditionBlock(name, &rule) {
				failed = true
			}

		case text == "then {":
			p.pos++
			if !p.parseEffectBlock(name, &rule) {
				failed = true
			}

		default:
			if err := p.parseDirective(text, &rule); err != nil {
				p.fail(name, p.line(), "%v", err)
				failed = true
			}
			p.pos++
		}
	}

	p.fail(name, p.line(), "unexpected end of input: unterminated rule block")
}

// parseBlock consumes lines until the closing brace, applying fn per line.
// Returns false if any line failed; parsing continues to the brace so the
// outer rule block stays in sync.
func (p *insimulParser) parseBlock(ruleName string, fn func(text string) error) bool {
	ok := true
	for p.pos < len(p.lines) {
		text := stripComment(p.lines[p.pos])
		if text == "" {
			p.pos++
			continue
		}
		if text == "}" {
			p.pos++
			return ok
		}
		if err := fn(text); err != nil {
			p.fail(ruleName, p.line(), "%v", err)
			ok = false
		}
		p.pos++
	}
	p.fail(ruleName, p.line(), "unexpected end of input: unterminated block")
	return false
}

func (p *insimulParser) parseConditionBlock(ruleName string, rule *ir.Rule) bool {
	return p.parseBlock(ruleName, func(text string) error {
		cond, err := parseConditionLiteral(text)
		if err != nil {
			return err
		}
		rule.Conditions = append(rule.Conditions, cond)
		return nil
	})
}

func (p *insimulParser) parseEffectBlock(ruleName string, rule *ir.Rule) bool {
	return p.parseBlock(ruleName, func(text string) error {
		eff, err := parseEffectCall(text)
		if err != nil {
			return err
		}
		rule.Effects = append(rule.Effects, eff)
		return nil
	})
}

// parseDirective handles rule-level metadata lines.
func (p *insimulParser) parseDirective(text string, rule *ir.Rule) error {
	key, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	switch key {
	case "type":
		rule.Type = ir.RuleType(rest)
		if !ir.ValidRuleTypes[rule.Type] {
			return fmt.Errorf("invalid rule type %q", rest)
		}
	case "priority":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("invalid priority %q", rest)
		}
		rule.Priority = n
	case "likelihood":
		f, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return fmt.Errorf("invalid likelihood %q", rest)
		}
		rule.Likelihood = f
	case "tags":
		rule.Tags = splitCommaList(rest)
	case "dependencies", "deps":
		rule.Dependencies = splitCommaList(rest)
	case "inactive":
		rule.IsActive = false
	default:
		return fmt.Errorf("unknown directive %q", key)
	}
	return nil
}

// parseRuleHeader matches `rule <name> {` and returns the name.
func parseRuleHeader(text string) (string, bool) {
	rest, ok := strings.CutPrefix(text, "rule ")
	if !ok {
		return "", false
	}
	rest, ok = strings.CutSuffix(rest, "{")
	if !ok {
		return "", false
	}
	name := strings.TrimSpace(rest)
	if name == "" || strings.ContainsAny(name, " \t{}") {
		return "", false
	}
	return name, true
}

// stripComment trims a line and removes a trailing // comment (outside
// strings).
func stripComment(line string) string {
	var inString bool
	for i := 0; i < len(line)-1; i++ {
		switch {
		case inString:
			if line[i] == '"' && line[i-1] != '\\' {
				inString = false
			}
		case line[i] == '"':
			inString = true
		case line[i] == '/' && line[i+1] == '/':
			return strings.TrimSpace(line[:i])
		}
	}
	return strings.TrimSpace(line)
}

func splitCommaList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
