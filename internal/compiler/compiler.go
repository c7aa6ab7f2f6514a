package compiler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fabulist/fabula/internal/ir"
)

// Result is the outcome of compiling one source batch: the rules that
// compiled plus per-rule errors for those that did not.
type Result struct {
	Rules  []ir.Rule
	Errors []*CompileError
}

// Compile parses rule source text in the given format into canonical rules.
//
// Partial success is the normal mode: rules that fail to parse or validate
// are reported in Result.Errors while their siblings compile. A non-nil
// top-level error means the document as a whole was unusable.
func Compile(source []byte, format ir.SourceFormat) (*Result, error) {
	var res *Result
	var err error

	switch format {
	case ir.FormatInsimul:
		res = compileInsimul(source)
	case ir.FormatEnsemble:
		res, err = compileEnsemble(source)
	case ir.FormatKismet:
		res = compileKismet(source)
	case ir.FormatTott:
		res = compileTott(source)
	default:
		return nil, fmt.Errorf("unknown source format %q", format)
	}
	if err != nil {
		return nil, err
	}

	finalizeResult(res, format)
	return res, nil
}

// finalizeResult assigns IDs, applies canonical validation, and demotes
// rules failing validation into per-rule errors.
func finalizeResult(res *Result, format ir.SourceFormat) {
	kept := res.Rules[:0]
	for i := range res.Rules {
		rule := res.Rules[i]
		rule.Format = format
		if rule.ID == "" {
			rule.ID = ruleID(format, rule.Name)
		}
		if err := rule.Validate(); err != nil {
			res.Errors = append(res.Errors, &CompileError{
				Format:   format,
				RuleName: rule.Name,
				Message:  err.Error(),
			})
			continue
		}
		kept = append(kept, rule)
	}
	res.Rules = kept

	slog.Debug("compile finished",
		"format", format,
		"rules", len(res.Rules),
		"errors", len(res.Errors),
	)
}

// ruleID derives a stable rule identifier from the source format and rule
// name. Deterministic so that recompiling the same source yields
// structurally equal rules.
func ruleID(format ir.SourceFormat, name string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, name)
	slug = strings.Trim(slug, "-")
	return string(format) + "/" + slug
}
