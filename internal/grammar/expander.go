// Package grammar implements Tracery-style recursive template expansion.
//
// Templates contain "#symbol#" markers. Each marker resolves either to a
// caller-supplied variable (substituted literally) or to one of the symbol's
// alternatives in the grammar, chosen by the injected RNG and expanded
// recursively. Modifier suffixes ("#name.capitalize#") transform the
// resolved string.
//
// Expansion carries an explicit depth counter. Source grammars are routinely
// self-referential (firstNames: ["#syllable##syllable#"]), so a cyclic or
// malformed grammar without a guard would recurse forever; exceeding the
// maximum depth fails with a RecursionError instead.
package grammar

import (
	"fmt"
	"strings"

	"github.com/fabulist/fabula/internal/ir"
)

// DefaultMaxDepth is the default recursion limit for expansion.
const DefaultMaxDepth = 100

// RNG supplies the randomness for alternative selection. Satisfied by
// *math/rand.Rand; tests inject fixed implementations for determinism.
type RNG interface {
	Intn(n int) int
}

// Expander expands grammar templates.
type Expander struct {
	maxDepth int
}

// Option configures an Expander.
type Option func(*Expander)

// WithMaxDepth overrides the recursion limit.
// Use a small limit to exercise the depth guard in tests.
func WithMaxDepth(depth int) Option {
	return func(e *Expander) {
		e.maxDepth = depth
	}
}

// New creates an Expander with the default recursion limit.
func New(opts ...Option) *Expander {
	e := &Expander{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand expands the named start symbol of a grammar.
//
// Variables take precedence over grammar symbols: a "#name#" marker whose
// symbol is present in vars substitutes the variable's value literally,
// without further expansion. Expansion is deterministic for a fixed RNG.
func (e *Expander) Expand(g *ir.Grammar, start string, vars map[string]string, rng RNG) (string, error) {
	return e.expandSymbol(g, start, vars, rng, 0)
}

// ExpandTemplate expands an inline template string against a grammar.
// Used for generate_text effects carrying a template instead of a
// grammar start symbol.
func (e *Expander) ExpandTemplate(g *ir.Grammar, template string, vars map[string]string, rng RNG) (string, error) {
	return e.expandTemplate(g, template, vars, rng, 0)
}

func (e *Expander) expandSymbol(g *ir.Grammar, symbol string, vars map[string]string, rng RNG, depth int) (string, error) {
	if depth > e.maxDepth {
		return "", &RecursionError{Symbol: symbol, Depth: depth, MaxDepth: e.maxDepth}
	}

	// Caller variables shadow grammar symbols and substitute literally.
	if val, ok := vars[symbol]; ok {
		return val, nil
	}

	alts, ok := symbolAlternatives(g, symbol)
	if !ok {
		// Unresolvable symbol: render visibly rather than failing, matching
		// Tracery's ((symbol)) convention for missing rules.
		return "((" + symbol + "))", nil
	}

	choice := alts[rng.Intn(len(alts))]
	return e.expandTemplate(g, choice, vars, rng, depth+1)
}

func (e *Expander) expandTemplate(g *ir.Grammar, template string, vars map[string]string, rng RNG, depth int) (string, error) {
	if depth > e.maxDepth {
		return "", &RecursionError{Symbol: template, Depth: depth, MaxDepth: e.maxDepth}
	}

	var out strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '#')
		if open < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		close := strings.IndexByte(rest[open+1:], '#')
		if close < 0 {
			// Unmatched marker is emitted literally.
			out.WriteString(rest)
			return out.String(), nil
		}
		close += open + 1

		out.WriteString(rest[:open])
		token := rest[open+1 : close]
		rest = rest[close+1:]

		if token == "" {
			continue
		}

		symbol, modifiers := splitToken(token)
		resolved, err := e.expandSymbol(g, symbol, vars, rng, depth+1)
		if err != nil {
			return "", err
		}
		for _, mod := range modifiers {
			resolved = applyModifier(mod, resolved)
		}
		out.WriteString(resolved)
	}
}

// splitToken splits "symbol.mod1.mod2" into the symbol name and its
// modifier chain.
func splitToken(token string) (string, []string) {
	parts := strings.Split(token, ".")
	return parts[0], parts[1:]
}

func symbolAlternatives(g *ir.Grammar, symbol string) ([]string, bool) {
	if g == nil {
		return nil, false
	}
	alts, ok := g.Symbols[symbol]
	if !ok || len(alts) == 0 {
		return nil, false
	}
	return alts, true
}

// String renders a diagnostic description of the expander configuration.
func (e *Expander) String() string {
	return fmt.Sprintf("grammar.Expander(maxDepth=%d)", e.maxDepth)
}
