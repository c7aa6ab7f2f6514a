package ir

import "fmt"

// OriginSymbol is the conventional start symbol for grammar expansion.
const OriginSymbol = "origin"

// Grammar is a Tracery-style symbol table: each symbol maps to an ordered
// list of alternative templates. Templates may contain "#symbol#" references
// with optional ".modifier" suffixes ("#name.capitalize#").
type Grammar struct {
	Name    string              `json:"name"`
	Symbols map[string][]string `json:"symbols"`
}

// Validate checks that the grammar has a name and at least one symbol with
// at least one alternative. It does not attempt to prove the grammar
// terminates; the expander's depth guard handles cyclic grammars at runtime.
func (g *Grammar) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("grammar name is required")
	}
	if len(g.Symbols) == 0 {
		return fmt.Errorf("grammar %s: no symbols defined", g.Name)
	}
	for sym, alts := range g.Symbols {
		if len(alts) == 0 {
			return fmt.Errorf("grammar %s: symbol %q has no alternatives", g.Name, sym)
		}
	}
	return nil
}
