package seed

import _ "embed"

//go:embed default.cue
var defaultSource string

// Default returns the embedded demonstration seed: two characters, one
// settlement zone, and the stock grammars. The names grammar is deliberately
// self-referential so expansion exercises the depth guard.
func Default() (*Seed, error) {
	return Parse(defaultSource)
}
