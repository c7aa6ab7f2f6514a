package grammar

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabulist/fabula/internal/ir"
)

// fixedRNG always selects the same alternative index.
type fixedRNG struct{ idx int }

func (f fixedRNG) Intn(n int) int {
	if f.idx >= n {
		return n - 1
	}
	return f.idx
}

func testGrammar() *ir.Grammar {
	return &ir.Grammar{
		Name: "meeting",
		Symbols: map[string][]string{
			"origin":   {"#name.capitalize# met #other# at the #place#."},
			"name":     {"ada", "bren"},
			"other":    {"a stranger", "an old friend"},
			"place":    {"market", "well"},
			"animal":   {"fox", "wolf"},
			"compound": {"#animal# and #animal#"},
		},
	}
}

func TestExpandDeterministicForSeed(t *testing.T) {
	g := testGrammar()
	e := New()

	first, err := e.Expand(g, ir.OriginSymbol, nil, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := e.Expand(g, ir.OriginSymbol, nil, rand.New(rand.NewSource(42)))
		require.NoError(t, err)
		assert.Equal(t, first, again, "same seed must yield same expansion")
	}
}

func TestExpandTwoAlternatives(t *testing.T) {
	g := &ir.Grammar{Name: "g", Symbols: map[string][]string{
		"origin": {"#a#"},
		"a":      {"x", "y"},
	}}
	e := New()

	got, err := e.Expand(g, "origin", nil, fixedRNG{idx: 0})
	require.NoError(t, err)
	assert.Equal(t, "x", got)

	got, err = e.Expand(g, "origin", nil, fixedRNG{idx: 1})
	require.NoError(t, err)
	assert.Equal(t, "y", got)
}

func TestExpandVariablesSubstituteLiterally(t *testing.T) {
	g := testGrammar()
	e := New()

	// "name" is both a variable and a grammar symbol; the variable wins and
	// is not re-expanded.
	got, err := e.Expand(g, ir.OriginSymbol, map[string]string{
		"name":  "wren",
		"other": "#name#",
		"place": "forge",
	}, fixedRNG{})
	require.NoError(t, err)
	assert.Equal(t, "Wren met #name# at the forge.", got)
}

func TestExpandModifiers(t *testing.T) {
	g := &ir.Grammar{Name: "g", Symbols: map[string][]string{
		"noun": {"owl"},
	}}
	e := New()

	testCases := []struct {
		template string
		want     string
	}{
		{"#noun.capitalize#", "Owl"},
		{"#noun.s#", "owls"},
		{"#noun.a# #noun#", "an owl owl"},
		{"#noun.capitalizeAll#", "Owl"},
		{"#noun.unknownmod#", "owl"},
	}

	for _, tc := range testCases {
		t.Run(tc.template, func(t *testing.T) {
			got, err := e.ExpandTemplate(g, tc.template, nil, fixedRNG{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExpandRecursiveGrammarTerminates(t *testing.T) {
	// Self-referential with a terminal alternative: fixedRNG{idx:1} always
	// picks the terminal, fixedRNG{idx:0} always recurses.
	g := &ir.Grammar{Name: "names", Symbols: map[string][]string{
		"origin":   {"#syllable#"},
		"syllable": {"#syllable##syllable#", "ka"},
	}}
	e := New()

	got, err := e.Expand(g, "origin", nil, fixedRNG{idx: 1})
	require.NoError(t, err)
	assert.Equal(t, "ka", got)
}

func TestExpandCyclicGrammarFailsWithRecursionError(t *testing.T) {
	g := &ir.Grammar{Name: "loop", Symbols: map[string][]string{
		"origin": {"#origin#"},
	}}
	e := New()

	_, err := e.Expand(g, "origin", nil, fixedRNG{})
	require.Error(t, err)
	assert.True(t, IsRecursionError(err), "want RecursionError, got %v", err)
}

func TestExpandDepthLimitConfigurable(t *testing.T) {
	g := &ir.Grammar{Name: "deep", Symbols: map[string][]string{
		"origin": {"#a#"},
		"a":      {"#b#"},
		"b":      {"leaf"},
	}}

	_, err := New(WithMaxDepth(1)).Expand(g, "origin", nil, fixedRNG{})
	assert.True(t, IsRecursionError(err))

	got, err := New(WithMaxDepth(10)).Expand(g, "origin", nil, fixedRNG{})
	require.NoError(t, err)
	assert.Equal(t, "leaf", got)
}

func TestExpandMissingSymbolRendersPlaceholder(t *testing.T) {
	g := &ir.Grammar{Name: "g", Symbols: map[string][]string{
		"origin": {"hello #nobody#"},
	}}

	got, err := New().Expand(g, "origin", nil, fixedRNG{})
	require.NoError(t, err)
	assert.Equal(t, "hello ((nobody))", got)
}

func TestExpandUnmatchedMarkerIsLiteral(t *testing.T) {
	g := &ir.Grammar{Name: "g", Symbols: map[string][]string{
		"origin": {"50# done"},
	}}

	got, err := New().Expand(g, "origin", nil, fixedRNG{})
	require.NoError(t, err)
	assert.Equal(t, "50# done", got)
}
