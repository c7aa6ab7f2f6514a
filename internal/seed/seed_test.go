package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabulist/fabula/internal/ir"
)

func TestDefaultSeedDecodes(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "demo", s.World.ID)
	assert.Equal(t, "Demo World", s.World.Name)

	require.Len(t, s.Characters, 2)
	asha := s.Characters[0]
	assert.Equal(t, "char-asha", asha.ID)
	assert.True(t, asha.Alive)
	assert.True(t, ir.Equal(ir.String("Asha"), asha.Get("name")))
	assert.True(t, ir.Equal(ir.Num(80), asha.Get("energy")))

	require.Len(t, s.Zones, 1)
	assert.Equal(t, "town", s.Zones[0].Name)
	assert.InDelta(t, 10.0, s.Zones[0].Radius, 1e-9)

	require.Len(t, s.Grammars, 2)
	byName := map[string]map[string][]string{}
	for _, g := range s.Grammars {
		byName[g.Name] = g.Symbols
	}
	require.Contains(t, byName, "names")
	require.Contains(t, byName, "greeting")
	assert.NotEmpty(t, byName["names"][ir.OriginSymbol])
	assert.Contains(t, byName["names"]["syllable"], "#syllable#n",
		"names grammar keeps a self-referential alternative")
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	src := `
world: {id: "w-load", name: "Loaded"}
characters: [{id: "char-1", attributes: {name: "Solo"}, alive: false}]
zones: []
grammars: {}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.cue"), []byte(src), 0o644))

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "w-load", s.World.ID)
	require.Len(t, s.Characters, 1)
	assert.False(t, s.Characters[0].Alive)
	assert.Empty(t, s.Grammars)
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestParseRejectsBadSeeds(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr string
	}{
		{
			name:    "not concrete",
			source:  `world: {id: string, name: "x"}`,
			wantErr: "concrete",
		},
		{
			name:    "missing world id",
			source:  `world: {id: "", name: "x"}`,
			wantErr: "world.id",
		},
		{
			name:    "character without id",
			source:  `world: {id: "w", name: "x"}, characters: [{id: "", attributes: {}}]`,
			wantErr: "missing id",
		},
		{
			name:    "grammar symbol with no alternatives",
			source:  `world: {id: "w", name: "x"}, grammars: {bad: {origin: []}}`,
			wantErr: "no alternatives",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.source)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
