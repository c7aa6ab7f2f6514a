package seed

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/fabulist/fabula/internal/ir"
	"github.com/fabulist/fabula/internal/world"
)

// Seed is a decoded world seed, ready to import through the store.
type Seed struct {
	World      WorldSeed
	Characters []*ir.Entity
	Zones      []world.Zone
	Grammars   []*ir.Grammar
}

// WorldSeed identifies the seeded world.
type WorldSeed struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// rawSeed mirrors the CUE seed shape for decoding. Character attributes
// arrive as any-typed trees and convert through ir.FromAny.
type rawSeed struct {
	World      WorldSeed                      `json:"world"`
	Characters []rawCharacter                 `json:"characters"`
	Zones      []world.Zone                   `json:"zones"`
	Grammars   map[string]map[string][]string `json:"grammars"`
}

type rawCharacter struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
	Alive      *bool          `json:"alive"`
}

// Load reads a world seed from a directory of CUE files.
func Load(dir string) (*Seed, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("seed directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("seed path %s is not a directory", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}
	return decodeSeed(value)
}

// Parse decodes a world seed from CUE source text. Used for the embedded
// default seed and in tests.
func Parse(source string) (*Seed, error) {
	value := cuecontext.New().CompileString(source)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling CUE source: %w", err)
	}
	return decodeSeed(value)
}

func decodeSeed(value cue.Value) (*Seed, error) {
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("seed is not concrete: %w", err)
	}

	var raw rawSeed
	if err := value.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding seed: %w", err)
	}
	if raw.World.ID == "" {
		return nil, fmt.Errorf("seed must declare world.id")
	}

	s := &Seed{World: raw.World, Zones: raw.Zones}

	for _, rc := range raw.Characters {
		if rc.ID == "" {
			return nil, fmt.Errorf("seed character missing id")
		}
		e := ir.NewEntity(rc.ID)
		if rc.Alive != nil {
			e.Alive = *rc.Alive
		}
		for k, v := range rc.Attributes {
			conv, err := ir.FromAny(v)
			if err != nil {
				return nil, fmt.Errorf("character %s attribute %q: %w", rc.ID, k, err)
			}
			e.Set(k, conv)
		}
		s.Characters = append(s.Characters, e)
	}

	// Grammar iteration order does not matter: grammars register by name.
	for name, symbols := range raw.Grammars {
		g := &ir.Grammar{Name: name, Symbols: symbols}
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("grammar %s: %w", name, err)
		}
		s.Grammars = append(s.Grammars, g)
	}

	return s, nil
}
