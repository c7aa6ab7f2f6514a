// Package world holds the mutable simulation state for one world.
//
// Each world owns its own State; worlds never share entities, zones, or any
// other mutable structure. Entity iteration order is registration order so
// every traversal of the world is deterministic.
package world

import (
	"fmt"

	"github.com/fabulist/fabula/internal/ir"
)

// State is the mutable store of entities and zones for a single world.
//
// State is not safe for concurrent use. The simulation engine is the single
// writer; rule evaluation within a timestep is strictly sequential.
type State struct {
	worldID  string
	entities map[string]*ir.Entity
	order    []string // registration order, preserved for deterministic iteration
	zones    []Zone
}

// New creates an empty world state.
func New(worldID string) *State {
	return &State{
		worldID:  worldID,
		entities: make(map[string]*ir.Entity),
	}
}

// WorldID returns the owning world's identifier.
func (s *State) WorldID() string {
	return s.worldID
}

// AddEntity registers an entity. Re-adding an existing ID replaces the
// entity in place without changing its registration order.
func (s *State) AddEntity(e *ir.Entity) {
	if _, exists := s.entities[e.ID]; !exists {
		s.order = append(s.order, e.ID)
	}
	s.entities[e.ID] = e
}

// Entity returns the entity with the given ID, or nil if absent.
func (s *State) Entity(id string) *ir.Entity {
	return s.entities[id]
}

// Entities returns all entities in registration order.
func (s *State) Entities() []*ir.Entity {
	out := make([]*ir.Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entities[id])
	}
	return out
}

// Len returns the number of registered entities.
func (s *State) Len() int {
	return len(s.entities)
}

// SetAttribute mutates an entity attribute directly.
// Returns an error if the entity does not exist.
func (s *State) SetAttribute(entityID, attr string, v ir.Value) error {
	e := s.entities[entityID]
	if e == nil {
		return fmt.Errorf("entity %q not found in world %q", entityID, s.worldID)
	}
	e.Set(attr, v)
	return nil
}

// Snapshot returns a structural deep copy of every live entity's attributes.
// The returned snapshot shares no mutable references with the live state.
func (s *State) Snapshot() ir.WorldSnapshot {
	snap := make(ir.WorldSnapshot, len(s.entities))
	for _, id := range s.order {
		e := s.entities[id]
		if !e.Alive {
			continue
		}
		snap[id] = ir.Clone(e.Attributes).(ir.Map)
	}
	return snap
}

// RegisterZone adds a settlement zone to the world.
func (s *State) RegisterZone(z Zone) {
	s.zones = append(s.zones, z)
}

// Zones returns the registered zones.
func (s *State) Zones() []Zone {
	return s.zones
}

// InSettlement reports whether a position falls inside any registered zone.
// Positions outside every zone are wilderness.
func (s *State) InSettlement(x, y float64) bool {
	for _, z := range s.zones {
		if z.Contains(x, y) {
			return true
		}
	}
	return false
}
