package ir

// Entity is a character or other simulated thing in a world. The attribute
// map is mutable and owned by WorldState; snapshots taken by the tracker are
// deep copies and never share references with it.
type Entity struct {
	ID         string `json:"id"`
	Attributes Map    `json:"attributes"`
	Alive      bool   `json:"alive"`
}

// NewEntity creates a live entity with an empty attribute map.
func NewEntity(id string) *Entity {
	return &Entity{ID: id, Attributes: make(Map), Alive: true}
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	return &Entity{
		ID:         e.ID,
		Attributes: Clone(e.Attributes).(Map),
		Alive:      e.Alive,
	}
}

// Get returns an attribute value, or nil if absent.
func (e *Entity) Get(attr string) Value {
	return e.Attributes[attr]
}

// GetString returns a string attribute, or "" if absent or not a string.
func (e *Entity) GetString(attr string) string {
	s, _ := AsString(e.Attributes[attr])
	return s
}

// GetNum returns a numeric attribute and whether it was present as a number.
func (e *Entity) GetNum(attr string) (float64, bool) {
	return AsNum(e.Attributes[attr])
}

// Set stores an attribute value.
func (e *Entity) Set(attr string, v Value) {
	e.Attributes[attr] = v
}

// RelationAttr is the attribute key for a directed relation from one entity
// to another: RelationAttr("relationship", "char-2") == "relationship:char-2".
// Relational predicates read these keys and relationship_change effects
// write them.
func RelationAttr(name, otherID string) string {
	return name + ":" + otherID
}
