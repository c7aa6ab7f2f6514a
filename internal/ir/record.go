package ir

// The record types below form the execution-log export contract consumed by
// the game/UI layer, so their JSON tags use that contract's camelCase names
// rather than the snake_case used elsewhere in the IR.

// EffectExecutionRecord captures the outcome of one effect application.
// Failed effects carry a human-readable description; execution of the rule's
// remaining effects continues regardless.
type EffectExecutionRecord struct {
	Type        EffectType `json:"type"`
	Description string     `json:"description"`
	Success     bool       `json:"success"`
	TargetID    string     `json:"targetId,omitempty"`
}

// RuleExecutionRecord is one entry in the append-only firing log: a single
// rule firing at a single timestep, with its per-effect outcomes in
// declaration order. Timesteps are monotonically non-decreasing within a run.
type RuleExecutionRecord struct {
	RuleID           string                  `json:"ruleId"`
	RuleName         string                  `json:"ruleName"`
	RuleType         RuleType                `json:"ruleType"`
	Timestep         int64                   `json:"timestep"`
	Effects          []EffectExecutionRecord `json:"effects"`
	Narrative        string                  `json:"narrativeGenerated,omitempty"`
	AffectedEntities []string                `json:"affectedEntities,omitempty"`
}

// AttributeSnapshot is an immutable deep copy of one entity's attributes at
// a timestep. Never mutated after creation.
type AttributeSnapshot = Map

// WorldSnapshot maps entity ID to its attribute snapshot for one timestep.
type WorldSnapshot map[string]AttributeSnapshot

// AttributeChange is one attribute difference between two snapshots of the
// same entity. An attribute present on only one side reports Absent for the
// missing side.
type AttributeChange struct {
	Attribute string `json:"attribute"`
	OldValue  Value  `json:"oldValue"`
	NewValue  Value  `json:"newValue"`
}

// ExecutionLog is the JSON-serializable export of a run: the ordered firing
// log plus per-timestep character snapshots. This is the contract the UI
// layer consumes to render timelines and character history diffs.
type ExecutionLog struct {
	RuleExecutionSequence []RuleExecutionRecord   `json:"ruleExecutionSequence"`
	CharacterSnapshots    map[int64]WorldSnapshot `json:"characterSnapshots"`
}

// Truth is a persisted timeline event produced by rule execution. Truths are
// the durable historical record written through the persistence layer.
type Truth struct {
	ID        string   `json:"id"`
	WorldID   string   `json:"world_id"`
	Timestep  int64    `json:"timestep"`
	RuleID    string   `json:"rule_id"`
	RuleName  string   `json:"rule_name"`
	Narrative string   `json:"narrative,omitempty"`
	Affected  []string `json:"affected,omitempty"`
}
