package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fabulist/fabula/internal/ir"
)

// BaseScope is the world_id marking base (global) rules and grammars,
// shared by every world.
const BaseScope = ""

// CreateWorld registers a world. Idempotent via ON CONFLICT DO NOTHING.
func (s *Store) CreateWorld(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO worlds (id, name)
		VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, name)
	if err != nil {
		return fmt.Errorf("create world %s: %w", id, err)
	}
	return nil
}

// ImportRules stores a compiled rule set under a scope in a single
// transaction. worldID BaseScope imports the rules as base (global).
//
// Positions are assigned from slice order so the engine's registration-order
// tie-breaking survives a reload. Re-importing a rule ID within the same
// scope replaces the stored document.
func (s *Store) ImportRules(ctx context.Context, worldID string, rules []ir.Rule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import rules: begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, rule := range rules {
		doc, err := json.Marshal(rule)
		if err != nil {
			return fmt.Errorf("import rules: marshal %s: %w", rule.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rules (id, world_id, name, format, priority, is_active, position, doc)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id, world_id) DO UPDATE SET
				name = excluded.name,
				format = excluded.format,
				priority = excluded.priority,
				is_active = excluded.is_active,
				position = excluded.position,
				doc = excluded.doc
		`,
			rule.ID,
			worldID,
			rule.Name,
			string(rule.Format),
			rule.Priority,
			rule.IsActive,
			i,
			string(doc),
		)
		if err != nil {
			return fmt.Errorf("import rules: insert %s: %w", rule.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import rules: commit: %w", err)
	}
	return nil
}

// ImportCharacters stores a world's characters in a single transaction.
// Attributes serialize to canonical JSON (sorted keys). Re-importing a
// character ID replaces the stored attributes.
func (s *Store) ImportCharacters(ctx context.Context, worldID string, chars []*ir.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import characters: begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, c := range chars {
		attrs, err := c.Attributes.MarshalJSON()
		if err != nil {
			return fmt.Errorf("import characters: marshal %s: %w", c.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO characters (id, world_id, attributes, alive, position)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id, world_id) DO UPDATE SET
				attributes = excluded.attributes,
				alive = excluded.alive,
				position = excluded.position
		`,
			c.ID,
			worldID,
			string(attrs),
			c.Alive,
			i,
		)
		if err != nil {
			return fmt.Errorf("import characters: insert %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import characters: commit: %w", err)
	}
	return nil
}

// ImportGrammars stores grammars under a scope in a single transaction.
// worldID BaseScope imports them as base (global).
func (s *Store) ImportGrammars(ctx context.Context, worldID string, grammars []*ir.Grammar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import grammars: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, g := range grammars {
		symbols, err := json.Marshal(g.Symbols)
		if err != nil {
			return fmt.Errorf("import grammars: marshal %s: %w", g.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO grammars (name, world_id, symbols)
			VALUES (?, ?, ?)
			ON CONFLICT(name, world_id) DO UPDATE SET
				symbols = excluded.symbols
		`,
			g.Name,
			worldID,
			string(symbols),
		)
		if err != nil {
			return fmt.Errorf("import grammars: insert %s: %w", g.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import grammars: commit: %w", err)
	}
	return nil
}

// CreateTruth persists one timeline event. Idempotent via ON CONFLICT DO
// NOTHING - replaying a run never duplicates truths.
func (s *Store) CreateTruth(ctx context.Context, truth ir.Truth) error {
	affected, err := json.Marshal(truth.Affected)
	if err != nil {
		return fmt.Errorf("create truth %s: marshal affected: %w", truth.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO truths (id, world_id, timestep, rule_id, rule_name, narrative, affected)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		truth.ID,
		truth.WorldID,
		truth.Timestep,
		truth.RuleID,
		truth.RuleName,
		truth.Narrative,
		string(affected),
	)
	if err != nil {
		return fmt.Errorf("create truth %s: %w", truth.ID, err)
	}
	return nil
}
