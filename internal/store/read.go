package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fabulist/fabula/internal/ir"
)

// GetRulesByWorld returns a world's rules in import (position) order.
// Returns an empty slice (not nil) when the world has no rules.
func (s *Store) GetRulesByWorld(ctx context.Context, worldID string) ([]ir.Rule, error) {
	return s.rulesForScope(ctx, worldID)
}

// GetBaseRules returns the base (global) rule set in import order.
func (s *Store) GetBaseRules(ctx context.Context) ([]ir.Rule, error) {
	return s.rulesForScope(ctx, BaseScope)
}

func (s *Store) rulesForScope(ctx context.Context, scope string) ([]ir.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc
		FROM rules
		WHERE world_id = ?
		ORDER BY position ASC, id COLLATE BINARY ASC
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	rules := []ir.Rule{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		var rule ir.Rule
		if err := json.Unmarshal([]byte(doc), &rule); err != nil {
			return nil, fmt.Errorf("decode rule document: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}

	return rules, nil
}

// GetCharactersByWorld returns a world's characters in import order.
// Returns an empty slice (not nil) when the world has no characters.
func (s *Store) GetCharactersByWorld(ctx context.Context, worldID string) ([]*ir.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, attributes, alive
		FROM characters
		WHERE world_id = ?
		ORDER BY position ASC, id COLLATE BINARY ASC
	`, worldID)
	if err != nil {
		return nil, fmt.Errorf("query characters: %w", err)
	}
	defer rows.Close()

	chars := []*ir.Entity{}
	for rows.Next() {
		var (
			id    string
			attrs string
			alive bool
		)
		if err := rows.Scan(&id, &attrs, &alive); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		var m ir.Map
		if err := json.Unmarshal([]byte(attrs), &m); err != nil {
			return nil, fmt.Errorf("decode attributes for %s: %w", id, err)
		}
		chars = append(chars, &ir.Entity{ID: id, Attributes: m, Alive: alive})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate characters: %w", err)
	}

	return chars, nil
}

// GetGrammarsByWorld returns a world's grammars ordered by name.
// Returns an empty slice (not nil) when the world has no grammars.
func (s *Store) GetGrammarsByWorld(ctx context.Context, worldID string) ([]*ir.Grammar, error) {
	return s.grammarsForScope(ctx, worldID)
}

// GetBaseGrammars returns the base (global) grammars ordered by name.
func (s *Store) GetBaseGrammars(ctx context.Context) ([]*ir.Grammar, error) {
	return s.grammarsForScope(ctx, BaseScope)
}

func (s *Store) grammarsForScope(ctx context.Context, scope string) ([]*ir.Grammar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, symbols
		FROM grammars
		WHERE world_id = ?
		ORDER BY name COLLATE BINARY ASC
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("query grammars: %w", err)
	}
	defer rows.Close()

	grammars := []*ir.Grammar{}
	for rows.Next() {
		var name, symbols string
		if err := rows.Scan(&name, &symbols); err != nil {
			return nil, fmt.Errorf("scan grammar: %w", err)
		}
		g := &ir.Grammar{Name: name}
		if err := json.Unmarshal([]byte(symbols), &g.Symbols); err != nil {
			return nil, fmt.Errorf("decode symbols for %s: %w", name, err)
		}
		grammars = append(grammars, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grammars: %w", err)
	}

	return grammars, nil
}

// GetTruthsByWorld returns a world's timeline in timestep order.
// Returns an empty slice (not nil) when the world has no truths.
func (s *Store) GetTruthsByWorld(ctx context.Context, worldID string) ([]ir.Truth, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, world_id, timestep, rule_id, rule_name, narrative, affected
		FROM truths
		WHERE world_id = ?
		ORDER BY timestep ASC, id COLLATE BINARY ASC
	`, worldID)
	if err != nil {
		return nil, fmt.Errorf("query truths: %w", err)
	}
	defer rows.Close()

	truths := []ir.Truth{}
	for rows.Next() {
		var (
			t        ir.Truth
			affected string
		)
		if err := rows.Scan(&t.ID, &t.WorldID, &t.Timestep, &t.RuleID, &t.RuleName, &t.Narrative, &affected); err != nil {
			return nil, fmt.Errorf("scan truth: %w", err)
		}
		if err := json.Unmarshal([]byte(affected), &t.Affected); err != nil {
			return nil, fmt.Errorf("decode affected for %s: %w", t.ID, err)
		}
		truths = append(truths, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate truths: %w", err)
	}

	return truths, nil
}
