// Package rules manages the prioritized fraud rule set.
//
// Rules are evaluated ahead of the scoring model: the enabled rule with the
// lowest id that matches a transaction decides it, and the model is never
// consulted. Rule ids double as evaluation priority and are kept contiguous
// (1..N, no gaps, no duplicates) across every mutation: deleting a rule
// renumbers the survivors down in their original relative order.
package rules

import (
	"context"
	"errors"
)

// ErrRuleNotFound is returned by Update and Delete for an absent rule id.
var ErrRuleNotFound = errors.New("rules: rule not found")

// Rule is a single author-supplied condition/action pair.
//
// Condition is a boolean expression over transaction fields (see the
// condition package). Action is free text: if it contains a safe keyword the
// matched transaction is cleared, otherwise it is flagged; the decision
// package owns that derivation.
type Rule struct {
	ID        int    `json:"id"`
	Condition string `json:"condition"`
	Action    string `json:"action"`
	Enabled   bool   `json:"enabled"`
}

// Store persists rules and owns the contiguous-id invariant.
//
// Mutations are serialized against each other: Delete's renumbering must
// never interleave with a concurrent Create or Update. Reads observe either
// the pre- or post-state of any single mutation, never a partial renumber.
type Store interface {
	// List returns every rule ordered by ascending id.
	List(ctx context.Context) ([]Rule, error)

	// ListActive returns enabled rules ordered by ascending id. This order
	// is the evaluation priority: lower id wins.
	ListActive(ctx context.Context) ([]Rule, error)

	// Create appends a rule with id = max(id)+1 (1 if empty) and returns
	// the assigned id.
	Create(ctx context.Context, condition, action string, enabled bool) (int, error)

	// Update replaces condition, action, and enabled for an existing id.
	// Ids are never renumbered by Update.
	Update(ctx context.Context, id int, condition, action string, enabled bool) error

	// Delete removes a rule and compacts the id sequence: survivors are
	// renumbered 1..N-1 preserving relative order, atomically.
	Delete(ctx context.Context, id int) error
}
