// Package store defines the persistence contracts of the rule engine and
// provides SQL and in-memory implementations.
//
// The engine reads rules and appends execution logs; the authoring API does
// rule CRUD. Counter updates are dedicated increment operations so concurrent
// executions of the same rule never lose updates to read-modify-write races.
package store

import (
	"context"
	"time"

	"github.com/gastrack/relay/internal/types"
)

// RuleStore manages automation rule persistence.
type RuleStore interface {
	// Create persists a new rule.
	Create(ctx context.Context, rule *types.AutomationRule) error

	// Get returns the rule or types.ErrRuleNotFound.
	Get(ctx context.Context, id types.RuleID) (*types.AutomationRule, error)

	// Update replaces the authored fields of an existing rule.
	Update(ctx context.Context, rule *types.AutomationRule) error

	// Delete removes the rule or returns types.ErrRuleNotFound.
	Delete(ctx context.Context, id types.RuleID) error

	// ListByOrg returns all rules for an organization, newest first.
	ListByOrg(ctx context.Context, orgID string) ([]*types.AutomationRule, error)

	// ListActive returns active rules matching (org, trigger).
	ListActive(ctx context.Context, orgID, triggerID string) ([]*types.AutomationRule, error)

	// SetActive toggles a rule without touching its other fields.
	SetActive(ctx context.Context, id types.RuleID, active bool) error

	// IncrementExecutionCount atomically bumps execution_count and records
	// the execution time. Must be a single UPDATE, not read-then-write.
	IncrementExecutionCount(ctx context.Context, id types.RuleID, at time.Time) error

	// IncrementErrorCount atomically bumps error_count and records the
	// failure message.
	IncrementErrorCount(ctx context.Context, id types.RuleID, msg string) error
}

// LogStore appends and queries execution logs. Entries are immutable.
type LogStore interface {
	Insert(ctx context.Context, entry *types.ExecutionLog) error
	ListByRule(ctx context.Context, ruleID types.RuleID, limit int) ([]*types.ExecutionLog, error)
}

// TemplateStore resolves notification templates by id.
type TemplateStore interface {
	Get(ctx context.Context, id string) (*types.Template, error)
}

// RecordStore provides the generic row operations used by create_task and
// update_record. Table names are validated against injection before any SQL
// is built.
type RecordStore interface {
	Insert(ctx context.Context, table string, fields map[string]any) (string, error)
	Update(ctx context.Context, table, recordID string, fields map[string]any) error
}
