package types

import "time"

/*
 * Domain types for automation rules.
 *
 * Provides AutomationRule, Condition, and ActionInstance structures used by
 * internal/engine for evaluation and internal/store for persistence. These
 * types are wire-format agnostic; JSON column encoding happens at the store
 * boundary.
 *
 * Key types:
 *   - AutomationRule: org-scoped binding of one trigger, AND-ed conditions,
 *     and an ordered action list, plus execution metadata
 *   - Condition: single comparison predicate over the event context
 *   - ActionInstance: typed, configured action occurrence within a rule
 */

// Operator identifies one comparison predicate kind.
type Operator string

// Condition operators. Unknown operators evaluate to false (fail closed).
const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpGreaterThan        Operator = "greater_than"
	OpLessThan           Operator = "less_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpStartsWith         Operator = "starts_with"
	OpEndsWith           Operator = "ends_with"
	OpIsEmpty            Operator = "is_empty"
	OpIsNotEmpty         Operator = "is_not_empty"
	OpIsNull             Operator = "is_null"
	OpIsNotNull          Operator = "is_not_null"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "not_in"
)

// KnownOperator reports whether op is a recognized condition operator.
func KnownOperator(op Operator) bool {
	switch op {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan,
		OpGreaterThanOrEqual, OpLessThanOrEqual, OpContains, OpNotContains,
		OpStartsWith, OpEndsWith, OpIsEmpty, OpIsNotEmpty,
		OpIsNull, OpIsNotNull, OpIn, OpNotIn:
		return true
	}
	return false
}

// Condition is a single comparison predicate against the event context.
// Field is a dot-path into the context (e.g. "newData.status").
// Value holds the comparison operand; a []any for in/not_in.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// ActionInstance is one configured action occurrence within a rule.
// Type references a registered ActionDefinition id. Config values may
// contain {{dot.path}} placeholders resolved at execution time.
type ActionInstance struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// AutomationRule binds one trigger, a set of AND-ed conditions, and an
// ordered action list, scoped to an organization. The engine mutates only
// the execution metadata (counters, LastExecuted, LastError); trigger,
// conditions and actions change only through the authoring surface.
type AutomationRule struct {
	ID             RuleID           `json:"id" db:"id"`
	OrganizationID string           `json:"organizationId" db:"organization_id"`
	Name           string           `json:"name" db:"name"`
	Description    string           `json:"description" db:"description"`
	Trigger        string           `json:"trigger" db:"trigger"`
	Conditions     []Condition      `json:"conditions"`
	Actions        []ActionInstance `json:"actions"`
	IsActive       bool             `json:"isActive" db:"is_active"`
	ExecutionCount int64            `json:"executionCount" db:"execution_count"`
	ErrorCount     int64            `json:"errorCount" db:"error_count"`
	LastExecuted   *time.Time       `json:"lastExecuted,omitempty" db:"last_executed"`
	LastError      *string          `json:"lastError,omitempty" db:"last_error"`
	CreatedAt      time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time        `json:"updatedAt" db:"updated_at"`
}
