// Package types provides domain models shared across relay components.
//
// Zero-dependency design: types.go, rules.go and errors.go use only the
// standard library so SDK-style consumers can import the models without
// pulling in engine or storage dependencies. ID utilities in ids.go import
// uuid but are isolated for selective inclusion.
package types

import "time"

// FieldType enumerates the value types an action config field accepts.
type FieldType string

// Config field types understood by the rule-authoring surface.
const (
	FieldString FieldType = "string"
	FieldText   FieldType = "text"
	FieldNumber FieldType = "number"
	FieldDate   FieldType = "date"
	FieldJSON   FieldType = "json"
)

// TriggerDefinition describes one class of domain event rules can react to.
// Immutable after registration; not persisted.
type TriggerDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Fields      []string `json:"fields"`
}

// ConfigField describes one configurable field of an action.
type ConfigField struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`
}

// ActionDefinition describes one configurable side-effecting operation.
// Immutable after registration; not persisted.
type ActionDefinition struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	ConfigFields []ConfigField `json:"configFields"`
}

// ActionResult captures the outcome of one attempted action within a rule
// invocation. Exactly one entry is produced per configured action.
type ActionResult struct {
	Action  string         `json:"action"`
	Success bool           `json:"success"`
	Result  map[string]any `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ExecutionLog is the append-only record of one rule invocation that reached
// condition evaluation. Never mutated after insert.
type ExecutionLog struct {
	ID              LogID            `json:"id" db:"id"`
	RuleID          RuleID           `json:"ruleId" db:"rule_id"`
	TriggerEvent    string           `json:"triggerEvent" db:"trigger_event"`
	Context         map[string]any   `json:"context"`
	ConditionsMet   bool             `json:"conditionsMet" db:"conditions_met"`
	ActionsExecuted []ActionInstance `json:"actionsExecuted"`
	Results         []ActionResult   `json:"results"`
	Error           *string          `json:"error,omitempty" db:"error"`
	ExecutedAt      time.Time        `json:"executedAt" db:"executed_at"`
}

// Template is a stored subject/body pair used by the messaging actions.
type Template struct {
	ID      string `json:"id" db:"id"`
	Subject string `json:"subject" db:"subject"`
	Body    string `json:"body" db:"body"`
}
