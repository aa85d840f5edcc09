package types

import "errors"

// Sentinel errors for relay operations.
var (
	// ErrUnknownTrigger indicates a rule references an unregistered trigger id.
	ErrUnknownTrigger = errors.New("unknown trigger")

	// ErrUnknownAction indicates an action instance references an unregistered action type.
	ErrUnknownAction = errors.New("unknown action type")

	// ErrUnknownOperator indicates a condition uses an unrecognized operator.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrMissingConfigField indicates a required action config field is absent.
	ErrMissingConfigField = errors.New("missing required config field")

	// ErrInvalidRule indicates a rule failed authoring-time validation.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrRuleNotFound indicates the rule id does not exist in the store.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrTemplateNotFound indicates the referenced notification template does not exist.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrMissingOrganization indicates a change-feed record carries no organization_id.
	ErrMissingOrganization = errors.New("missing organization_id")

	// ErrInvalidTable indicates a record store operation names a table that is
	// not a valid SQL identifier.
	ErrInvalidTable = errors.New("invalid table name")
)
