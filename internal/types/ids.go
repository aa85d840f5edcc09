package types

import "github.com/google/uuid"

// RuleID represents a UUIDv7 automation rule identifier.
// String alias enables type safety while maintaining JSON string serialization.
// UUIDv7 time-ordering ensures sequential IDs cluster in B-tree indexes.
type RuleID string

// LogID represents a UUIDv7 execution log identifier.
type LogID string

// TaskID represents a UUIDv7 task identifier created by the create_task action.
type TaskID string

// NewRuleID generates a UUIDv7 rule identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewLogID generates a UUIDv7 execution log identifier.
func NewLogID() LogID {
	return LogID(uuid.Must(uuid.NewV7()).String())
}

// NewTaskID generates a UUIDv7 task identifier.
func NewTaskID() TaskID {
	return TaskID(uuid.Must(uuid.NewV7()).String())
}

// ParseRuleID validates and converts a string to RuleID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseRuleID(s string) (RuleID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RuleID(s), nil
}
