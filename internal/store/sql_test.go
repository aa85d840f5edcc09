package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gastrack/relay/internal/core/db"
	"github.com/gastrack/relay/internal/types"
)

func sqliteQueries(t *testing.T) *db.Queries {
	t.Helper()

	path := filepath.Join(t.TempDir(), "relay-test.db")
	conn, err := db.Open("sqlite://" + path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.MigrateUp(conn))

	q, err := db.LoadQueries(conn)
	require.NoError(t, err)
	return q
}

func sqlRule(org string) *types.AutomationRule {
	now := time.Now().UTC().Truncate(time.Second)
	return &types.AutomationRule{
		ID:             types.NewRuleID(),
		OrganizationID: org,
		Name:           "overdue escalation",
		Description:    "texts the account manager",
		Trigger:        "rental_overdue",
		Conditions: []types.Condition{
			{Field: "newData.days_overdue", Operator: types.OpGreaterThan, Value: 7.0},
		},
		Actions: []types.ActionInstance{
			{Type: "send_sms", Config: map[string]any{
				"phoneNumber": "{{newData.manager_phone}}",
				"message":     "rental {{newData.id}} is overdue",
			}},
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLRuleStore_RoundTrip(t *testing.T) {
	q := sqliteQueries(t)
	s := NewSQLRuleStore(q)
	ctx := context.Background()

	rule := sqlRule("org-1")
	require.NoError(t, s.Create(ctx, rule))

	got, err := s.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.Name, got.Name)
	assert.Equal(t, rule.Trigger, got.Trigger)
	require.Len(t, got.Conditions, 1)
	assert.Equal(t, types.OpGreaterThan, got.Conditions[0].Operator)
	assert.Equal(t, 7.0, got.Conditions[0].Value, "JSON round trip keeps numbers as float64")
	require.Len(t, got.Actions, 1)
	assert.Equal(t, "send_sms", got.Actions[0].Type)
	assert.True(t, got.CreatedAt.Equal(rule.CreatedAt))

	_, err = s.Get(ctx, types.RuleID("nope"))
	assert.ErrorIs(t, err, types.ErrRuleNotFound)
}

func TestSQLRuleStore_UpdateAndDelete(t *testing.T) {
	q := sqliteQueries(t)
	s := NewSQLRuleStore(q)
	ctx := context.Background()

	rule := sqlRule("org-1")
	require.NoError(t, s.Create(ctx, rule))

	rule.Name = "renamed"
	rule.IsActive = false
	require.NoError(t, s.Update(ctx, rule))

	got, err := s.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.False(t, got.IsActive)

	require.NoError(t, s.Delete(ctx, rule.ID))
	assert.ErrorIs(t, s.Delete(ctx, rule.ID), types.ErrRuleNotFound)

	assert.ErrorIs(t, s.Update(ctx, rule), types.ErrRuleNotFound)
}

func TestSQLRuleStore_Listing(t *testing.T) {
	q := sqliteQueries(t)
	s := NewSQLRuleStore(q)
	ctx := context.Background()

	first := sqlRule("org-1")
	first.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first.UpdatedAt = first.CreatedAt
	second := sqlRule("org-1")
	second.CreatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	second.UpdatedAt = second.CreatedAt
	inactive := sqlRule("org-1")
	inactive.IsActive = false
	inactive.CreatedAt = time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	inactive.UpdatedAt = inactive.CreatedAt
	otherOrg := sqlRule("org-2")
	otherOrg.CreatedAt = time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	otherOrg.UpdatedAt = otherOrg.CreatedAt

	for _, r := range []*types.AutomationRule{first, second, inactive, otherOrg} {
		require.NoError(t, s.Create(ctx, r))
	}

	byOrg, err := s.ListByOrg(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, byOrg, 3)
	assert.Equal(t, second.ID, byOrg[0].ID, "newest first")

	active, err := s.ListActive(ctx, "org-1", "rental_overdue")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID, "oldest first for stable execution order")
}

func TestSQLRuleStore_SetActiveAndCounters(t *testing.T) {
	q := sqliteQueries(t)
	s := NewSQLRuleStore(q)
	ctx := context.Background()

	rule := sqlRule("org-1")
	require.NoError(t, s.Create(ctx, rule))

	require.NoError(t, s.SetActive(ctx, rule.ID, false))
	got, err := s.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.IncrementExecutionCount(ctx, rule.ID, at))
	require.NoError(t, s.IncrementExecutionCount(ctx, rule.ID, at.Add(time.Minute)))
	require.NoError(t, s.IncrementErrorCount(ctx, rule.ID, "webhook failed: 500"))

	got, err = s.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ExecutionCount)
	assert.Equal(t, int64(1), got.ErrorCount)
	require.NotNil(t, got.LastExecuted)
	assert.True(t, got.LastExecuted.Equal(at.Add(time.Minute)))
	require.NotNil(t, got.LastError)
	assert.Equal(t, "webhook failed: 500", *got.LastError)

	assert.ErrorIs(t, s.IncrementExecutionCount(ctx, "nope", at), types.ErrRuleNotFound)
}

func TestSQLLogStore(t *testing.T) {
	q := sqliteQueries(t)
	rules := NewSQLRuleStore(q)
	logs := NewSQLLogStore(q)
	ctx := context.Background()

	rule := sqlRule("org-1")
	require.NoError(t, rules.Create(ctx, rule))

	errMsg := "failed to update execution count"
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		entry := &types.ExecutionLog{
			ID:            types.NewLogID(),
			RuleID:        rule.ID,
			TriggerEvent:  "rental_overdue",
			Context:       map[string]any{"organizationId": "org-1"},
			ConditionsMet: true,
			ActionsExecuted: []types.ActionInstance{
				{Type: "send_sms", Config: map[string]any{"phoneNumber": "+1555", "message": "hi"}},
			},
			Results: []types.ActionResult{
				{Action: "send_sms", Success: true, Result: map[string]any{"messageId": "sms-1"}},
			},
			ExecutedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if i == 2 {
			entry.ConditionsMet = false
			entry.Error = &errMsg
		}
		require.NoError(t, logs.Insert(ctx, entry))
	}

	got, err := logs.ListByRule(ctx, rule.ID, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].ConditionsMet, "newest first")
	require.NotNil(t, got[0].Error)
	assert.Equal(t, errMsg, *got[0].Error)
	assert.True(t, got[1].ConditionsMet)
	require.Len(t, got[1].Results, 1)
	assert.Equal(t, "sms-1", got[1].Results[0].Result["messageId"])
}

func TestSQLTemplateStore(t *testing.T) {
	q := sqliteQueries(t)
	s := NewSQLTemplateStore(q)
	ctx := context.Background()

	_, err := q.DB().Exec(
		"INSERT INTO notification_templates (id, subject, body) VALUES (?, ?, ?)",
		"welcome", "hello {{newData.name}}", "welcome aboard",
	)
	require.NoError(t, err)

	tpl, err := s.Get(ctx, "welcome")
	require.NoError(t, err)
	assert.Equal(t, "hello {{newData.name}}", tpl.Subject)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrTemplateNotFound)
}

func TestSQLRecordStore(t *testing.T) {
	q := sqliteQueries(t)
	s := NewSQLRecordStore(q)
	ctx := context.Background()

	id, err := s.Insert(ctx, "tasks", map[string]any{
		"title":           "inspect bottle B-1",
		"description":     "flagged by automation",
		"priority":        "high",
		"status":          "pending",
		"organization_id": "org-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = s.Insert(ctx, "bottles", map[string]any{"status": "new"})
	assert.ErrorIs(t, err, types.ErrInvalidTable)

	require.NoError(t, s.Update(ctx, "tasks", id, map[string]any{"status": "done"}))

	var status string
	require.NoError(t, q.DB().Get(&status, "SELECT status FROM tasks WHERE id = ?", id))
	assert.Equal(t, "done", status)

	assert.ErrorIs(t, s.Update(ctx, "tasks; DROP TABLE tasks", id, map[string]any{"x": 1}), types.ErrInvalidTable)
	assert.Error(t, s.Update(ctx, "tasks", id, map[string]any{"bad-col": 1}))
	assert.Error(t, s.Update(ctx, "tasks", "missing", map[string]any{"status": "done"}))
}
