package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gastrack/relay/internal/types"
)

func memRule(org, trigger string) *types.AutomationRule {
	now := time.Now().UTC()
	return &types.AutomationRule{
		ID:             types.NewRuleID(),
		OrganizationID: org,
		Name:           "rule",
		Trigger:        trigger,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMemoryRuleStore_CRUD(t *testing.T) {
	s := NewMemoryRuleStore()
	ctx := context.Background()

	rule := memRule("org-1", "bottle_created")
	require.NoError(t, s.Create(ctx, rule))

	got, err := s.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.ID, got.ID)

	// Mutating the returned copy must not affect the store.
	got.Name = "mutated"
	again, err := s.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "rule", again.Name)

	rule.Name = "renamed"
	require.NoError(t, s.Update(ctx, rule))
	got, err = s.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	require.NoError(t, s.Delete(ctx, rule.ID))
	_, err = s.Get(ctx, rule.ID)
	assert.ErrorIs(t, err, types.ErrRuleNotFound)
}

func TestMemoryRuleStore_ListActive(t *testing.T) {
	s := NewMemoryRuleStore()
	ctx := context.Background()

	matching := memRule("org-1", "bottle_created")
	inactive := memRule("org-1", "bottle_created")
	inactive.IsActive = false
	otherTrigger := memRule("org-1", "rental_created")
	otherOrg := memRule("org-2", "bottle_created")

	for _, r := range []*types.AutomationRule{matching, inactive, otherTrigger, otherOrg} {
		require.NoError(t, s.Create(ctx, r))
	}

	rules, err := s.ListActive(ctx, "org-1", "bottle_created")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, matching.ID, rules[0].ID)
}

func TestMemoryRuleStore_ConcurrentIncrements(t *testing.T) {
	s := NewMemoryRuleStore()
	ctx := context.Background()

	rule := memRule("org-1", "bottle_created")
	require.NoError(t, s.Create(ctx, rule))

	const n = 100
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_ = s.IncrementExecutionCount(ctx, rule.ID, time.Now())
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}

	got, err := s.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.ExecutionCount, "no increment may be lost")
}

func TestMemoryRuleStore_UpdatePreservesCounters(t *testing.T) {
	s := NewMemoryRuleStore()
	ctx := context.Background()

	rule := memRule("org-1", "bottle_created")
	require.NoError(t, s.Create(ctx, rule))
	require.NoError(t, s.IncrementExecutionCount(ctx, rule.ID, time.Now()))
	require.NoError(t, s.IncrementErrorCount(ctx, rule.ID, "boom"))

	rule.Name = "renamed"
	require.NoError(t, s.Update(ctx, rule))

	got, err := s.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ExecutionCount)
	assert.Equal(t, int64(1), got.ErrorCount)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "boom", *got.LastError)
}

func TestMemoryLogStore(t *testing.T) {
	s := NewMemoryLogStore()
	ctx := context.Background()

	ruleID := types.NewRuleID()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Insert(ctx, &types.ExecutionLog{
			ID:         types.NewLogID(),
			RuleID:     ruleID,
			ExecutedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.Insert(ctx, &types.ExecutionLog{
		ID:     types.NewLogID(),
		RuleID: types.NewRuleID(),
	}))

	logs, err := s.ListByRule(ctx, ruleID, 3)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.True(t, logs[0].ExecutedAt.After(logs[1].ExecutedAt), "newest first")
	assert.True(t, logs[1].ExecutedAt.After(logs[2].ExecutedAt))
}

func TestMemoryRecordStore(t *testing.T) {
	s := NewMemoryRecordStore()
	ctx := context.Background()

	id, err := s.Insert(ctx, "tasks", map[string]any{"title": "check valve"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NoError(t, s.Update(ctx, "tasks", id, map[string]any{"status": "done"}))
	assert.Equal(t, "done", s.Tables["tasks"][0]["status"])

	err = s.Update(ctx, "tasks", "missing", map[string]any{"status": "done"})
	assert.Error(t, err)
}

func TestMemoryTemplateStore(t *testing.T) {
	s := NewMemoryTemplateStore(&types.Template{ID: "welcome", Body: "hello"})
	ctx := context.Background()

	tpl, err := s.Get(ctx, "welcome")
	require.NoError(t, err)
	assert.Equal(t, "hello", tpl.Body)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrTemplateNotFound)

	require.NoError(t, s.Put(&types.Template{ID: fmt.Sprintf("t-%d", 1), Body: "x"}))
	_, err = s.Get(ctx, "t-1")
	assert.NoError(t, err)
}
