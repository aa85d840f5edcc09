package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gastrack/relay/internal/types"
)

/*
 * In-memory store implementations.
 *
 * Used by the engine test suite and by embedders that run the engine without
 * a database. All implementations are safe for concurrent use; the counter
 * increments hold the write lock for the full update so they are atomic.
 */

// MemoryRuleStore implements RuleStore backed by a map.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[types.RuleID]*types.AutomationRule
}

// NewMemoryRuleStore creates an empty in-memory rule store.
func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{rules: make(map[types.RuleID]*types.AutomationRule)}
}

// Create implements RuleStore.
func (s *MemoryRuleStore) Create(ctx context.Context, rule *types.AutomationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("rule %s already exists", rule.ID)
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	s.rules[rule.ID] = cloneRule(rule)
	return nil
}

// Get implements RuleStore.
func (s *MemoryRuleStore) Get(ctx context.Context, id types.RuleID) (*types.AutomationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok {
		return nil, types.ErrRuleNotFound
	}
	return cloneRule(rule), nil
}

// Update implements RuleStore. Execution metadata is preserved; only the
// authored fields change.
func (s *MemoryRuleStore) Update(ctx context.Context, rule *types.AutomationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[rule.ID]
	if !ok {
		return types.ErrRuleNotFound
	}

	updated := cloneRule(rule)
	updated.ExecutionCount = existing.ExecutionCount
	updated.ErrorCount = existing.ErrorCount
	updated.LastExecuted = existing.LastExecuted
	updated.LastError = existing.LastError
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	s.rules[rule.ID] = updated
	return nil
}

// Delete implements RuleStore.
func (s *MemoryRuleStore) Delete(ctx context.Context, id types.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return types.ErrRuleNotFound
	}
	delete(s.rules, id)
	return nil
}

// ListByOrg implements RuleStore.
func (s *MemoryRuleStore) ListByOrg(ctx context.Context, orgID string) ([]*types.AutomationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.AutomationRule
	for _, rule := range s.rules {
		if rule.OrganizationID == orgID {
			out = append(out, cloneRule(rule))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListActive implements RuleStore.
func (s *MemoryRuleStore) ListActive(ctx context.Context, orgID, triggerID string) ([]*types.AutomationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.AutomationRule
	for _, rule := range s.rules {
		if rule.IsActive && rule.OrganizationID == orgID && rule.Trigger == triggerID {
			out = append(out, cloneRule(rule))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SetActive implements RuleStore.
func (s *MemoryRuleStore) SetActive(ctx context.Context, id types.RuleID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[id]
	if !ok {
		return types.ErrRuleNotFound
	}
	rule.IsActive = active
	rule.UpdatedAt = time.Now().UTC()
	return nil
}

// IncrementExecutionCount implements RuleStore.
func (s *MemoryRuleStore) IncrementExecutionCount(ctx context.Context, id types.RuleID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[id]
	if !ok {
		return types.ErrRuleNotFound
	}
	rule.ExecutionCount++
	t := at.UTC()
	rule.LastExecuted = &t
	return nil
}

// IncrementErrorCount implements RuleStore.
func (s *MemoryRuleStore) IncrementErrorCount(ctx context.Context, id types.RuleID, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[id]
	if !ok {
		return types.ErrRuleNotFound
	}
	rule.ErrorCount++
	rule.LastError = &msg
	return nil
}

func cloneRule(r *types.AutomationRule) *types.AutomationRule {
	out := *r
	out.Conditions = append([]types.Condition(nil), r.Conditions...)
	out.Actions = append([]types.ActionInstance(nil), r.Actions...)
	return &out
}

// MemoryLogStore implements LogStore backed by a slice per rule.
type MemoryLogStore struct {
	mu   sync.RWMutex
	logs map[types.RuleID][]*types.ExecutionLog
}

// NewMemoryLogStore creates an empty in-memory log store.
func NewMemoryLogStore() *MemoryLogStore {
	return &MemoryLogStore{logs: make(map[types.RuleID][]*types.ExecutionLog)}
}

// Insert implements LogStore.
func (s *MemoryLogStore) Insert(ctx context.Context, entry *types.ExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs[entry.RuleID] = append(s.logs[entry.RuleID], entry)
	return nil
}

// ListByRule implements LogStore, newest first.
func (s *MemoryLogStore) ListByRule(ctx context.Context, ruleID types.RuleID, limit int) ([]*types.ExecutionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.logs[ruleID]
	out := make([]*types.ExecutionLog, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MemoryTemplateStore implements TemplateStore backed by a map.
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*types.Template
}

// NewMemoryTemplateStore creates a template store seeded with the given templates.
func NewMemoryTemplateStore(templates ...*types.Template) *MemoryTemplateStore {
	s := &MemoryTemplateStore{templates: make(map[string]*types.Template)}
	for _, t := range templates {
		s.templates[t.ID] = t
	}
	return s
}

// Put adds or replaces a template.
func (s *MemoryTemplateStore) Put(t *types.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
	return nil
}

// Get implements TemplateStore.
func (s *MemoryTemplateStore) Get(ctx context.Context, id string) (*types.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, types.ErrTemplateNotFound
	}
	return t, nil
}

// MemoryRecordStore implements RecordStore, recording rows per table.
type MemoryRecordStore struct {
	mu     sync.Mutex
	nextID int
	Tables map[string][]map[string]any
}

// NewMemoryRecordStore creates an empty in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{Tables: make(map[string][]map[string]any)}
}

// Insert implements RecordStore.
func (s *MemoryRecordStore) Insert(ctx context.Context, table string, fields map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := fmt.Sprintf("%s-%d", table, s.nextID)
	row := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		row[k] = v
	}
	row["id"] = id
	s.Tables[table] = append(s.Tables[table], row)
	return id, nil
}

// Update implements RecordStore.
func (s *MemoryRecordStore) Update(ctx context.Context, table, recordID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.Tables[table] {
		if row["id"] == recordID {
			for k, v := range fields {
				row[k] = v
			}
			return nil
		}
	}
	return fmt.Errorf("record %s not found in %s", recordID, table)
}
