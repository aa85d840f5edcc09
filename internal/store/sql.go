package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gastrack/relay/internal/core/db"
	"github.com/gastrack/relay/internal/types"
)

/*
 * SQL-backed stores.
 *
 * Conditions, actions, contexts, and results are stored as JSON columns;
 * the row structs below are the flat scan targets and the (de)serialization
 * happens at this boundary. Timestamps are RFC3339 UTC TEXT so sqlite and
 * postgres share one code path and ORDER BY sorts chronologically.
 *
 * Counter updates are single UPDATE statements with arithmetic in SQL, so
 * concurrent invocations of the same rule never lose increments.
 */

// identRe restricts dynamic table and column names in RecordStore. Values
// always go through placeholders; identifiers cannot, so they are validated
// instead.
var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ruleRow is the flat scan target for automation_rules.
type ruleRow struct {
	ID             string  `db:"id"`
	OrganizationID string  `db:"organization_id"`
	Name           string  `db:"name"`
	Description    string  `db:"description"`
	TriggerEvent   string  `db:"trigger_event"`
	Conditions     []byte  `db:"conditions"`
	Actions        []byte  `db:"actions"`
	IsActive       bool    `db:"is_active"`
	ExecutionCount int64   `db:"execution_count"`
	ErrorCount     int64   `db:"error_count"`
	LastExecuted   *string `db:"last_executed"`
	LastError      *string `db:"last_error"`
	CreatedAt      string  `db:"created_at"`
	UpdatedAt      string  `db:"updated_at"`
}

func (r *ruleRow) toRule() (*types.AutomationRule, error) {
	rule := &types.AutomationRule{
		ID:             types.RuleID(r.ID),
		OrganizationID: r.OrganizationID,
		Name:           r.Name,
		Description:    r.Description,
		Trigger:        r.TriggerEvent,
		IsActive:       r.IsActive,
		ExecutionCount: r.ExecutionCount,
		ErrorCount:     r.ErrorCount,
		LastError:      r.LastError,
	}
	if err := json.Unmarshal(r.Conditions, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("rule %s has invalid conditions: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.Actions, &rule.Actions); err != nil {
		return nil, fmt.Errorf("rule %s has invalid actions: %w", r.ID, err)
	}

	var err error
	if rule.CreatedAt, err = parseTS(r.CreatedAt); err != nil {
		return nil, fmt.Errorf("rule %s: %w", r.ID, err)
	}
	if rule.UpdatedAt, err = parseTS(r.UpdatedAt); err != nil {
		return nil, fmt.Errorf("rule %s: %w", r.ID, err)
	}
	if r.LastExecuted != nil {
		t, err := parseTS(*r.LastExecuted)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		rule.LastExecuted = &t
	}
	return rule, nil
}

// SQLRuleStore persists rules in automation_rules.
type SQLRuleStore struct {
	q *db.Queries
}

func NewSQLRuleStore(q *db.Queries) *SQLRuleStore {
	return &SQLRuleStore{q: q}
}

func (s *SQLRuleStore) Create(ctx context.Context, rule *types.AutomationRule) error {
	conditions, actions, err := encodeRule(rule)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, "create-rule",
		string(rule.ID), rule.OrganizationID, rule.Name, rule.Description,
		rule.Trigger, conditions, actions, rule.IsActive,
		formatTS(rule.CreatedAt), formatTS(rule.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

func (s *SQLRuleStore) Get(ctx context.Context, id types.RuleID) (*types.AutomationRule, error) {
	var row ruleRow
	err := s.q.Get(ctx, "get-rule", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return row.toRule()
}

func (s *SQLRuleStore) Update(ctx context.Context, rule *types.AutomationRule) error {
	conditions, actions, err := encodeRule(rule)
	if err != nil {
		return err
	}
	res, err := s.q.Exec(ctx, "update-rule",
		rule.Name, rule.Description, rule.Trigger,
		conditions, actions, rule.IsActive, formatTS(rule.UpdatedAt),
		string(rule.ID),
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return requireRow(res)
}

func (s *SQLRuleStore) Delete(ctx context.Context, id types.RuleID) error {
	res, err := s.q.Exec(ctx, "delete-rule", string(id))
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return requireRow(res)
}

func (s *SQLRuleStore) ListByOrg(ctx context.Context, orgID string) ([]*types.AutomationRule, error) {
	var rows []ruleRow
	if err := s.q.Select(ctx, "list-rules-by-org", &rows, orgID); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rowsToRules(rows)
}

func (s *SQLRuleStore) ListActive(ctx context.Context, orgID, triggerID string) ([]*types.AutomationRule, error) {
	var rows []ruleRow
	if err := s.q.Select(ctx, "list-active-rules", &rows, orgID, triggerID, true); err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	return rowsToRules(rows)
}

func (s *SQLRuleStore) SetActive(ctx context.Context, id types.RuleID, active bool) error {
	res, err := s.q.Exec(ctx, "set-rule-active", active, formatTS(time.Now()), string(id))
	if err != nil {
		return fmt.Errorf("set rule active: %w", err)
	}
	return requireRow(res)
}

func (s *SQLRuleStore) IncrementExecutionCount(ctx context.Context, id types.RuleID, at time.Time) error {
	res, err := s.q.Exec(ctx, "increment-execution-count", formatTS(at), formatTS(at), string(id))
	if err != nil {
		return fmt.Errorf("increment execution count: %w", err)
	}
	return requireRow(res)
}

func (s *SQLRuleStore) IncrementErrorCount(ctx context.Context, id types.RuleID, msg string) error {
	now := time.Now()
	res, err := s.q.Exec(ctx, "increment-error-count", msg, formatTS(now), string(id))
	if err != nil {
		return fmt.Errorf("increment error count: %w", err)
	}
	return requireRow(res)
}

// logRow is the flat scan target for automation_logs.
type logRow struct {
	ID              string  `db:"id"`
	RuleID          string  `db:"rule_id"`
	TriggerEvent    string  `db:"trigger_event"`
	Context         []byte  `db:"context"`
	ConditionsMet   bool    `db:"conditions_met"`
	ActionsExecuted []byte  `db:"actions_executed"`
	Results         []byte  `db:"results"`
	Error           *string `db:"error"`
	ExecutedAt      string  `db:"executed_at"`
}

// SQLLogStore persists execution logs in automation_logs.
type SQLLogStore struct {
	q *db.Queries
}

func NewSQLLogStore(q *db.Queries) *SQLLogStore {
	return &SQLLogStore{q: q}
}

func (s *SQLLogStore) Insert(ctx context.Context, entry *types.ExecutionLog) error {
	ctxJSON, err := json.Marshal(entry.Context)
	if err != nil {
		return fmt.Errorf("encode log context: %w", err)
	}
	actions, err := json.Marshal(entry.ActionsExecuted)
	if err != nil {
		return fmt.Errorf("encode log actions: %w", err)
	}
	results, err := json.Marshal(entry.Results)
	if err != nil {
		return fmt.Errorf("encode log results: %w", err)
	}

	_, err = s.q.Exec(ctx, "insert-log",
		string(entry.ID), string(entry.RuleID), entry.TriggerEvent,
		ctxJSON, entry.ConditionsMet, actions, results,
		entry.Error, formatTS(entry.ExecutedAt),
	)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

func (s *SQLLogStore) ListByRule(ctx context.Context, ruleID types.RuleID, limit int) ([]*types.ExecutionLog, error) {
	var rows []logRow
	if err := s.q.Select(ctx, "list-logs-by-rule", &rows, string(ruleID), limit); err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}

	entries := make([]*types.ExecutionLog, 0, len(rows))
	for _, r := range rows {
		entry := &types.ExecutionLog{
			ID:            types.LogID(r.ID),
			RuleID:        types.RuleID(r.RuleID),
			TriggerEvent:  r.TriggerEvent,
			ConditionsMet: r.ConditionsMet,
			Error:         r.Error,
		}
		if err := json.Unmarshal(r.Context, &entry.Context); err != nil {
			return nil, fmt.Errorf("log %s has invalid context: %w", r.ID, err)
		}
		if err := json.Unmarshal(r.ActionsExecuted, &entry.ActionsExecuted); err != nil {
			return nil, fmt.Errorf("log %s has invalid actions: %w", r.ID, err)
		}
		if err := json.Unmarshal(r.Results, &entry.Results); err != nil {
			return nil, fmt.Errorf("log %s has invalid results: %w", r.ID, err)
		}
		t, err := parseTS(r.ExecutedAt)
		if err != nil {
			return nil, fmt.Errorf("log %s: %w", r.ID, err)
		}
		entry.ExecutedAt = t
		entries = append(entries, entry)
	}
	return entries, nil
}

// SQLTemplateStore reads notification_templates.
type SQLTemplateStore struct {
	q *db.Queries
}

func NewSQLTemplateStore(q *db.Queries) *SQLTemplateStore {
	return &SQLTemplateStore{q: q}
}

func (s *SQLTemplateStore) Get(ctx context.Context, id string) (*types.Template, error) {
	var tpl types.Template
	err := s.q.Get(ctx, "get-template", &tpl, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &tpl, nil
}

// SQLRecordStore performs the generic row writes behind create_task and
// update_record. Only tasks inserts go through the named query; updates hit
// arbitrary whitelisted-identifier tables and are built dynamically with
// sorted columns for deterministic SQL.
type SQLRecordStore struct {
	q *db.Queries
}

func NewSQLRecordStore(q *db.Queries) *SQLRecordStore {
	return &SQLRecordStore{q: q}
}

func (s *SQLRecordStore) Insert(ctx context.Context, table string, fields map[string]any) (string, error) {
	if table != "tasks" {
		return "", fmt.Errorf("%w: %s", types.ErrInvalidTable, table)
	}

	id := string(types.NewTaskID())
	_, err := s.q.Exec(ctx, "insert-task",
		id, fields["organization_id"], fields["title"], fields["description"],
		fields["priority"], fields["status"], fields["assigned_to"],
		fields["due_date"], formatTS(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

func (s *SQLRecordStore) Update(ctx context.Context, table, recordID string, fields map[string]any) error {
	if !identRe.MatchString(table) {
		return fmt.Errorf("%w: %s", types.ErrInvalidTable, table)
	}
	if len(fields) == 0 {
		return nil
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !identRe.MatchString(col) {
			return fmt.Errorf("invalid column name: %s", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	for _, col := range cols {
		sets = append(sets, col+" = ?")
		args = append(args, fields[col])
	}
	args = append(args, recordID)

	conn := s.q.DB()
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	res, err := conn.ExecContext(ctx, conn.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no record %s in %s", recordID, table)
	}
	return nil
}

func encodeRule(rule *types.AutomationRule) (conditions, actions []byte, err error) {
	if conditions, err = json.Marshal(rule.Conditions); err != nil {
		return nil, nil, fmt.Errorf("encode conditions: %w", err)
	}
	if actions, err = json.Marshal(rule.Actions); err != nil {
		return nil, nil, fmt.Errorf("encode actions: %w", err)
	}
	return conditions, actions, nil
}

func rowsToRules(rows []ruleRow) ([]*types.AutomationRule, error) {
	rules := make([]*types.AutomationRule, 0, len(rows))
	for i := range rows {
		rule, err := rows[i].toRule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// requireRow converts a zero-row write into ErrRuleNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrRuleNotFound
	}
	return nil
}

func formatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTS(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
