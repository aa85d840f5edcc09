// Package engine implements the automation rule engine: trigger and action
// registries, condition evaluation, variable substitution, the event
// dispatcher, and the rule executor.
//
// An Engine is an explicitly constructed object holding its own registries
// and injected store/channel dependencies. Nothing here is process-global;
// tests and embedders run as many isolated engines as they need.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gastrack/relay/internal/channels"
	"github.com/gastrack/relay/internal/store"
	"github.com/gastrack/relay/internal/types"
)

const defaultChannelTimeout = 10 * time.Second

// Deps carries the external collaborators an Engine needs. Rules and Logs
// are required; the remaining fields default to safe implementations.
type Deps struct {
	Rules     store.RuleStore
	Logs      store.LogStore
	Templates store.TemplateStore
	Records   store.RecordStore

	Email   channels.EmailSender
	SMS     channels.SMSSender
	Push    channels.PushNotifier
	Webhook channels.WebhookClient

	Logger  *slog.Logger
	Metrics *Metrics

	// ChannelTimeout bounds every outbound delivery call.
	ChannelTimeout time.Duration

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Engine evaluates automation rules against normalized change events.
type Engine struct {
	triggers *Registry[types.TriggerDefinition]
	actions  *Registry[types.ActionDefinition]

	rules     store.RuleStore
	logs      store.LogStore
	templates store.TemplateStore
	records   store.RecordStore

	email   channels.EmailSender
	sms     channels.SMSSender
	push    channels.PushNotifier
	webhook channels.WebhookClient

	log     *slog.Logger
	metrics *Metrics
	now     func() time.Time

	channelTimeout time.Duration

	// wg tracks in-flight invocations, including delayed continuations.
	wg sync.WaitGroup
}

// New creates an engine with the built-in trigger and action catalogs
// registered.
func New(deps Deps) (*Engine, error) {
	if deps.Rules == nil {
		return nil, fmt.Errorf("rule store cannot be nil")
	}
	if deps.Logs == nil {
		return nil, fmt.Errorf("log store cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.ChannelTimeout <= 0 {
		deps.ChannelTimeout = defaultChannelTimeout
	}
	if deps.Email == nil {
		deps.Email = &channels.LogEmailSender{Log: deps.Logger}
	}
	if deps.SMS == nil {
		deps.SMS = &channels.LogSMSSender{Log: deps.Logger}
	}
	if deps.Push == nil {
		deps.Push = &channels.LogPushNotifier{Log: deps.Logger}
	}
	if deps.Webhook == nil {
		deps.Webhook = channels.NewHTTPWebhookClient(deps.ChannelTimeout)
	}

	e := &Engine{
		triggers:       NewRegistry[types.TriggerDefinition](),
		actions:        NewRegistry[types.ActionDefinition](),
		rules:          deps.Rules,
		logs:           deps.Logs,
		templates:      deps.Templates,
		records:        deps.Records,
		email:          deps.Email,
		sms:            deps.SMS,
		push:           deps.Push,
		webhook:        deps.Webhook,
		log:            deps.Logger,
		metrics:        deps.Metrics,
		now:            deps.Clock,
		channelTimeout: deps.ChannelTimeout,
	}

	for _, t := range builtinTriggers() {
		e.triggers.Register(t.ID, t)
	}
	for _, a := range builtinActions() {
		e.actions.Register(a.ID, a)
	}

	return e, nil
}

// Triggers returns the trigger catalog in registration order.
func (e *Engine) Triggers() []types.TriggerDefinition { return e.triggers.List() }

// Actions returns the action catalog in registration order.
func (e *Engine) Actions() []types.ActionDefinition { return e.actions.List() }

// Wait blocks until all in-flight rule invocations, including delayed
// continuations, have settled. Used during shutdown and by tests.
func (e *Engine) Wait() { e.wg.Wait() }

// CreateRule validates and persists a new rule. A missing id is assigned.
func (e *Engine) CreateRule(ctx context.Context, rule *types.AutomationRule) error {
	if rule.ID == "" {
		rule.ID = types.NewRuleID()
	}
	if err := e.ValidateRule(rule); err != nil {
		return err
	}
	return e.rules.Create(ctx, rule)
}

// UpdateRule validates and persists changes to the authored fields of a rule.
// Execution metadata is preserved by the store.
func (e *Engine) UpdateRule(ctx context.Context, rule *types.AutomationRule) error {
	if err := e.ValidateRule(rule); err != nil {
		return err
	}
	return e.rules.Update(ctx, rule)
}

// DeleteRule removes a rule.
func (e *Engine) DeleteRule(ctx context.Context, id types.RuleID) error {
	return e.rules.Delete(ctx, id)
}

// GetRule returns one rule by id.
func (e *Engine) GetRule(ctx context.Context, id types.RuleID) (*types.AutomationRule, error) {
	return e.rules.Get(ctx, id)
}

// GetRules returns all rules for an organization, newest first.
func (e *Engine) GetRules(ctx context.Context, orgID string) ([]*types.AutomationRule, error) {
	return e.rules.ListByOrg(ctx, orgID)
}

// ToggleRule flips is_active and returns the new state. Toggling affects
// only future matching; invocations already in flight run to completion.
func (e *Engine) ToggleRule(ctx context.Context, id types.RuleID) (bool, error) {
	rule, err := e.rules.Get(ctx, id)
	if err != nil {
		return false, err
	}
	active := !rule.IsActive
	if err := e.rules.SetActive(ctx, id, active); err != nil {
		return false, err
	}
	return active, nil
}

// GetRuleLogs returns a rule's execution logs, newest first.
func (e *Engine) GetRuleLogs(ctx context.Context, id types.RuleID, limit int) ([]*types.ExecutionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.logs.ListByRule(ctx, id, limit)
}

// TestRule synchronously runs the executor against a caller-supplied context,
// exercising the same code path as live execution (including persistence of
// counters and logs when conditions are met).
func (e *Engine) TestRule(ctx context.Context, id types.RuleID, sample map[string]any) (*types.ExecutionLog, error) {
	rule, err := e.rules.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	execCtx := Context{}
	for k, v := range sample {
		execCtx[k] = v
	}
	if _, ok := execCtx["trigger"]; !ok {
		execCtx["trigger"] = rule.Trigger
	}
	if _, ok := execCtx["organizationId"]; !ok {
		execCtx["organizationId"] = rule.OrganizationID
	}

	done := e.ExecuteRule(ctx, rule, execCtx)
	select {
	case entry := <-done:
		return entry, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ValidateRule checks a rule against the registries: the trigger and every
// action type (including conditional sublists) must be registered, required
// config fields must be present, and every condition operator must be known.
// Invalid rules fail closed at authoring time instead of at dispatch.
func (e *Engine) ValidateRule(rule *types.AutomationRule) error {
	if err := e.validateRule(rule); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidRule, err)
	}
	return nil
}

func (e *Engine) validateRule(rule *types.AutomationRule) error {
	if rule.OrganizationID == "" {
		return fmt.Errorf("rule is missing an organization id")
	}
	if rule.Name == "" {
		return fmt.Errorf("rule is missing a name")
	}
	if _, ok := e.triggers.Get(rule.Trigger); !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownTrigger, rule.Trigger)
	}
	for _, cond := range rule.Conditions {
		if !types.KnownOperator(cond.Operator) {
			return fmt.Errorf("%w: %s", types.ErrUnknownOperator, cond.Operator)
		}
		if cond.Field == "" {
			return fmt.Errorf("condition is missing a field path")
		}
	}
	return e.validateActions(rule.Actions)
}

func (e *Engine) validateActions(actions []types.ActionInstance) error {
	for _, act := range actions {
		def, ok := e.actions.Get(act.Type)
		if !ok {
			return fmt.Errorf("%w: %s", types.ErrUnknownAction, act.Type)
		}
		if err := checkRequiredConfig(def, act.Config); err != nil {
			return fmt.Errorf("action %s: %w", act.Type, err)
		}
		if act.Type != ActionConditional {
			continue
		}
		for _, key := range []string{"trueActions", "falseActions"} {
			sub, err := decodeActions(act.Config[key])
			if err != nil {
				return fmt.Errorf("action %s: invalid %s: %w", act.Type, key, err)
			}
			if err := e.validateActions(sub); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkRequiredConfig verifies every required config field is present and
// non-empty.
func checkRequiredConfig(def types.ActionDefinition, config map[string]any) error {
	for _, f := range def.ConfigFields {
		if !f.Required {
			continue
		}
		v, ok := config[f.Name]
		if !ok || v == nil {
			return fmt.Errorf("%w: %s", types.ErrMissingConfigField, f.Name)
		}
		if s, isStr := v.(string); isStr && s == "" {
			return fmt.Errorf("%w: %s", types.ErrMissingConfigField, f.Name)
		}
	}
	return nil
}

// IsConfigError reports whether err stems from rule configuration rather
// than a runtime failure.
func IsConfigError(err error) bool {
	return errors.Is(err, types.ErrUnknownTrigger) ||
		errors.Is(err, types.ErrUnknownAction) ||
		errors.Is(err, types.ErrUnknownOperator) ||
		errors.Is(err, types.ErrMissingConfigField)
}
