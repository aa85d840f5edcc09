package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gastrack/relay/internal/types"
)

// executeAction dispatches one action instance to its handler. The returned
// map is what lands in the execution log's per-action result; errors are
// captured by the caller and never abort the rest of the sequence.
func (e *Engine) executeAction(ctx context.Context, act types.ActionInstance, execCtx Context) (map[string]any, error) {
	def, ok := e.actions.Get(act.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownAction, act.Type)
	}
	if err := checkRequiredConfig(def, act.Config); err != nil {
		return nil, err
	}

	switch act.Type {
	case ActionSendEmail:
		return e.sendEmail(ctx, act.Config, execCtx)
	case ActionSendSMS:
		return e.sendSMS(ctx, act.Config, execCtx)
	case ActionCreateTask:
		return e.createTask(ctx, act.Config, execCtx)
	case ActionUpdateRecord:
		return e.updateRecord(ctx, act.Config, execCtx)
	case ActionTriggerWebhook:
		return e.triggerWebhook(ctx, act.Config, execCtx)
	case ActionSendNotification:
		return e.sendNotification(ctx, act.Config, execCtx)
	case ActionConditional:
		return e.conditional(ctx, act.Config, execCtx)
	default:
		// Delay is handled by the executor; a registered action without a
		// handler is a programming error.
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownAction, act.Type)
	}
}

func (e *Engine) sendEmail(ctx context.Context, config map[string]any, execCtx Context) (map[string]any, error) {
	to := Interpolate(configString(config, "to"), execCtx)
	subject := Interpolate(configString(config, "subject"), execCtx)
	body := Interpolate(configString(config, "body"), execCtx)

	if id := configString(config, "template"); id != "" {
		tpl, err := e.resolveTemplate(ctx, id, execCtx)
		if err != nil {
			return nil, err
		}
		if tpl != nil {
			if tpl.Subject != "" {
				subject = Interpolate(tpl.Subject, execCtx)
			}
			body = Interpolate(tpl.Body, execCtx)
		}
	}

	cctx, cancel := context.WithTimeout(ctx, e.channelTimeout)
	defer cancel()

	msgID, err := e.email.SendEmail(cctx, to, subject, body)
	if err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}
	return map[string]any{"messageId": msgID, "to": to}, nil
}

func (e *Engine) sendSMS(ctx context.Context, config map[string]any, execCtx Context) (map[string]any, error) {
	to := Interpolate(configString(config, "phoneNumber"), execCtx)
	message := Interpolate(configString(config, "message"), execCtx)

	if id := configString(config, "template"); id != "" {
		tpl, err := e.resolveTemplate(ctx, id, execCtx)
		if err != nil {
			return nil, err
		}
		if tpl != nil {
			message = Interpolate(tpl.Body, execCtx)
		}
	}

	cctx, cancel := context.WithTimeout(ctx, e.channelTimeout)
	defer cancel()

	msgID, err := e.sms.SendSMS(cctx, to, message)
	if err != nil {
		return nil, fmt.Errorf("send sms: %w", err)
	}
	return map[string]any{"messageId": msgID, "to": to}, nil
}

func (e *Engine) sendNotification(ctx context.Context, config map[string]any, execCtx Context) (map[string]any, error) {
	userID := Interpolate(configString(config, "userId"), execCtx)
	title := Interpolate(configString(config, "title"), execCtx)
	body := Interpolate(configString(config, "body"), execCtx)

	var data map[string]any
	if raw, ok := config["data"].(map[string]any); ok {
		data = InterpolateObject(raw, execCtx)
	}

	cctx, cancel := context.WithTimeout(ctx, e.channelTimeout)
	defer cancel()

	msgID, err := e.push.SendNotification(cctx, userID, title, body, data)
	if err != nil {
		return nil, fmt.Errorf("send notification: %w", err)
	}
	return map[string]any{"notificationId": msgID, "userId": userID}, nil
}

// resolveTemplate loads a notification template. A missing template is not
// fatal: the action falls back to its inline subject/body.
func (e *Engine) resolveTemplate(ctx context.Context, id string, execCtx Context) (*types.Template, error) {
	if e.templates == nil {
		return nil, nil
	}
	tpl, err := e.templates.Get(ctx, Interpolate(id, execCtx))
	if errors.Is(err, types.ErrTemplateNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	return tpl, nil
}

func (e *Engine) createTask(ctx context.Context, config map[string]any, execCtx Context) (map[string]any, error) {
	fields := map[string]any{
		"title":       Interpolate(configString(config, "title"), execCtx),
		"description": Interpolate(configString(config, "description"), execCtx),
		"priority":    "medium",
		"status":      "pending",
	}
	if p := configString(config, "priority"); p != "" {
		fields["priority"] = Interpolate(p, execCtx)
	}
	if u := configString(config, "assignedTo"); u != "" {
		fields["assigned_to"] = Interpolate(u, execCtx)
	}
	if due := configString(config, "dueDate"); due != "" {
		fields["due_date"] = Interpolate(due, execCtx)
	}
	if org, ok := execCtx["organizationId"].(string); ok && org != "" {
		fields["organization_id"] = org
	}

	id, err := e.records.Insert(ctx, "tasks", fields)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return map[string]any{"taskId": id}, nil
}

func (e *Engine) updateRecord(ctx context.Context, config map[string]any, execCtx Context) (map[string]any, error) {
	table := configString(config, "table")
	recordID := Interpolate(configString(config, "recordId"), execCtx)
	if table == "" || recordID == "" {
		return nil, fmt.Errorf("%w: table, recordId", types.ErrMissingConfigField)
	}

	raw, ok := config["updates"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: updates must be an object", types.ErrMissingConfigField)
	}

	if err := e.records.Update(ctx, table, recordID, InterpolateObject(raw, execCtx)); err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	return map[string]any{"table": table, "recordId": recordID, "updated": true}, nil
}

func (e *Engine) triggerWebhook(ctx context.Context, config map[string]any, execCtx Context) (map[string]any, error) {
	url := Interpolate(configString(config, "url"), execCtx)

	method := strings.ToUpper(configString(config, "method"))
	if method == "" {
		method = "POST"
	}

	headers := map[string]string{}
	if raw, ok := config["headers"].(map[string]any); ok {
		for k, v := range raw {
			headers[k] = Interpolate(stringify(v), execCtx)
		}
	}

	var body map[string]any
	if raw, ok := config["data"].(map[string]any); ok {
		body = InterpolateObject(raw, execCtx)
	}

	cctx, cancel := context.WithTimeout(ctx, e.channelTimeout)
	defer cancel()

	resp, err := e.webhook.Request(cctx, url, method, headers, body)
	if err != nil {
		return nil, fmt.Errorf("trigger webhook: %w", err)
	}
	return map[string]any{"status": resp.Status}, nil
}

// conditional evaluates one embedded condition against the execution context
// and runs either the true or the false action list. Nested delays are
// rejected at validation time; a rule that slips one through gets a config
// error rather than a blocking sleep.
func (e *Engine) conditional(ctx context.Context, config map[string]any, execCtx Context) (map[string]any, error) {
	cond, err := decodeCondition(config["condition"])
	if err != nil {
		return nil, err
	}
	if !types.KnownOperator(cond.Operator) {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownOperator, cond.Operator)
	}

	got, _ := lookupPath(execCtx, cond.Field)
	met := Evaluate(got, cond.Operator, cond.Value)

	branch := config["falseActions"]
	if met {
		branch = config["trueActions"]
	}
	acts, err := decodeActions(branch)
	if err != nil {
		return nil, err
	}

	results := make([]types.ActionResult, 0, len(acts))
	for _, act := range acts {
		if act.Type == ActionDelay {
			results = append(results, types.ActionResult{
				Action: act.Type, Success: false,
				Error: "delay is not allowed inside conditional branches",
			})
			continue
		}
		results = append(results, e.runAction(ctx, act, execCtx))
	}

	return map[string]any{"conditionMet": met, "results": results}, nil
}

// decodeCondition converts the loosely typed JSON condition object into a
// Condition via a marshal round trip, matching how rules are stored.
func decodeCondition(raw any) (types.Condition, error) {
	var cond types.Condition
	if raw == nil {
		return cond, fmt.Errorf("%w: condition", types.ErrMissingConfigField)
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return cond, fmt.Errorf("invalid condition: %w", err)
	}
	if err := json.Unmarshal(buf, &cond); err != nil {
		return cond, fmt.Errorf("invalid condition: %w", err)
	}
	if cond.Field == "" || cond.Operator == "" {
		return cond, fmt.Errorf("%w: condition.field, condition.operator", types.ErrMissingConfigField)
	}
	return cond, nil
}

// decodeActions converts a loosely typed JSON action list into typed
// instances. A nil list is an empty branch, not an error.
func decodeActions(raw any) ([]types.ActionInstance, error) {
	if raw == nil {
		return nil, nil
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid action list: %w", err)
	}
	var acts []types.ActionInstance
	if err := json.Unmarshal(buf, &acts); err != nil {
		return nil, fmt.Errorf("invalid action list: %w", err)
	}
	return acts, nil
}

// configString reads a string config value, tolerating absent keys.
func configString(config map[string]any, key string) string {
	s, _ := config[key].(string)
	return s
}
