package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/gastrack/relay/internal/types"
)

/*
 * Rule executor.
 *
 * One invocation walks Matched -> ConditionsEvaluated -> ActionsRunning ->
 * Logged. Individual action failures are captured in the per-action results
 * and never abort the remaining actions; only a failure of condition
 * evaluation or of the bookkeeping itself (counter update, log insert) takes
 * the error path, which increments error_count, sets last_error, and writes
 * a failure log entry.
 *
 * The delay action suspends the invocation without occupying a goroutine:
 * the remaining action list is resumed by a timer callback. Counters and the
 * execution log are written once, after every action has settled.
 *
 * Invocations detach from the caller's context (an in-flight rule cannot be
 * cancelled; toggling is_active only affects future matching), so an aborted
 * test request or a dispatcher shutdown does not corrupt half-finished
 * bookkeeping.
 */

// invocation carries the state of one rule execution across delay suspensions.
type invocation struct {
	ctx     context.Context
	rule    *types.AutomationRule
	execCtx Context
	results []types.ActionResult
	done    chan *types.ExecutionLog
}

// ExecuteRule starts one rule invocation and returns a channel that yields
// the resulting ExecutionLog once every action has settled. For invocations
// whose conditions are not met the entry is transient (ConditionsMet=false,
// not persisted, no counters touched).
func (e *Engine) ExecuteRule(ctx context.Context, rule *types.AutomationRule, execCtx Context) <-chan *types.ExecutionLog {
	inv := &invocation{
		ctx:     context.WithoutCancel(ctx),
		rule:    rule,
		execCtx: execCtx,
		done:    make(chan *types.ExecutionLog, 1),
	}
	e.wg.Add(1)
	go e.begin(inv)
	return inv.done
}

// begin evaluates conditions and either finishes early or starts the action
// sequence.
func (e *Engine) begin(inv *invocation) {
	met, err := e.safeConditionsMet(inv.rule, inv.execCtx)
	if err != nil {
		e.failInvocation(inv, err)
		return
	}

	if !met {
		// Policy: skipped evaluations are not logged and counters stay
		// untouched, to bound log volume from high-frequency triggers.
		e.metrics.RuleExecutions.WithLabelValues(outcomeSkipped).Inc()
		e.finishInvocation(inv, &types.ExecutionLog{
			RuleID:          inv.rule.ID,
			TriggerEvent:    triggerOf(inv.execCtx),
			Context:         inv.execCtx,
			ConditionsMet:   false,
			ActionsExecuted: []types.ActionInstance{},
			Results:         []types.ActionResult{},
			ExecutedAt:      e.now().UTC(),
		})
		return
	}

	e.runFrom(inv, 0)
}

// safeConditionsMet isolates condition evaluation so a panic (malformed rule
// JSON producing unexpected shapes) becomes an executor-level error instead
// of killing the dispatcher.
func (e *Engine) safeConditionsMet(rule *types.AutomationRule, execCtx Context) (met bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("condition evaluation panicked: %v", r)
		}
	}()
	return e.conditionsMet(rule, execCtx), nil
}

// runFrom executes actions starting at idx. Strictly sequential: action N+1
// starts only after action N settled. A delay action schedules the remainder
// on a timer and returns.
func (e *Engine) runFrom(inv *invocation, idx int) {
	for i := idx; i < len(inv.rule.Actions); i++ {
		act := inv.rule.Actions[i]

		if act.Type == ActionDelay {
			d, err := delayDuration(act.Config)
			if err != nil {
				inv.results = append(inv.results, types.ActionResult{
					Action: act.Type, Success: false, Error: err.Error(),
				})
				e.metrics.ActionExecutions.WithLabelValues(act.Type, outcomeError).Inc()
				continue
			}
			inv.results = append(inv.results, types.ActionResult{
				Action: act.Type, Success: true,
				Result: map[string]any{"delayed": d.String()},
			})
			e.metrics.ActionExecutions.WithLabelValues(act.Type, outcomeSuccess).Inc()

			if next := i + 1; next < len(inv.rule.Actions) {
				time.AfterFunc(d, func() { e.runFrom(inv, next) })
				return
			}
			continue
		}

		inv.results = append(inv.results, e.runAction(inv.ctx, act, inv.execCtx))
	}

	e.completeInvocation(inv)
}

// runAction executes one action, converting errors and panics into the
// action's result. A failing action never aborts its siblings.
func (e *Engine) runAction(ctx context.Context, act types.ActionInstance, execCtx Context) (res types.ActionResult) {
	res = types.ActionResult{Action: act.Type}
	start := e.now()

	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Result = nil
			res.Error = fmt.Sprintf("action panicked: %v", r)
		}
		outcome := outcomeSuccess
		if !res.Success {
			outcome = outcomeError
		}
		e.metrics.ActionExecutions.WithLabelValues(act.Type, outcome).Inc()
		e.metrics.ActionDuration.WithLabelValues(act.Type).Observe(e.now().Sub(start).Seconds())
	}()

	out, err := e.executeAction(ctx, act, execCtx)
	if err != nil {
		res.Error = err.Error()
		if IsConfigError(err) {
			e.log.Warn("action misconfigured", "action", act.Type, "error", err)
		}
		return res
	}
	res.Success = true
	res.Result = out
	return res
}

// completeInvocation records the success path: counter bump, timestamp, and
// one log entry with the per-action results.
func (e *Engine) completeInvocation(inv *invocation) {
	now := e.now().UTC()

	if err := e.rules.IncrementExecutionCount(inv.ctx, inv.rule.ID, now); err != nil {
		e.failInvocation(inv, fmt.Errorf("failed to update execution count: %w", err))
		return
	}

	entry := &types.ExecutionLog{
		ID:              types.NewLogID(),
		RuleID:          inv.rule.ID,
		TriggerEvent:    triggerOf(inv.execCtx),
		Context:         inv.execCtx,
		ConditionsMet:   true,
		ActionsExecuted: inv.rule.Actions,
		Results:         inv.results,
		ExecutedAt:      now,
	}
	if err := e.logs.Insert(inv.ctx, entry); err != nil {
		e.failInvocation(inv, fmt.Errorf("failed to write execution log: %w", err))
		return
	}

	e.metrics.RuleExecutions.WithLabelValues(outcomeSuccess).Inc()
	e.finishInvocation(inv, entry)
}

// failInvocation records the executor-level error path. Errors here are
// logged and swallowed: one bad rule must never stop the dispatcher.
func (e *Engine) failInvocation(inv *invocation, cause error) {
	msg := cause.Error()
	now := e.now().UTC()

	e.log.Error("rule execution failed", "rule_id", inv.rule.ID, "rule", inv.rule.Name, "error", msg)

	if err := e.rules.IncrementErrorCount(inv.ctx, inv.rule.ID, msg); err != nil {
		e.log.Error("failed to update error count", "rule_id", inv.rule.ID, "error", err)
	}

	entry := &types.ExecutionLog{
		ID:              types.NewLogID(),
		RuleID:          inv.rule.ID,
		TriggerEvent:    triggerOf(inv.execCtx),
		Context:         inv.execCtx,
		ConditionsMet:   false,
		ActionsExecuted: []types.ActionInstance{},
		Results:         []types.ActionResult{},
		Error:           &msg,
		ExecutedAt:      now,
	}
	if err := e.logs.Insert(inv.ctx, entry); err != nil {
		e.log.Error("failed to write failure log", "rule_id", inv.rule.ID, "error", err)
	}

	e.metrics.RuleExecutions.WithLabelValues(outcomeError).Inc()
	e.finishInvocation(inv, entry)
}

// finishInvocation delivers the final log entry and releases the invocation.
// Called exactly once per invocation.
func (e *Engine) finishInvocation(inv *invocation, entry *types.ExecutionLog) {
	inv.done <- entry
	close(inv.done)
	e.wg.Done()
}

// delayDuration parses the delay action's duration/unit config.
func delayDuration(config map[string]any) (time.Duration, error) {
	raw, ok := config["duration"]
	if !ok {
		return 0, fmt.Errorf("%w: duration", types.ErrMissingConfigField)
	}
	n, ok := toNumber(raw)
	if !ok || n < 0 {
		return 0, fmt.Errorf("invalid delay duration: %v", raw)
	}

	unit, _ := config["unit"].(string)
	switch unit {
	case "", "seconds":
		return time.Duration(n * float64(time.Second)), nil
	case "minutes":
		return time.Duration(n * float64(time.Minute)), nil
	case "hours":
		return time.Duration(n * float64(time.Hour)), nil
	case "days":
		return time.Duration(n * 24 * float64(time.Hour)), nil
	default:
		return 0, fmt.Errorf("invalid delay unit: %s", unit)
	}
}

func triggerOf(execCtx Context) string {
	t, _ := execCtx["trigger"].(string)
	return t
}
