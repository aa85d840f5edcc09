package engine

import (
	"context"

	"github.com/gastrack/relay/internal/feed"
	"github.com/gastrack/relay/internal/types"
)

/*
 * Event dispatcher.
 *
 * Consumes the change feed and fans each row change out to the rules whose
 * trigger it maps to. One raw change can fire several triggers: a bottle
 * update always fires bottle_updated and additionally fires
 * bottle_status_changed when the status column moved, with old_status and
 * new_status added to the event data.
 *
 * Matching runs per (organization, trigger); events without an
 * organization_id cannot be routed and are dropped with a warning. A storage
 * error during matching loses that event for its rules but never stops the
 * feed.
 */

// firing is one trigger occurrence derived from a raw row change.
type firing struct {
	Trigger string
	New     map[string]any
	Old     map[string]any
}

// Run consumes events until the context is cancelled or the feed closes.
func (e *Engine) Run(ctx context.Context, events <-chan feed.Event) error {
	e.log.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info("dispatcher stopping", "reason", ctx.Err())
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				e.log.Info("dispatcher stopping", "reason", "feed closed")
				return nil
			}
			e.dispatch(ctx, ev)
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, ev feed.Event) {
	e.metrics.EventsReceived.WithLabelValues(ev.Table, string(ev.Op)).Inc()

	firings := normalizeEvent(ev)
	if len(firings) == 0 {
		e.metrics.EventsDropped.WithLabelValues("unmapped").Inc()
		return
	}

	for _, f := range firings {
		org, err := organizationOf(f)
		if err != nil {
			e.log.Warn("event dropped", "table", ev.Table, "trigger", f.Trigger, "error", err)
			e.metrics.EventsDropped.WithLabelValues("missing_organization").Inc()
			continue
		}
		if _, ok := e.triggers.Get(f.Trigger); !ok {
			e.metrics.EventsDropped.WithLabelValues("unknown_trigger").Inc()
			continue
		}
		go e.handleTrigger(ctx, org, f)
	}
}

// handleTrigger matches one firing against the active rules of its
// organization and starts an invocation per matched rule. Rules run as
// independent units of work; a delayed rule does not hold up its siblings.
func (e *Engine) handleTrigger(ctx context.Context, org string, f firing) {
	rules, err := e.rules.ListActive(ctx, org, f.Trigger)
	if err != nil {
		e.log.Error("rule matching failed", "org", org, "trigger", f.Trigger, "error", err)
		return
	}
	if len(rules) == 0 {
		return
	}

	execCtx := Context{
		"trigger":        f.Trigger,
		"newData":        f.New,
		"oldData":        f.Old,
		"organizationId": org,
	}

	e.log.Debug("trigger matched", "trigger", f.Trigger, "org", org, "rules", len(rules))
	for _, rule := range rules {
		e.ExecuteRule(ctx, rule, execCtx)
	}
}

// normalizeEvent maps a raw row change onto the business triggers it
// represents. Table and status names follow the rental domain schema.
func normalizeEvent(ev feed.Event) []firing {
	newStatus := stringField(ev.New, "status")
	oldStatus := stringField(ev.Old, "status")
	statusChanged := ev.Op == feed.OpUpdate && newStatus != oldStatus

	switch ev.Table {
	case "bottles":
		if ev.Op == feed.OpInsert {
			return []firing{{TriggerBottleCreated, ev.New, ev.Old}}
		}
		out := []firing{{TriggerBottleUpdated, ev.New, ev.Old}}
		if statusChanged {
			enriched := make(map[string]any, len(ev.New)+2)
			for k, v := range ev.New {
				enriched[k] = v
			}
			enriched["old_status"] = oldStatus
			enriched["new_status"] = newStatus
			out = append(out, firing{TriggerBottleStatusChanged, enriched, ev.Old})
		}
		return out

	case "rentals":
		if ev.Op == feed.OpInsert {
			return []firing{{TriggerRentalCreated, ev.New, ev.Old}}
		}
		out := []firing{{TriggerRentalUpdated, ev.New, ev.Old}}
		switch {
		case statusChanged && (newStatus == "completed" || newStatus == "returned"):
			out = append(out, firing{TriggerRentalCompleted, ev.New, ev.Old})
		case statusChanged && newStatus == "overdue":
			out = append(out, firing{TriggerRentalOverdue, ev.New, ev.Old})
		}
		return out

	case "customers":
		if ev.Op == feed.OpInsert {
			return []firing{{TriggerCustomerCreated, ev.New, ev.Old}}
		}
		return []firing{{TriggerCustomerUpdated, ev.New, ev.Old}}

	case "deliveries":
		if ev.Op == feed.OpInsert {
			return []firing{{TriggerDeliveryScheduled, ev.New, ev.Old}}
		}
		switch {
		case statusChanged && newStatus == "in_transit":
			return []firing{{TriggerDeliveryStarted, ev.New, ev.Old}}
		case statusChanged && (newStatus == "delivered" || newStatus == "completed"):
			return []firing{{TriggerDeliveryCompleted, ev.New, ev.Old}}
		}
		return nil

	case "maintenance_records":
		if ev.Op == feed.OpInsert {
			return []firing{{TriggerMaintenanceScheduled, ev.New, ev.Old}}
		}
		switch {
		case statusChanged && newStatus == "completed":
			return []firing{{TriggerMaintenanceCompleted, ev.New, ev.Old}}
		case statusChanged && newStatus == "due":
			return []firing{{TriggerMaintenanceDue, ev.New, ev.Old}}
		}
		return nil

	case "invoices":
		if ev.Op == feed.OpInsert {
			return []firing{{TriggerInvoiceCreated, ev.New, ev.Old}}
		}
		if statusChanged && newStatus == "overdue" {
			return []firing{{TriggerInvoiceOverdue, ev.New, ev.Old}}
		}
		return nil

	case "payment_records":
		if ev.Op == feed.OpInsert {
			return []firing{{TriggerPaymentReceived, ev.New, ev.Old}}
		}
		return nil
	}

	return nil
}

// organizationOf resolves the routing organization for a firing, preferring
// the new row image over the old one.
func organizationOf(f firing) (string, error) {
	if org := stringField(f.New, "organization_id"); org != "" {
		return org, nil
	}
	if org := stringField(f.Old, "organization_id"); org != "" {
		return org, nil
	}
	return "", types.ErrMissingOrganization
}

func stringField(row map[string]any, key string) string {
	if row == nil {
		return ""
	}
	s, _ := row[key].(string)
	return s
}
