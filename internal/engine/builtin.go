package engine

import "github.com/gastrack/relay/internal/types"

// Built-in trigger and action ids. Kept as constants so the dispatcher,
// executor, and tests never spell a catalog id twice.
const (
	TriggerBottleCreated        = "bottle_created"
	TriggerBottleUpdated        = "bottle_updated"
	TriggerBottleStatusChanged  = "bottle_status_changed"
	TriggerRentalCreated        = "rental_created"
	TriggerRentalUpdated        = "rental_updated"
	TriggerRentalCompleted      = "rental_completed"
	TriggerRentalOverdue        = "rental_overdue"
	TriggerDeliveryScheduled    = "delivery_scheduled"
	TriggerDeliveryStarted      = "delivery_started"
	TriggerDeliveryCompleted    = "delivery_completed"
	TriggerMaintenanceDue       = "maintenance_due"
	TriggerMaintenanceScheduled = "maintenance_scheduled"
	TriggerMaintenanceCompleted = "maintenance_completed"
	TriggerCustomerCreated      = "customer_created"
	TriggerCustomerUpdated      = "customer_updated"
	TriggerInvoiceCreated       = "invoice_created"
	TriggerInvoiceOverdue       = "invoice_overdue"
	TriggerPaymentReceived      = "payment_received"

	ActionSendEmail        = "send_email"
	ActionSendSMS          = "send_sms"
	ActionCreateTask       = "create_task"
	ActionUpdateRecord     = "update_record"
	ActionTriggerWebhook   = "trigger_webhook"
	ActionSendNotification = "send_notification"
	ActionDelay            = "delay"
	ActionConditional      = "conditional"
)

// builtinTriggers returns the fixed trigger catalog in registration order.
func builtinTriggers() []types.TriggerDefinition {
	return []types.TriggerDefinition{
		{ID: TriggerBottleCreated, Name: "Bottle Created", Description: "Triggered when a new bottle is created",
			Fields: []string{"id", "serial_number", "status", "location", "organization_id"}},
		{ID: TriggerBottleUpdated, Name: "Bottle Updated", Description: "Triggered when a bottle is updated",
			Fields: []string{"id", "serial_number", "status", "location", "organization_id", "changes"}},
		{ID: TriggerBottleStatusChanged, Name: "Bottle Status Changed", Description: "Triggered when a bottle status changes",
			Fields: []string{"id", "serial_number", "old_status", "new_status", "organization_id"}},
		{ID: TriggerRentalCreated, Name: "Rental Created", Description: "Triggered when a new rental is created",
			Fields: []string{"id", "customer_id", "bottle_id", "rental_start_date", "daily_rate", "organization_id"}},
		{ID: TriggerRentalUpdated, Name: "Rental Updated", Description: "Triggered when a rental is updated",
			Fields: []string{"id", "customer_id", "bottle_id", "status", "organization_id", "changes"}},
		{ID: TriggerRentalCompleted, Name: "Rental Completed", Description: "Triggered when a rental is completed",
			Fields: []string{"id", "customer_id", "bottle_id", "rental_end_date", "total_amount", "organization_id"}},
		{ID: TriggerRentalOverdue, Name: "Rental Overdue", Description: "Triggered when a rental becomes overdue",
			Fields: []string{"id", "customer_id", "bottle_id", "overdue_days", "amount_due", "organization_id"}},
		{ID: TriggerDeliveryScheduled, Name: "Delivery Scheduled", Description: "Triggered when a delivery is scheduled",
			Fields: []string{"id", "customer_id", "delivery_date", "driver_id", "organization_id"}},
		{ID: TriggerDeliveryStarted, Name: "Delivery Started", Description: "Triggered when a delivery starts",
			Fields: []string{"id", "customer_id", "driver_id", "started_at", "organization_id"}},
		{ID: TriggerDeliveryCompleted, Name: "Delivery Completed", Description: "Triggered when a delivery is completed",
			Fields: []string{"id", "customer_id", "driver_id", "completed_at", "signature", "organization_id"}},
		{ID: TriggerMaintenanceDue, Name: "Maintenance Due", Description: "Triggered when maintenance is due",
			Fields: []string{"id", "bottle_id", "maintenance_type", "due_date", "organization_id"}},
		{ID: TriggerMaintenanceScheduled, Name: "Maintenance Scheduled", Description: "Triggered when maintenance is scheduled",
			Fields: []string{"id", "bottle_id", "maintenance_type", "scheduled_date", "technician_id", "organization_id"}},
		{ID: TriggerMaintenanceCompleted, Name: "Maintenance Completed", Description: "Triggered when maintenance is completed",
			Fields: []string{"id", "bottle_id", "maintenance_type", "completed_date", "technician_id", "cost", "organization_id"}},
		{ID: TriggerCustomerCreated, Name: "Customer Created", Description: "Triggered when a new customer is created",
			Fields: []string{"id", "name", "email", "phone", "customer_type", "organization_id"}},
		{ID: TriggerCustomerUpdated, Name: "Customer Updated", Description: "Triggered when a customer is updated",
			Fields: []string{"id", "name", "email", "phone", "organization_id", "changes"}},
		{ID: TriggerInvoiceCreated, Name: "Invoice Created", Description: "Triggered when an invoice is created",
			Fields: []string{"id", "customer_id", "invoice_number", "total_amount", "due_date", "organization_id"}},
		{ID: TriggerInvoiceOverdue, Name: "Invoice Overdue", Description: "Triggered when an invoice becomes overdue",
			Fields: []string{"id", "customer_id", "invoice_number", "overdue_days", "amount_due", "organization_id"}},
		{ID: TriggerPaymentReceived, Name: "Payment Received", Description: "Triggered when a payment is received",
			Fields: []string{"id", "customer_id", "invoice_id", "amount", "payment_method", "organization_id"}},
	}
}

// builtinActions returns the fixed action catalog in registration order.
func builtinActions() []types.ActionDefinition {
	return []types.ActionDefinition{
		{ID: ActionSendEmail, Name: "Send Email", Description: "Send an email notification",
			ConfigFields: []types.ConfigField{
				{Name: "to", Type: types.FieldString, Required: true, Description: "Recipient email address"},
				{Name: "subject", Type: types.FieldString, Required: true, Description: "Email subject"},
				{Name: "body", Type: types.FieldText, Required: true, Description: "Email body"},
				{Name: "template", Type: types.FieldString, Required: false, Description: "Email template ID"},
			}},
		{ID: ActionSendSMS, Name: "Send SMS", Description: "Send an SMS notification",
			ConfigFields: []types.ConfigField{
				{Name: "phoneNumber", Type: types.FieldString, Required: true, Description: "Recipient phone number"},
				{Name: "message", Type: types.FieldText, Required: true, Description: "SMS message"},
				{Name: "template", Type: types.FieldString, Required: false, Description: "SMS template ID"},
			}},
		{ID: ActionCreateTask, Name: "Create Task", Description: "Create a new task",
			ConfigFields: []types.ConfigField{
				{Name: "title", Type: types.FieldString, Required: true, Description: "Task title"},
				{Name: "description", Type: types.FieldText, Required: false, Description: "Task description"},
				{Name: "assignedTo", Type: types.FieldString, Required: false, Description: "User ID to assign task to"},
				{Name: "dueDate", Type: types.FieldDate, Required: false, Description: "Task due date"},
				{Name: "priority", Type: types.FieldString, Required: false, Description: "Task priority"},
			}},
		{ID: ActionUpdateRecord, Name: "Update Record", Description: "Update a database record",
			ConfigFields: []types.ConfigField{
				{Name: "table", Type: types.FieldString, Required: true, Description: "Table name"},
				{Name: "recordId", Type: types.FieldString, Required: true, Description: "Record ID"},
				{Name: "updates", Type: types.FieldJSON, Required: true, Description: "Fields to update"},
			}},
		{ID: ActionTriggerWebhook, Name: "Trigger Webhook", Description: "Send data to a webhook URL",
			ConfigFields: []types.ConfigField{
				{Name: "url", Type: types.FieldString, Required: true, Description: "Webhook URL"},
				{Name: "method", Type: types.FieldString, Required: false, Description: "HTTP method (POST, PUT, PATCH)"},
				{Name: "headers", Type: types.FieldJSON, Required: false, Description: "Custom headers"},
				{Name: "data", Type: types.FieldJSON, Required: false, Description: "Data to send"},
			}},
		{ID: ActionSendNotification, Name: "Send Notification", Description: "Send a push notification",
			ConfigFields: []types.ConfigField{
				{Name: "userId", Type: types.FieldString, Required: true, Description: "User ID to notify"},
				{Name: "title", Type: types.FieldString, Required: true, Description: "Notification title"},
				{Name: "body", Type: types.FieldText, Required: true, Description: "Notification body"},
				{Name: "data", Type: types.FieldJSON, Required: false, Description: "Additional data"},
			}},
		{ID: ActionDelay, Name: "Delay", Description: "Wait for a specified amount of time",
			ConfigFields: []types.ConfigField{
				{Name: "duration", Type: types.FieldNumber, Required: true, Description: "Delay duration in seconds"},
				{Name: "unit", Type: types.FieldString, Required: false, Description: "Time unit (seconds, minutes, hours, days)"},
			}},
		{ID: ActionConditional, Name: "Conditional", Description: "Execute actions based on conditions",
			ConfigFields: []types.ConfigField{
				{Name: "condition", Type: types.FieldJSON, Required: true, Description: "Condition to evaluate"},
				{Name: "trueActions", Type: types.FieldJSON, Required: false, Description: "Actions to execute if condition is true"},
				{Name: "falseActions", Type: types.FieldJSON, Required: false, Description: "Actions to execute if condition is false"},
			}},
	}
}
