// Package channels defines the outbound delivery clients the engine uses for
// its side effects: email, SMS, push notifications, and webhooks.
//
// The engine depends only on the interfaces here; production deployments
// inject real providers, tests inject recorders. The Log* implementations
// mirror the development behavior of the original system: they log the
// delivery and mint a message id without contacting a provider.
package channels

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// EmailSender delivers an email and returns a provider message id.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (string, error)
}

// SMSSender delivers an SMS and returns a provider message id.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

// PushNotifier delivers a push notification and returns a notification id.
// data carries provider-specific payload fields alongside the visible text.
type PushNotifier interface {
	SendNotification(ctx context.Context, userID, title, body string, data map[string]any) (string, error)
}

// LogEmailSender logs the email instead of sending it.
type LogEmailSender struct {
	Log *slog.Logger
}

// SendEmail implements EmailSender.
func (s *LogEmailSender) SendEmail(ctx context.Context, to, subject, body string) (string, error) {
	id := "email-" + uuid.Must(uuid.NewV7()).String()
	s.Log.Info("sending email", "to", to, "subject", subject, "message_id", id)
	return id, nil
}

// LogSMSSender logs the SMS instead of sending it.
type LogSMSSender struct {
	Log *slog.Logger
}

// SendSMS implements SMSSender.
func (s *LogSMSSender) SendSMS(ctx context.Context, phone, message string) (string, error) {
	id := "sms-" + uuid.Must(uuid.NewV7()).String()
	s.Log.Info("sending sms", "phone", phone, "message_id", id)
	return id, nil
}

// LogPushNotifier logs the notification instead of sending it.
type LogPushNotifier struct {
	Log *slog.Logger
}

// SendNotification implements PushNotifier.
func (s *LogPushNotifier) SendNotification(ctx context.Context, userID, title, body string, data map[string]any) (string, error) {
	id := "notification-" + uuid.Must(uuid.NewV7()).String()
	s.Log.Info("sending notification", "user_id", userID, "title", title, "notification_id", id)
	return id, nil
}
