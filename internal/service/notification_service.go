package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/medical-scheduling/internal/config"
	"github.com/spec-kit/medical-scheduling/internal/domain"
	"github.com/spec-kit/medical-scheduling/internal/events"
)

// Notification is a message addressed to one participant of an appointment.
type Notification struct {
	AppointmentID string
	RecipientID   string
	RecipientRole domain.Role
	Subject       string
	Body          string
}

// NotificationService turns appointment events into notifications for the
// patient and the doctor. Delivery is stubbed: messages are logged with the
// configured email sender and webhook target.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to the events that concern participants.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAppointmentCreated, n.handle)
	n.dispatcher.Subscribe(events.EventAppointmentUpdated, n.handle)
	n.dispatcher.Subscribe(events.EventAppointmentCanceled, n.handle)
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	notifications := n.Compose(event)
	for _, notification := range notifications {
		n.sendEmailStub(ctx, notification)
		n.sendWebhookStub(ctx, notification)
	}
	n.logger.Info("appointment notifications composed",
		zap.String("event_type", string(event.Type)),
		zap.String("appointment_id", event.AppointmentID),
		zap.Int("count", len(notifications)))
	return nil
}

// Compose builds one notification per participant. The participant who made
// the change is not notified. Events without an appointment snapshot yield
// nothing.
func (n *NotificationService) Compose(event events.Event) []Notification {
	payload, ok := event.Payload.(events.AppointmentPayload)
	if !ok {
		return nil
	}

	subject, verb := describe(event.Type)
	if subject == "" {
		return nil
	}
	when := payload.DateTime.UTC().Format(time.RFC1123)
	body := fmt.Sprintf("Appointment %s with doctor %s for patient %s %s for %s (status %s).",
		event.AppointmentID, payload.DoctorID, payload.PatientID, verb, when, payload.Status)

	recipients := []struct {
		id   string
		role domain.Role
	}{
		{payload.PatientID, domain.RolePatient},
		{payload.DoctorID, domain.RoleDoctor},
	}
	out := make([]Notification, 0, len(recipients))
	for _, r := range recipients {
		if r.id == "" || r.id == event.Actor.Subject {
			continue
		}
		out = append(out, Notification{
			AppointmentID: event.AppointmentID,
			RecipientID:   r.id,
			RecipientRole: r.role,
			Subject:       subject,
			Body:          body,
		})
	}
	return out
}

func describe(eventType events.EventType) (subject, verb string) {
	switch eventType {
	case events.EventAppointmentCreated:
		return "Appointment booked", "is booked"
	case events.EventAppointmentUpdated:
		return "Appointment changed", "is now scheduled"
	case events.EventAppointmentCanceled:
		return "Appointment canceled", "was canceled; it was scheduled"
	default:
		return "", ""
	}
}

func (n *NotificationService) sendEmailStub(_ context.Context, notification Notification) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("email notification",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("recipient_id", notification.RecipientID),
		zap.String("recipient_role", string(notification.RecipientRole)),
		zap.String("subject", notification.Subject))
}

func (n *NotificationService) sendWebhookStub(_ context.Context, notification Notification) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("webhook notification",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("appointment_id", notification.AppointmentID),
		zap.String("recipient_id", notification.RecipientID))
}
