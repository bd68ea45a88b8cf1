package events

import (
	"time"

	"github.com/spec-kit/medical-scheduling/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAppointmentCreated  EventType = "appointment_created"
	EventAppointmentUpdated  EventType = "appointment_updated"
	EventAppointmentCanceled EventType = "appointment_canceled"
	EventAppointmentDeleted  EventType = "appointment_deleted"
)

// AllEventTypes lists every type a relay has to forward.
var AllEventTypes = []EventType{
	EventAppointmentCreated,
	EventAppointmentUpdated,
	EventAppointmentCanceled,
	EventAppointmentDeleted,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Subject string      `json:"subject,omitempty"`
	Role    domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID            string      `json:"id"`
	Type          EventType   `json:"type"`
	AppointmentID string      `json:"appointment_id"`
	Actor         Actor       `json:"actor"`
	Timestamp     time.Time   `json:"timestamp"`
	Payload       interface{} `json:"payload"`
}

// AppointmentPayload snapshots the appointment after the change.
type AppointmentPayload struct {
	PatientID string                   `json:"patient_id"`
	DoctorID  string                   `json:"doctor_id"`
	DateTime  time.Time                `json:"date_time"`
	Status    domain.AppointmentStatus `json:"status"`
}

// NewAppointmentPayload builds the payload for appt.
func NewAppointmentPayload(appt *domain.Appointment) AppointmentPayload {
	return AppointmentPayload{
		PatientID: appt.PatientID,
		DoctorID:  appt.DoctorID,
		DateTime:  appt.DateTime,
		Status:    appt.Status,
	}
}
