package dto

import (
	"time"

	"github.com/spec-kit/medical-scheduling/internal/domain"
)

// CreateAppointmentRequest payload.
type CreateAppointmentRequest struct {
	PatientID string     `json:"patientId" validate:"required"`
	DoctorID  string     `json:"doctorId" validate:"required"`
	DateTime  *time.Time `json:"dateTime" validate:"required"`
	Status    string     `json:"status"`
}

// UpdateAppointmentRequest payload. Omitted fields keep their stored value.
type UpdateAppointmentRequest struct {
	PatientID *string    `json:"patientId" validate:"omitempty,min=1"`
	DoctorID  *string    `json:"doctorId" validate:"omitempty,min=1"`
	DateTime  *time.Time `json:"dateTime"`
	Status    *string    `json:"status" validate:"omitempty,min=1"`
}

// AppointmentResponse is the public view of an appointment.
type AppointmentResponse struct {
	ID        string                   `json:"id"`
	PatientID string                   `json:"patientId"`
	DoctorID  string                   `json:"doctorId"`
	DateTime  time.Time                `json:"dateTime"`
	Status    domain.AppointmentStatus `json:"status"`
	CreatedAt time.Time                `json:"createdAt"`
}

// NewAppointmentResponse maps the domain record.
func NewAppointmentResponse(appt *domain.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        appt.ID,
		PatientID: appt.PatientID,
		DoctorID:  appt.DoctorID,
		DateTime:  appt.DateTime,
		Status:    appt.Status,
		CreatedAt: appt.CreatedAt,
	}
}

// NewAppointmentList maps a slice of records.
func NewAppointmentList(appts []domain.Appointment) []AppointmentResponse {
	items := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		items = append(items, NewAppointmentResponse(&appts[i]))
	}
	return items
}
