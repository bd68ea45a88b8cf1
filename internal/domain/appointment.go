package domain

import (
	"strings"
	"time"
)

// AppointmentDuration is the fixed length of every appointment. Two live
// appointments of one doctor must start at least this far apart.
const AppointmentDuration = 30 * time.Minute

// AppointmentStatus enumerates lifecycle states for appointments.
type AppointmentStatus string

const (
	AppointmentStatusPlanned  AppointmentStatus = "PLANNED"
	AppointmentStatusDone     AppointmentStatus = "DONE"
	AppointmentStatusCanceled AppointmentStatus = "CANCELED"
)

// ParseAppointmentStatus matches a status case-insensitively.
func ParseAppointmentStatus(raw string) (AppointmentStatus, bool) {
	switch AppointmentStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case AppointmentStatusPlanned:
		return AppointmentStatusPlanned, true
	case AppointmentStatusDone:
		return AppointmentStatusDone, true
	case AppointmentStatusCanceled:
		return AppointmentStatusCanceled, true
	default:
		return "", false
	}
}

// Appointment books a patient with a doctor at a given instant.
type Appointment struct {
	ID        string
	PatientID string
	DoctorID  string
	DateTime  time.Time
	Status    AppointmentStatus
	CreatedAt time.Time
}

// IsLive reports whether the appointment takes part in overlap checks.
func (a *Appointment) IsLive() bool {
	return a.Status != AppointmentStatusCanceled
}

// ConflictWindow returns the exclusive bounds around at within which another
// live appointment of the same doctor is a conflict.
func ConflictWindow(at time.Time) (start, end time.Time) {
	return at.Add(-AppointmentDuration), at.Add(AppointmentDuration)
}

// Overlaps reports whether two instants are closer than AppointmentDuration.
// Exactly one duration apart is not an overlap.
func Overlaps(a, b time.Time) bool {
	start, end := ConflictWindow(a)
	return b.After(start) && b.Before(end)
}
