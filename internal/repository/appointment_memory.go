package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/medical-scheduling/internal/domain"
)

type memoryAppointmentRepository struct {
	mu      sync.RWMutex
	records map[string]domain.Appointment
	doctors *keyedLock
}

// NewMemoryAppointmentRepository returns a process-local store. Scheduling
// atomicity comes from a per-doctor lock instead of a database transaction.
func NewMemoryAppointmentRepository() AppointmentRepository {
	return &memoryAppointmentRepository{
		records: make(map[string]domain.Appointment),
		doctors: newKeyedLock(),
	}
}

func (r *memoryAppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[appt.ID]; exists {
		return ErrConflict
	}
	r.records[appt.ID] = *appt
	return nil
}

func (r *memoryAppointmentRepository) Update(ctx context.Context, appt *domain.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[appt.ID]; !exists {
		return ErrNotFound
	}
	r.records[appt.ID] = *appt
	return nil
}

func (r *memoryAppointmentRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[id]; !exists {
		return ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *memoryAppointmentRepository) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, exists := r.records[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &appt, nil
}

func (r *memoryAppointmentRepository) FindByDoctorAndRange(ctx context.Context, doctorID string, start, end time.Time) ([]domain.Appointment, error) {
	return r.collect(ctx, func(a *domain.Appointment) bool {
		return a.DoctorID == doctorID && a.IsLive() && a.DateTime.After(start) && a.DateTime.Before(end)
	}, 0, 0)
}

func (r *memoryAppointmentRepository) ListUpcomingByDoctor(ctx context.Context, doctorID string, after time.Time, limit int) ([]domain.Appointment, error) {
	return r.collect(ctx, func(a *domain.Appointment) bool {
		return a.DoctorID == doctorID && a.DateTime.After(after)
	}, limit, 0)
}

func (r *memoryAppointmentRepository) List(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, error) {
	statuses := make(map[domain.AppointmentStatus]struct{}, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = struct{}{}
	}
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	return r.collect(ctx, func(a *domain.Appointment) bool {
		if filter.DoctorID != nil && a.DoctorID != *filter.DoctorID {
			return false
		}
		if filter.PatientID != nil && a.PatientID != *filter.PatientID {
			return false
		}
		if len(statuses) > 0 {
			if _, ok := statuses[a.Status]; !ok {
				return false
			}
		}
		return true
	}, limit, offset)
}

func (r *memoryAppointmentRepository) WithDoctorLock(ctx context.Context, doctorID string, fn func(ctx context.Context, repo AppointmentRepository) error) error {
	release, err := r.doctors.Acquire(ctx, doctorID)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, r)
}

// collect returns matching records ordered by date_time then id.
func (r *memoryAppointmentRepository) collect(ctx context.Context, match func(*domain.Appointment) bool, limit, offset int) ([]domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	result := make([]domain.Appointment, 0)
	for _, appt := range r.records {
		if match(&appt) {
			result = append(result, appt)
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].DateTime.Equal(result[j].DateTime) {
			return result[i].ID < result[j].ID
		}
		return result[i].DateTime.Before(result[j].DateTime)
	})

	if offset > 0 {
		if offset >= len(result) {
			return []domain.Appointment{}, nil
		}
		result = result[offset:]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
