package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/medical-scheduling/internal/config"
	"github.com/spec-kit/medical-scheduling/internal/domain"
	"github.com/spec-kit/medical-scheduling/internal/events"
	"github.com/spec-kit/medical-scheduling/internal/repository"
	apperrors "github.com/spec-kit/medical-scheduling/pkg/util"
)

// UpcomingLimit caps ListUpcomingForDoctor.
const UpcomingLimit = 3

// maxRelockAttempts bounds how often a modification chases a doctor change
// made concurrently by another request.
const maxRelockAttempts = 3

var errDoctorMoved = errors.New("appointment moved to another doctor while waiting for lock")

// SchedulingService books, moves and cancels appointments while keeping the
// no-overlap invariant per doctor.
type SchedulingService struct {
	appointments repository.AppointmentRepository
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

// SchedulingDependencies bundles collaborators of the scheduling service.
type SchedulingDependencies struct {
	AppointmentRepo repository.AppointmentRepository
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
}

// AppointmentInput describes a booking request.
type AppointmentInput struct {
	PatientID string
	DoctorID  string
	DateTime  time.Time
	Status    domain.AppointmentStatus
}

// AppointmentPatch lists the fields an update may change. Nil fields keep
// their stored value.
type AppointmentPatch struct {
	PatientID *string
	DoctorID  *string
	DateTime  *time.Time
	Status    *domain.AppointmentStatus
}

// AppointmentListFilter describes listing filters.
type AppointmentListFilter struct {
	DoctorID  *string
	PatientID *string
	Statuses  []domain.AppointmentStatus
	Limit     int
	Offset    int
}

// NewSchedulingService builds the service.
func NewSchedulingService(cfg config.SchedulerConfig, deps SchedulingDependencies) *SchedulingService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulingService{
		appointments: deps.AppointmentRepo,
		dispatcher:   deps.Dispatcher,
		logger:       logger,
		storeTimeout: cfg.StoreTimeout(),
		now:          time.Now,
	}
}

// WithClock overrides the time source.
func (s *SchedulingService) WithClock(now func() time.Time) *SchedulingService {
	s.now = now
	return s
}

// Create books a new appointment for a DOCTOR or PATIENT caller.
func (s *SchedulingService) Create(ctx context.Context, caller domain.Identity, input AppointmentInput) (*domain.Appointment, error) {
	if !caller.Role.CanBook() {
		return nil, apperrors.NewForbidden("role not permitted to book appointments")
	}

	details := map[string]any{}
	if strings.TrimSpace(input.PatientID) == "" {
		details["patientId"] = "required"
	}
	if strings.TrimSpace(input.DoctorID) == "" {
		details["doctorId"] = "required"
	}
	if input.DateTime.IsZero() {
		details["dateTime"] = "required"
	}
	if input.Status != "" {
		if _, ok := domain.ParseAppointmentStatus(string(input.Status)); !ok {
			details["status"] = "unknown status"
		}
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid appointment", details)
	}

	status := domain.AppointmentStatusPlanned
	if input.Status != "" {
		status, _ = domain.ParseAppointmentStatus(string(input.Status))
	}

	appt := &domain.Appointment{
		ID:        uuid.NewString(),
		PatientID: strings.TrimSpace(input.PatientID),
		DoctorID:  strings.TrimSpace(input.DoctorID),
		DateTime:  input.DateTime.UTC(),
		Status:    status,
		CreatedAt: s.now().UTC(),
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	err := s.appointments.WithDoctorLock(storeCtx, appt.DoctorID, func(ctx context.Context, repo repository.AppointmentRepository) error {
		if err := ensureNoConflict(ctx, repo, appt); err != nil {
			return err
		}
		return repo.Create(ctx, appt)
	})
	if err != nil {
		return nil, s.translate(err, appt)
	}

	s.logger.Info("appointment created",
		zap.String("appointment_id", appt.ID),
		zap.String("doctor_id", appt.DoctorID),
		zap.Time("date_time", appt.DateTime))
	s.publish(ctx, events.EventAppointmentCreated, caller, appt)
	return appt, nil
}

// Update applies patch to the appointment and re-checks the overlap rule
// against the resulting doctor and time, ignoring the appointment itself.
// No role restriction applies.
func (s *SchedulingService) Update(ctx context.Context, caller domain.Identity, id string, patch AppointmentPatch) (*domain.Appointment, error) {
	details := map[string]any{}
	if patch.PatientID != nil && strings.TrimSpace(*patch.PatientID) == "" {
		details["patientId"] = "must not be empty"
	}
	if patch.DoctorID != nil && strings.TrimSpace(*patch.DoctorID) == "" {
		details["doctorId"] = "must not be empty"
	}
	if patch.DateTime != nil && patch.DateTime.IsZero() {
		details["dateTime"] = "must not be empty"
	}
	if patch.Status != nil {
		if _, ok := domain.ParseAppointmentStatus(string(*patch.Status)); !ok {
			details["status"] = "unknown status"
		}
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid appointment", details)
	}

	updated, err := s.modify(ctx, id, func(appt *domain.Appointment) {
		if patch.PatientID != nil {
			appt.PatientID = strings.TrimSpace(*patch.PatientID)
		}
		if patch.DoctorID != nil {
			appt.DoctorID = strings.TrimSpace(*patch.DoctorID)
		}
		if patch.DateTime != nil {
			appt.DateTime = patch.DateTime.UTC()
		}
		if patch.Status != nil {
			appt.Status, _ = domain.ParseAppointmentStatus(string(*patch.Status))
		}
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventAppointmentUpdated, caller, updated)
	return updated, nil
}

// Cancel marks the appointment CANCELED, freeing its slot.
func (s *SchedulingService) Cancel(ctx context.Context, caller domain.Identity, id string) (*domain.Appointment, error) {
	canceled, err := s.modify(ctx, id, func(appt *domain.Appointment) {
		appt.Status = domain.AppointmentStatusCanceled
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventAppointmentCanceled, caller, canceled)
	return canceled, nil
}

// Delete removes the appointment unconditionally.
func (s *SchedulingService) Delete(ctx context.Context, caller domain.Identity, id string) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.appointments.Delete(storeCtx, id); err != nil {
		return s.translate(err, &domain.Appointment{ID: id})
	}
	s.publish(ctx, events.EventAppointmentDeleted, caller, &domain.Appointment{ID: id})
	return nil
}

// Get returns a single appointment.
func (s *SchedulingService) Get(ctx context.Context, id string) (*domain.Appointment, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	appt, err := s.appointments.GetByID(storeCtx, id)
	if err != nil {
		return nil, s.translate(err, &domain.Appointment{ID: id})
	}
	return appt, nil
}

// List returns appointments matching the filter ordered by time.
func (s *SchedulingService) List(ctx context.Context, filter AppointmentListFilter) ([]domain.Appointment, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	appts, err := s.appointments.List(storeCtx, repository.AppointmentFilter{
		DoctorID:  filter.DoctorID,
		PatientID: filter.PatientID,
		Statuses:  filter.Statuses,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	})
	if err != nil {
		return nil, s.translate(err, nil)
	}
	return appts, nil
}

// ListUpcomingForDoctor returns at most UpcomingLimit appointments of the
// doctor strictly after now, earliest first.
func (s *SchedulingService) ListUpcomingForDoctor(ctx context.Context, doctorID string) ([]domain.Appointment, error) {
	if strings.TrimSpace(doctorID) == "" {
		return nil, apperrors.NewValidationError("doctorId is required", nil)
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	appts, err := s.appointments.ListUpcomingByDoctor(storeCtx, doctorID, s.now(), UpcomingLimit)
	if err != nil {
		return nil, s.translate(err, nil)
	}
	return appts, nil
}

// modify re-reads the appointment inside the scope of the doctor it will
// belong to, applies change and persists it after the overlap check.
func (s *SchedulingService) modify(ctx context.Context, id string, change func(*domain.Appointment)) (*domain.Appointment, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	current, err := s.appointments.GetByID(storeCtx, id)
	if err != nil {
		return nil, s.translate(err, &domain.Appointment{ID: id})
	}
	probe := *current
	change(&probe)
	doctorID := probe.DoctorID

	for attempt := 0; attempt < maxRelockAttempts; attempt++ {
		var result *domain.Appointment
		err = s.appointments.WithDoctorLock(storeCtx, doctorID, func(ctx context.Context, repo repository.AppointmentRepository) error {
			fresh, err := repo.GetByID(ctx, id)
			if err != nil {
				return err
			}
			next := *fresh
			change(&next)
			if next.DoctorID != doctorID {
				doctorID = next.DoctorID
				return errDoctorMoved
			}
			if err := ensureNoConflict(ctx, repo, &next); err != nil {
				return err
			}
			if err := repo.Update(ctx, &next); err != nil {
				return err
			}
			result = &next
			return nil
		})
		if errors.Is(err, errDoctorMoved) {
			continue
		}
		if err != nil {
			return nil, s.translate(err, &probe)
		}
		return result, nil
	}
	return nil, apperrors.NewConflict("appointment changed concurrently, retry", map[string]any{"id": id})
}

// ensureNoConflict fails when another live appointment of the same doctor
// starts strictly inside the conflict window of appt.
func ensureNoConflict(ctx context.Context, repo repository.AppointmentRepository, appt *domain.Appointment) error {
	if !appt.IsLive() {
		return nil
	}
	start, end := domain.ConflictWindow(appt.DateTime)
	existing, err := repo.FindByDoctorAndRange(ctx, appt.DoctorID, start, end)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID == appt.ID {
			continue
		}
		return apperrors.NewConflict("doctor already has an appointment in this time slot", map[string]any{
			"doctorId":      appt.DoctorID,
			"dateTime":      appt.DateTime.Format(time.RFC3339),
			"conflictingId": other.ID,
		})
	}
	return nil
}

func (s *SchedulingService) translate(err error, appt *domain.Appointment) error {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		if domainErr.Code == "CONFLICT" && appt != nil {
			s.logger.Info("appointment conflict",
				zap.String("doctor_id", appt.DoctorID),
				zap.Time("date_time", appt.DateTime))
		}
		return err
	case errors.Is(err, repository.ErrNotFound):
		details := map[string]any{}
		if appt != nil {
			details["id"] = appt.ID
		}
		return apperrors.NewNotFound("appointment", details)
	case errors.Is(err, repository.ErrConflict):
		s.logger.Info("appointment rejected by store constraint", zap.Error(err))
		return apperrors.NewConflict("doctor already has an appointment in this time slot", nil)
	default:
		s.logger.Error("appointment store failure", zap.Error(err))
		return apperrors.NewInternalError(err)
	}
}

func (s *SchedulingService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func (s *SchedulingService) publish(ctx context.Context, eventType events.EventType, caller domain.Identity, appt *domain.Appointment) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		AppointmentID: appt.ID,
		Actor:         events.Actor{Subject: caller.Subject, Role: caller.Role},
		Timestamp:     s.now().UTC(),
	}
	if appt.DoctorID != "" {
		event.Payload = events.NewAppointmentPayload(appt)
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_type", string(eventType)),
			zap.String("appointment_id", appt.ID),
			zap.Error(err))
	}
}
