package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/medical-scheduling/internal/config"
	"github.com/spec-kit/medical-scheduling/internal/domain"
	"github.com/spec-kit/medical-scheduling/internal/events"
	"github.com/spec-kit/medical-scheduling/internal/repository"
	apperrors "github.com/spec-kit/medical-scheduling/pkg/util"
)

var (
	patient = domain.Identity{Subject: "patient-1", Role: domain.RolePatient}
	doctor  = domain.Identity{Subject: "doctor-1", Role: domain.RoleDoctor}
	base    = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
)

func newScheduling(t *testing.T) (*SchedulingService, events.Dispatcher) {
	t.Helper()
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewSchedulingService(config.SchedulerConfig{StoreTimeoutMillis: 1000}, SchedulingDependencies{
		AppointmentRepo: repository.NewMemoryAppointmentRepository(),
		Dispatcher:      dispatcher,
	}).WithClock(func() time.Time { return base.Add(-24 * time.Hour) })
	return svc, dispatcher
}

func book(t *testing.T, svc *SchedulingService, doctorID string, at time.Time) *domain.Appointment {
	t.Helper()
	appt, err := svc.Create(context.Background(), patient, AppointmentInput{PatientID: "p1", DoctorID: doctorID, DateTime: at})
	if err != nil {
		t.Fatalf("book %s at %s: %v", doctorID, at, err)
	}
	return appt
}

func TestCreateDefaultsAndStamps(t *testing.T) {
	svc, _ := newScheduling(t)
	appt := book(t, svc, "d1", base)
	if appt.ID == "" {
		t.Fatalf("expected id to be assigned")
	}
	if appt.Status != domain.AppointmentStatusPlanned {
		t.Fatalf("expected PLANNED, got %s", appt.Status)
	}
	if !appt.CreatedAt.Equal(base.Add(-24 * time.Hour)) {
		t.Fatalf("unexpected createdAt %s", appt.CreatedAt)
	}
	stored, err := svc.Get(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.DateTime.Equal(base) || stored.DoctorID != "d1" {
		t.Fatalf("unexpected stored record %+v", stored)
	}
}

func TestCreateRoleGate(t *testing.T) {
	svc, _ := newScheduling(t)
	input := AppointmentInput{PatientID: "p1", DoctorID: "d1", DateTime: base}

	for _, caller := range []domain.Identity{
		{Subject: "x", Role: "ADMIN"},
		{Subject: "x", Role: ""},
	} {
		if _, err := svc.Create(context.Background(), caller, input); !apperrors.IsCode(err, "FORBIDDEN") {
			t.Fatalf("role %q: expected FORBIDDEN, got %v", caller.Role, err)
		}
	}
	if _, err := svc.Create(context.Background(), doctor, input); err != nil {
		t.Fatalf("doctor should be allowed to book: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newScheduling(t)
	_, err := svc.Create(context.Background(), patient, AppointmentInput{DoctorID: "d1"})
	if !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("expected validation error, got %v", err)
	}
	details := apperrors.ToDomainError(err).Details
	if details["patientId"] == nil || details["dateTime"] == nil {
		t.Fatalf("expected patientId and dateTime details, got %v", details)
	}
}

func TestConflictWindowBoundaries(t *testing.T) {
	cases := []struct {
		name     string
		offset   time.Duration
		conflict bool
	}{
		{"same instant", 0, true},
		{"29 minutes after", 29 * time.Minute, true},
		{"29 minutes before", -29 * time.Minute, true},
		{"exactly 30 minutes after", 30 * time.Minute, false},
		{"exactly 30 minutes before", -30 * time.Minute, false},
		{"one hour after", time.Hour, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newScheduling(t)
			book(t, svc, "d1", base)
			_, err := svc.Create(context.Background(), patient, AppointmentInput{PatientID: "p2", DoctorID: "d1", DateTime: base.Add(tc.offset)})
			if tc.conflict && !apperrors.IsCode(err, "CONFLICT") {
				t.Fatalf("expected CONFLICT, got %v", err)
			}
			if !tc.conflict && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
		})
	}
}

func TestConflictIsPerDoctor(t *testing.T) {
	svc, _ := newScheduling(t)
	book(t, svc, "d1", base)
	book(t, svc, "d2", base)
}

func TestConflictRejectionIsRepeatable(t *testing.T) {
	svc, _ := newScheduling(t)
	book(t, svc, "d1", base)
	input := AppointmentInput{PatientID: "p2", DoctorID: "d1", DateTime: base.Add(10 * time.Minute)}
	for i := 0; i < 3; i++ {
		if _, err := svc.Create(context.Background(), patient, input); !apperrors.IsCode(err, "CONFLICT") {
			t.Fatalf("attempt %d: expected CONFLICT, got %v", i, err)
		}
	}
}

func TestCancelFreesSlotScenario(t *testing.T) {
	svc, _ := newScheduling(t)
	ctx := context.Background()

	first := book(t, svc, "D", base)

	if _, err := svc.Create(ctx, patient, AppointmentInput{PatientID: "p", DoctorID: "D", DateTime: base.Add(25 * time.Minute)}); !apperrors.IsCode(err, "CONFLICT") {
		t.Fatalf("10:25 should conflict, got %v", err)
	}

	second, err := svc.Create(ctx, patient, AppointmentInput{PatientID: "p", DoctorID: "D", DateTime: base.Add(30 * time.Minute)})
	if err != nil {
		t.Fatalf("10:30 should succeed: %v", err)
	}
	if second.Status != domain.AppointmentStatusPlanned {
		t.Fatalf("expected PLANNED, got %s", second.Status)
	}

	// 10:15 still clashes with 10:30 after canceling 10:00, so move 10:30 out.
	canceled, err := svc.Cancel(ctx, doctor, first.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.Status != domain.AppointmentStatusCanceled {
		t.Fatalf("expected CANCELED, got %s", canceled.Status)
	}
	later := base.Add(time.Hour)
	if _, err := svc.Update(ctx, doctor, second.ID, AppointmentPatch{DateTime: &later}); err != nil {
		t.Fatalf("move 10:30 to 11:00: %v", err)
	}

	if _, err := svc.Create(ctx, patient, AppointmentInput{PatientID: "p", DoctorID: "D", DateTime: base.Add(15 * time.Minute)}); err != nil {
		t.Fatalf("10:15 should succeed once 10:00 is canceled: %v", err)
	}
}

func TestConcurrentCreatesForSameDoctor(t *testing.T) {
	svc, _ := newScheduling(t)
	const n = 12

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			at := base.Add(time.Duration(i) * time.Minute)
			_, err := svc.Create(context.Background(), patient, AppointmentInput{PatientID: fmt.Sprintf("p%d", i), DoctorID: "busy", DateTime: at})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.IsCode(err, "CONFLICT"):
				conflicts++
			default:
				others = append(others, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", n-1, successes, conflicts)
	}
}

func TestNoOverlapInvariantAfterMixedWrites(t *testing.T) {
	svc, _ := newScheduling(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			at := base.Add(time.Duration(i*7) * time.Minute)
			_, _ = svc.Create(ctx, patient, AppointmentInput{PatientID: "p", DoctorID: "D", DateTime: at})
		}(i)
	}
	wg.Wait()

	doctorID := "D"
	all, err := svc.List(ctx, AppointmentListFilter{DoctorID: &doctorID, Limit: 100})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) == 0 {
		t.Fatalf("expected some bookings")
	}
	for i := 1; i < len(all); i++ {
		if gap := all[i].DateTime.Sub(all[i-1].DateTime); gap < domain.AppointmentDuration {
			t.Fatalf("live appointments %s and %s are %s apart", all[i-1].ID, all[i].ID, gap)
		}
	}
}

func TestUpdateExcludesItselfAndChecksOthers(t *testing.T) {
	svc, _ := newScheduling(t)
	ctx := context.Background()
	first := book(t, svc, "d1", base)
	book(t, svc, "d1", base.Add(time.Hour))

	nudged := base.Add(10 * time.Minute)
	updated, err := svc.Update(ctx, patient, first.ID, AppointmentPatch{DateTime: &nudged})
	if err != nil {
		t.Fatalf("moving within own slot should succeed: %v", err)
	}
	if !updated.CreatedAt.Equal(first.CreatedAt) || updated.ID != first.ID {
		t.Fatalf("update must keep id and createdAt")
	}

	clash := base.Add(45 * time.Minute)
	if _, err := svc.Update(ctx, patient, first.ID, AppointmentPatch{DateTime: &clash}); !apperrors.IsCode(err, "CONFLICT") {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	stored, _ := svc.Get(ctx, first.ID)
	if !stored.DateTime.Equal(nudged) {
		t.Fatalf("rejected update must not be written, got %s", stored.DateTime)
	}
}

func TestUpdateMovingDoctorChecksTargetDoctor(t *testing.T) {
	svc, _ := newScheduling(t)
	ctx := context.Background()
	appt := book(t, svc, "d1", base)
	book(t, svc, "d2", base.Add(5*time.Minute))

	target := "d2"
	if _, err := svc.Update(ctx, patient, appt.ID, AppointmentPatch{DoctorID: &target}); !apperrors.IsCode(err, "CONFLICT") {
		t.Fatalf("expected CONFLICT on target doctor, got %v", err)
	}
	other := "d3"
	moved, err := svc.Update(ctx, patient, appt.ID, AppointmentPatch{DoctorID: &other})
	if err != nil {
		t.Fatalf("move to free doctor: %v", err)
	}
	if moved.DoctorID != "d3" {
		t.Fatalf("expected d3, got %s", moved.DoctorID)
	}
}

func TestUpdateHasNoRoleCheck(t *testing.T) {
	svc, _ := newScheduling(t)
	appt := book(t, svc, "d1", base)
	status := domain.AppointmentStatusDone
	updated, err := svc.Update(context.Background(), domain.Identity{}, appt.ID, AppointmentPatch{Status: &status})
	if err != nil {
		t.Fatalf("update without role: %v", err)
	}
	if updated.Status != domain.AppointmentStatusDone {
		t.Fatalf("expected DONE, got %s", updated.Status)
	}
}

func TestNotFound(t *testing.T) {
	svc, _ := newScheduling(t)
	ctx := context.Background()
	if _, err := svc.Get(ctx, "missing"); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("get: expected NOT_FOUND, got %v", err)
	}
	if err := svc.Delete(ctx, patient, "missing"); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("delete: expected NOT_FOUND, got %v", err)
	}
	at := base
	if _, err := svc.Update(ctx, patient, "missing", AppointmentPatch{DateTime: &at}); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("update: expected NOT_FOUND, got %v", err)
	}
	if _, err := svc.Cancel(ctx, patient, "missing"); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("cancel: expected NOT_FOUND, got %v", err)
	}
}

func TestDeleteFreesSlot(t *testing.T) {
	svc, _ := newScheduling(t)
	ctx := context.Background()
	appt := book(t, svc, "d1", base)
	if err := svc.Delete(ctx, domain.Identity{}, appt.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, appt.ID); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("expected NOT_FOUND after delete, got %v", err)
	}
	book(t, svc, "d1", base)
}

func TestListUpcomingForDoctor(t *testing.T) {
	svc, _ := newScheduling(t)
	now := base
	svc.WithClock(func() time.Time { return now.Add(-2 * time.Hour) })
	book(t, svc, "D", now.Add(-time.Hour))
	book(t, svc, "D", now.Add(3*time.Hour))
	book(t, svc, "D", now.Add(time.Hour))
	book(t, svc, "D", now.Add(2*time.Hour))
	book(t, svc, "other", now.Add(time.Hour))

	svc.WithClock(func() time.Time { return now })
	upcoming, err := svc.ListUpcomingForDoctor(context.Background(), "D")
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(upcoming) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(upcoming))
	}
	for i, want := range []time.Time{now.Add(time.Hour), now.Add(2 * time.Hour), now.Add(3 * time.Hour)} {
		if !upcoming[i].DateTime.Equal(want) || upcoming[i].DoctorID != "D" {
			t.Fatalf("entry %d: expected %s, got %+v", i, want, upcoming[i])
		}
	}
}

func TestCreatePublishesEvent(t *testing.T) {
	svc, dispatcher := newScheduling(t)
	var got []events.Event
	dispatcher.Subscribe(events.EventAppointmentCreated, func(_ context.Context, e events.Event) error {
		got = append(got, e)
		return nil
	})

	appt := book(t, svc, "d1", base)
	if len(got) != 1 {
		t.Fatalf("expected one event, got %d", len(got))
	}
	if got[0].AppointmentID != appt.ID || got[0].Actor.Subject != patient.Subject {
		t.Fatalf("unexpected event %+v", got[0])
	}

	// rejected bookings emit nothing
	_, _ = svc.Create(context.Background(), patient, AppointmentInput{PatientID: "p", DoctorID: "d1", DateTime: base})
	if len(got) != 1 {
		t.Fatalf("conflict must not publish, got %d events", len(got))
	}
}
