package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/medical-scheduling/internal/domain"
)

// AppointmentFilter captures listing parameters.
type AppointmentFilter struct {
	DoctorID  *string
	PatientID *string
	Statuses  []domain.AppointmentStatus
	Limit     int
	Offset    int
}

// AppointmentRepository encapsulates appointment persistence.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *domain.Appointment) error
	Update(ctx context.Context, appt *domain.Appointment) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Appointment, error)
	// FindByDoctorAndRange returns live appointments of the doctor with
	// start < date_time < end.
	FindByDoctorAndRange(ctx context.Context, doctorID string, start, end time.Time) ([]domain.Appointment, error)
	// ListUpcomingByDoctor returns up to limit appointments with
	// date_time > after, earliest first.
	ListUpcomingByDoctor(ctx context.Context, doctorID string, after time.Time, limit int) ([]domain.Appointment, error)
	List(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, error)
	// WithDoctorLock runs fn while holding the doctor's exclusive scheduling
	// scope. Reads and writes done through the repo passed to fn are
	// serialized against every other WithDoctorLock for the same doctor.
	WithDoctorLock(ctx context.Context, doctorID string, fn func(ctx context.Context, repo AppointmentRepository) error) error
}

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type appointmentRepository struct {
	pool *pgxpool.Pool
	db   dbtx
}

// NewAppointmentRepository returns a Postgres-backed implementation.
func NewAppointmentRepository(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepository{pool: pool, db: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, date_time, status, created_at`

func (r *appointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	const query = `
        INSERT INTO appointments (id, patient_id, doctor_id, date_time, status, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.db.Exec(ctx, query,
		appt.ID,
		appt.PatientID,
		appt.DoctorID,
		appt.DateTime,
		appt.Status,
		appt.CreatedAt,
	)
	return mapPgError(err)
}

func (r *appointmentRepository) Update(ctx context.Context, appt *domain.Appointment) error {
	const query = `
        UPDATE appointments SET patient_id=$1, doctor_id=$2, date_time=$3, status=$4
        WHERE id=$5`
	cmd, err := r.db.Exec(ctx, query,
		appt.PatientID,
		appt.DoctorID,
		appt.DateTime,
		appt.Status,
		appt.ID,
	)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepository) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id=$1`
	var appt domain.Appointment
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.DoctorID,
		&appt.DateTime,
		&appt.Status,
		&appt.CreatedAt,
	); err != nil {
		return nil, mapPgError(err)
	}
	return &appt, nil
}

func (r *appointmentRepository) FindByDoctorAndRange(ctx context.Context, doctorID string, start, end time.Time) ([]domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
             WHERE doctor_id=$1 AND status <> $2 AND date_time > $3 AND date_time < $4
             ORDER BY date_time ASC`
	rows, err := r.db.Query(ctx, query, doctorID, domain.AppointmentStatusCanceled, start, end)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *appointmentRepository) ListUpcomingByDoctor(ctx context.Context, doctorID string, after time.Time, limit int) ([]domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
             WHERE doctor_id=$1 AND date_time > $2
             ORDER BY date_time ASC LIMIT $3`
	rows, err := r.db.Query(ctx, query, doctorID, after, limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *appointmentRepository) List(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, error) {
	base := `SELECT ` + appointmentColumns + ` FROM appointments`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.DoctorID != nil {
		args = append(args, *filter.DoctorID)
		clauses = append(clauses, fmt.Sprintf("doctor_id=$%d", len(args)))
	}
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		clauses = append(clauses, fmt.Sprintf("patient_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY date_time ASC, id ASC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// WithDoctorLock takes a transaction-scoped advisory lock keyed by doctor id.
// The lock is released by commit or rollback, so every exit path frees it.
func (r *appointmentRepository) WithDoctorLock(ctx context.Context, doctorID string, fn func(ctx context.Context, repo AppointmentRepository) error) error {
	if r.pool == nil {
		// already inside a transaction
		if err := lockDoctor(ctx, r.db, doctorID); err != nil {
			return err
		}
		return fn(ctx, r)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockDoctor(ctx, tx, doctorID); err != nil {
		return err
	}
	if err := fn(ctx, &appointmentRepository{db: tx}); err != nil {
		return err
	}
	return mapPgError(tx.Commit(ctx))
}

func lockDoctor(ctx context.Context, db dbtx, doctorID string) error {
	_, err := db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "appointments:"+doctorID)
	return err
}

func scanAppointments(rows pgx.Rows) ([]domain.Appointment, error) {
	var result []domain.Appointment
	for rows.Next() {
		var appt domain.Appointment
		if err := rows.Scan(
			&appt.ID,
			&appt.PatientID,
			&appt.DoctorID,
			&appt.DateTime,
			&appt.Status,
			&appt.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, appt)
	}
	return result, rows.Err()
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
