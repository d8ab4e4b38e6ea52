package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// classify separates server-side statement errors from infrastructure
// failures. Anything that never reached the server (network, pool, context)
// is reported as ErrStoreUnavailable so callers can retry.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolation {
			return ErrDuplicateStart
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}

// Scan helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, classify("scan patient", err)
	}
	return &p, nil
}

func scanPhysician(row pgx.Row) (*Physician, error) {
	var p Physician
	err := row.Scan(&p.ID, &p.Name, &p.License, &p.Specialty, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPhysicianNotFound
		}
		return nil, classify("scan physician", err)
	}
	return &p, nil
}

func scanWindow(row pgx.Row) (*WorkingWindow, error) {
	var w WorkingWindow
	var weekday int
	err := row.Scan(&w.ID, &w.PhysicianID, &weekday, &w.StartMin, &w.EndMin, &w.SlotMinutes, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		return nil, classify("scan window", err)
	}
	w.Weekday = time.Weekday(weekday)
	return &w, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.PhysicianID, &a.StartAt, &a.DurationMin, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, classify("scan appointment", err)
	}
	return &a, nil
}

// Directories

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, name, email, phone, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, now(), now())
		RETURNING id, name, email, phone, active, created_at, updated_at
	`, p.ID, p.Name, p.Email, p.Phone)
	saved, err := scanPatient(row)
	if err != nil {
		return err
	}
	*p = *saved
	return nil
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, active, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, phone, active, created_at, updated_at
		FROM patients
		ORDER BY name
	`)
	if err != nil {
		return nil, classify("list patients", err)
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list patients", err)
	}
	return result, nil
}

func (r *PgRepository) DeactivatePatient(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE patients SET active = false, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return classify("deactivate patient", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PgRepository) CreatePhysician(ctx context.Context, p *Physician) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO physicians (id, name, license, specialty, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, now(), now())
		RETURNING id, name, license, specialty, active, created_at, updated_at
	`, p.ID, p.Name, p.License, p.Specialty)
	saved, err := scanPhysician(row)
	if err != nil {
		return err
	}
	*p = *saved
	return nil
}

func (r *PgRepository) GetPhysicianByID(ctx context.Context, id uuid.UUID) (*Physician, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, license, specialty, active, created_at, updated_at
		FROM physicians
		WHERE id = $1
	`, id)
	return scanPhysician(row)
}

func (r *PgRepository) ListPhysicians(ctx context.Context) ([]Physician, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, license, specialty, active, created_at, updated_at
		FROM physicians
		ORDER BY name
	`)
	if err != nil {
		return nil, classify("list physicians", err)
	}
	defer rows.Close()

	var result []Physician
	for rows.Next() {
		p, err := scanPhysician(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list physicians", err)
	}
	return result, nil
}

func (r *PgRepository) DeactivatePhysician(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE physicians SET active = false, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return classify("deactivate physician", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPhysicianNotFound
	}
	return nil
}

// Working-hours registry

func (r *PgRepository) ListWindows(ctx context.Context, physicianID uuid.UUID) ([]WorkingWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, physician_id, weekday, start_min, end_min, slot_minutes, created_at, updated_at
		FROM working_windows
		WHERE physician_id = $1
		ORDER BY weekday, start_min
	`, physicianID)
	if err != nil {
		return nil, classify("list windows", err)
	}
	defer rows.Close()
	return collectWindows(rows)
}

func (r *PgRepository) WindowsForDay(ctx context.Context, physicianID uuid.UUID, day time.Weekday) ([]WorkingWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, physician_id, weekday, start_min, end_min, slot_minutes, created_at, updated_at
		FROM working_windows
		WHERE physician_id = $1 AND weekday = $2
		ORDER BY start_min
	`, physicianID, int(day))
	if err != nil {
		return nil, classify("windows for day", err)
	}
	defer rows.Close()
	return collectWindows(rows)
}

func collectWindows(rows pgx.Rows) ([]WorkingWindow, error) {
	var result []WorkingWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("collect windows", err)
	}
	return result, nil
}

func (r *PgRepository) InsertWindow(ctx context.Context, w *WorkingWindow) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO working_windows (id, physician_id, weekday, start_min, end_min, slot_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, physician_id, weekday, start_min, end_min, slot_minutes, created_at, updated_at
	`, w.ID, w.PhysicianID, int(w.Weekday), w.StartMin, w.EndMin, w.SlotMinutes)
	saved, err := scanWindow(row)
	if err != nil {
		return err
	}
	*w = *saved
	return nil
}

func (r *PgRepository) DeleteWindow(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM working_windows WHERE id = $1`, id)
	if err != nil {
		return classify("delete window", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWindowNotFound
	}
	return nil
}

// Appointments

func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, physician_id, start_at, duration_min, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id, patient_id, physician_id, start_at, duration_min, status, notes, created_at, updated_at
	`, a.ID, a.PatientID, a.PhysicianID, a.StartAt, a.DurationMin, a.Status, a.Notes)
	saved, err := scanAppointment(row)
	if err != nil {
		return err
	}
	*a = *saved
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, physician_id, start_at, duration_min, status, notes, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, patient_id, physician_id, start_at, duration_min, status, notes, created_at, updated_at
	`, id, to, from)
	return scanAppointment(row)
}

// RescheduleAppointment moves an active appointment. The status guard makes
// the write a no-op once the row went terminal; the miss surfaces as
// ErrAppointmentNotFound.
func (r *PgRepository) RescheduleAppointment(ctx context.Context, id uuid.UUID, start time.Time, durationMin int) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET start_at = $2,
		    duration_min = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('scheduled', 'confirmed')
		RETURNING id, patient_id, physician_id, start_at, duration_min, status, notes, created_at, updated_at
	`, id, start, durationMin)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentNotes(ctx context.Context, id uuid.UUID, notes *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET notes = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, patient_id, physician_id, start_at, duration_min, status, notes, created_at, updated_at
	`, id, notes)
	return scanAppointment(row)
}

// FindByPhysicianAndRange uses the half-open overlap predicate:
// an appointment intersects [from, to) iff start < to AND end > from.
func (r *PgRepository) FindByPhysicianAndRange(ctx context.Context, physicianID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, physician_id, start_at, duration_min, status, notes, created_at, updated_at
		FROM appointments
		WHERE physician_id = $1
		  AND start_at < $3
		  AND start_at + make_interval(mins => duration_min) > $2
		ORDER BY start_at
	`, physicianID, from, to)
	if err != nil {
		return nil, classify("find by physician and range", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("find by physician and range", err)
	}
	return result, nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	conds := []string{"1=1"}
	args := []any{}

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.PhysicianID != nil {
		add("a.physician_id = $%d", *f.PhysicianID)
	}
	if f.PatientID != nil {
		add("a.patient_id = $%d", *f.PatientID)
	}
	if f.ScheduledOnly {
		conds = append(conds, "a.status IN ('scheduled', 'confirmed')")
	}
	if f.From != nil {
		add("a.start_at + make_interval(mins => a.duration_min) > $%d", *f.From)
	}
	if f.To != nil {
		add("a.start_at < $%d", *f.To)
	}

	query := fmt.Sprintf(`
		SELECT a.id, a.patient_id, a.physician_id, a.start_at, a.duration_min, a.status, a.notes, a.created_at, a.updated_at,
		       p.name, d.name, d.specialty
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN physicians d ON d.id = a.physician_id
		WHERE %s
		ORDER BY a.start_at
	`, strings.Join(conds, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list appointments", err)
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		var d AppointmentDetail
		err := rows.Scan(
			&d.ID, &d.PatientID, &d.PhysicianID, &d.StartAt, &d.DurationMin, &d.Status, &d.Notes, &d.CreatedAt, &d.UpdatedAt,
			&d.PatientName, &d.PhysicianName, &d.PhysicianSpecialty,
		)
		if err != nil {
			return nil, classify("list appointments", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list appointments", err)
	}
	return result, nil
}
