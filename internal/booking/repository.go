package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrPhysicianNotFound   = errors.New("physician not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrWindowNotFound      = errors.New("working window not found")

	// ErrDuplicateStart is returned by the store when the unique index on
	// (physician_id, start_at) rejects an insert or reschedule.
	ErrDuplicateStart = errors.New("an active appointment already starts at that instant")

	// ErrStoreUnavailable wraps transient infrastructure failures. Safe to
	// retry with backoff; callers must not confuse it with a booking
	// conflict.
	ErrStoreUnavailable = errors.New("appointment store unavailable")
)

// AppointmentFilter narrows ListAppointments. Nil fields are ignored.
type AppointmentFilter struct {
	PhysicianID   *uuid.UUID
	PatientID     *uuid.UUID
	ScheduledOnly bool
	From          *time.Time
	To            *time.Time
}

// Repository contains all DB interactions needed by the booking service,
// the calendar engine and the working-hours registry.
type Repository interface {
	// Directories
	CreatePatient(ctx context.Context, p *Patient) error
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	DeactivatePatient(ctx context.Context, id uuid.UUID) error

	CreatePhysician(ctx context.Context, p *Physician) error
	GetPhysicianByID(ctx context.Context, id uuid.UUID) (*Physician, error)
	ListPhysicians(ctx context.Context) ([]Physician, error)
	DeactivatePhysician(ctx context.Context, id uuid.UUID) error

	// Working-hours registry
	ListWindows(ctx context.Context, physicianID uuid.UUID) ([]WorkingWindow, error)
	WindowsForDay(ctx context.Context, physicianID uuid.UUID, day time.Weekday) ([]WorkingWindow, error)
	InsertWindow(ctx context.Context, w *WorkingWindow) error
	DeleteWindow(ctx context.Context, id uuid.UUID) error

	// Appointments
	InsertAppointment(ctx context.Context, a *Appointment) error
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateAppointmentStatus performs a compare-and-set: the row only
	// changes if its current status equals from. A miss reports
	// ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, start time.Time, durationMin int) (*Appointment, error)
	UpdateAppointmentNotes(ctx context.Context, id uuid.UUID, notes *string) (*Appointment, error)

	// FindByPhysicianAndRange returns appointments whose half-open interval
	// intersects [from, to), regardless of status.
	FindByPhysicianAndRange(ctx context.Context, physicianID uuid.UUID, from, to time.Time) ([]Appointment, error)

	ListAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error)
}
