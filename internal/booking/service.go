package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/config"
	redisclient "github.com/joaoviitorsx/SistemaDeAgendamento/internal/redis"
)

var (
	// ErrSlotUnavailable: the requested interval overlaps an active
	// appointment, or a concurrent booking for the same physician is in
	// flight. The client should re-query slots and retry.
	ErrSlotUnavailable = errors.New("requested slot is no longer available")

	// ErrInvalidSchedule: start outside working hours, bad duration
	// granularity, or start not strictly in the future. Not recoverable
	// without changing the input.
	ErrInvalidSchedule = errors.New("requested schedule is not bookable")

	ErrInvalidTransition = errors.New("status transition is not permitted")
	ErrAlreadyTerminal   = errors.New("appointment is already completed or cancelled")
	ErrForbidden         = errors.New("actor is not allowed to perform this operation")
)

type CreateInput struct {
	PatientID   uuid.UUID
	PhysicianID uuid.UUID
	StartAt     time.Time
	DurationMin int
	Notes       *string
}

// Patch is a partial appointment update. Nil fields are left untouched.
// Changing start or duration re-runs the full schedule validation.
type Patch struct {
	StartAt     *time.Time
	DurationMin *int
	Status      *Status
	Notes       *string
}

func (p Patch) reschedules() bool {
	return p.StartAt != nil || p.DurationMin != nil
}

// Service orchestrates slot validation and appointment writes as atomic
// operations. All mutations to appointments go through here.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// withRetry re-attempts fn a bounded number of times, but only for transient
// store failures. Domain errors surface immediately.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	attempts := s.cfg.StoreRetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrStoreUnavailable) {
			return err
		}
		s.log.Warn().Str("op", op).Int("attempt", i+1).Err(err).Msg("store unavailable, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(s.cfg.StoreRetryBackoff * time.Duration(i+1)):
		}
	}
	return err
}

// CreateAppointment books a slot for a patient. The overlap check and the
// insert run inside a per-physician critical section so that two concurrent
// requests for intersecting intervals cannot both succeed.
func (s *Service) CreateAppointment(ctx context.Context, actor Actor, in CreateInput) (*Appointment, error) {
	switch actor.Role {
	case RoleAdmin:
	case RolePatient:
		if actor.ID != in.PatientID {
			return nil, fmt.Errorf("%w: patients may only book for themselves", ErrForbidden)
		}
	case RolePhysician:
		if actor.ID != in.PhysicianID {
			return nil, fmt.Errorf("%w: physicians may only book onto their own calendar", ErrForbidden)
		}
	default:
		return nil, ErrForbidden
	}

	var patient *Patient
	err := s.withRetry(ctx, "load patient", func() error {
		var err error
		patient, err = s.repo.GetPatientByID(ctx, in.PatientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !patient.Active {
		return nil, ErrPatientNotFound
	}

	var physician *Physician
	err = s.withRetry(ctx, "load physician", func() error {
		var err error
		physician, err = s.repo.GetPhysicianByID(ctx, in.PhysicianID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !physician.Active {
		return nil, ErrPhysicianNotFound
	}

	if err := s.validateSchedule(ctx, in.PhysicianID, in.StartAt, in.DurationMin); err != nil {
		return nil, err
	}

	appt := &Appointment{
		PatientID:   in.PatientID,
		PhysicianID: in.PhysicianID,
		StartAt:     in.StartAt,
		DurationMin: in.DurationMin,
		Status:      StatusScheduled,
		Notes:       in.Notes,
	}

	err = s.locker.WithPhysicianLock(ctx, in.PhysicianID, func(lockCtx context.Context) error {
		// Re-check inside the critical section: the slot list the client
		// saw may be stale, and "available" flags are never trusted.
		if err := s.checkOverlap(lockCtx, in.PhysicianID, in.StartAt, in.DurationMin, uuid.Nil); err != nil {
			return err
		}
		if err := s.repo.InsertAppointment(lockCtx, appt); err != nil {
			if errors.Is(err, ErrDuplicateStart) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("insert appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: another booking for this physician is in flight", ErrSlotUnavailable)
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("physician_id", in.PhysicianID.String()).
		Str("patient_id", in.PatientID.String()).
		Time("start_at", in.StartAt).
		Int("duration_min", in.DurationMin).
		Msg("appointment created")

	return appt, nil
}

// UpdateAppointment applies a partial update. Reschedules re-run the full
// window and overlap validation, excluding the appointment's own slot; status
// changes must follow the transition table.
func (s *Service) UpdateAppointment(ctx context.Context, actor Actor, id uuid.UUID, patch Patch) (*Appointment, error) {
	appt, err := s.getForActor(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil {
		if err := s.authorizeTransition(actor, *patch.Status); err != nil {
			return nil, err
		}
	}

	if patch.reschedules() {
		if appt.Status.Terminal() {
			return nil, ErrAlreadyTerminal
		}

		err = s.locker.WithPhysicianLock(ctx, appt.PhysicianID, func(lockCtx context.Context) error {
			// Re-load inside the critical section: a cancel or the
			// completion sweep may have finished the appointment since the
			// check above, and terminal records never move.
			current, err := s.repo.GetAppointmentByID(lockCtx, appt.ID)
			if err != nil {
				return err
			}
			if current.Status.Terminal() {
				return ErrAlreadyTerminal
			}

			start := current.StartAt
			if patch.StartAt != nil {
				start = *patch.StartAt
			}
			duration := current.DurationMin
			if patch.DurationMin != nil {
				duration = *patch.DurationMin
			}

			if err := s.validateSchedule(lockCtx, current.PhysicianID, start, duration); err != nil {
				return err
			}
			if err := s.checkOverlap(lockCtx, current.PhysicianID, start, duration, current.ID); err != nil {
				return err
			}
			updated, err := s.repo.RescheduleAppointment(lockCtx, current.ID, start, duration)
			if err != nil {
				if errors.Is(err, ErrDuplicateStart) {
					return ErrSlotUnavailable
				}
				// The store only moves active rows; a miss here means the
				// status flipped terminal under us.
				if errors.Is(err, ErrAppointmentNotFound) {
					return ErrAlreadyTerminal
				}
				return fmt.Errorf("reschedule appointment: %w", err)
			}
			appt = updated
			return nil
		})
		if err != nil {
			if errors.Is(err, redisclient.ErrLockNotAcquired) {
				return nil, fmt.Errorf("%w: another booking for this physician is in flight", ErrSlotUnavailable)
			}
			return nil, err
		}
	}

	if patch.Status != nil {
		updated, err := s.transition(ctx, appt, *patch.Status)
		if err != nil {
			return nil, err
		}
		appt = updated
	}

	if patch.Notes != nil {
		updated, err := s.repo.UpdateAppointmentNotes(ctx, appt.ID, patch.Notes)
		if err != nil {
			return nil, err
		}
		appt = updated
	}

	s.log.Info().Str("appointment_id", appt.ID.String()).Str("status", string(appt.Status)).Msg("appointment updated")
	return appt, nil
}

// CancelAppointment is a status patch to cancelled. Cancelling never deletes
// the record; history is preserved.
func (s *Service) CancelAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	cancelled := StatusCancelled
	return s.UpdateAppointment(ctx, actor, id, Patch{Status: &cancelled})
}

func (s *Service) GetAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	return s.getForActor(ctx, actor, id)
}

// ListAppointments narrows the filter to what the actor may see: patients
// their own bookings, physicians their own calendar, admins everything.
func (s *Service) ListAppointments(ctx context.Context, actor Actor, f AppointmentFilter) ([]AppointmentDetail, error) {
	switch actor.Role {
	case RoleAdmin:
	case RolePatient:
		f.PatientID = &actor.ID
	case RolePhysician:
		f.PhysicianID = &actor.ID
	default:
		return nil, ErrForbidden
	}

	var result []AppointmentDetail
	err := s.withRetry(ctx, "list appointments", func() error {
		var err error
		result, err = s.repo.ListAppointments(ctx, f)
		return err
	})
	return result, err
}

// CompleteOverdue moves confirmed appointments whose end instant passed more
// than lag ago to completed. Used by the sweep worker; only ever takes the
// legal confirmed→completed edge, so a concurrent cancel wins harmlessly.
func (s *Service) CompleteOverdue(ctx context.Context, lag time.Duration) (int, error) {
	cutoff := s.now().Add(-lag)
	appts, err := s.repo.ListAppointments(ctx, AppointmentFilter{To: &cutoff})
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	completed := 0
	for _, a := range appts {
		if a.Status != StatusConfirmed || a.EndAt().After(cutoff) {
			continue
		}
		_, err := s.repo.UpdateAppointmentStatus(ctx, a.ID, StatusConfirmed, StatusCompleted)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue // raced with a cancel or manual completion
			}
			return completed, fmt.Errorf("complete appointment %s: %w", a.ID, err)
		}
		completed++
	}
	return completed, nil
}

// Internals

func (s *Service) getForActor(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	var appt *Appointment
	err := s.withRetry(ctx, "load appointment", func() error {
		var err error
		appt, err = s.repo.GetAppointmentByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case RoleAdmin:
	case RolePatient:
		if appt.PatientID != actor.ID {
			return nil, ErrForbidden
		}
	case RolePhysician:
		if appt.PhysicianID != actor.ID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}
	return appt, nil
}

// authorizeTransition checks the actor's capability for a status change:
// patients may only cancel; physicians and admins may take any legal edge.
func (s *Service) authorizeTransition(actor Actor, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if actor.Role == RolePatient && to != StatusCancelled {
		return fmt.Errorf("%w: patients may only cancel", ErrForbidden)
	}
	return nil
}

func (s *Service) transition(ctx context.Context, appt *Appointment, to Status) (*Appointment, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if appt.Status.Terminal() {
			return nil, ErrAlreadyTerminal
		}
		if !appt.Status.CanTransitionTo(to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
		}

		updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("update status: %w", err)
		}

		// Compare-and-set miss: a concurrent writer changed the status.
		// Reload once and re-evaluate against the transition table.
		appt, err = s.repo.GetAppointmentByID(ctx, appt.ID)
		if err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
}

// validateSchedule enforces the non-negotiable preconditions: strictly
// future start, aligned duration within configured bounds, and containment
// in one of the physician's working windows for that weekday.
func (s *Service) validateSchedule(ctx context.Context, physicianID uuid.UUID, start time.Time, durationMin int) error {
	if !start.After(s.now()) {
		return fmt.Errorf("%w: start must be strictly in the future", ErrInvalidSchedule)
	}
	if start.Second() != 0 || start.Nanosecond() != 0 {
		return fmt.Errorf("%w: start must fall on a whole minute", ErrInvalidSchedule)
	}
	if durationMin < s.cfg.MinDurationMin || durationMin > s.cfg.MaxDurationMin {
		return fmt.Errorf("%w: duration %d outside bounds [%d, %d]",
			ErrInvalidSchedule, durationMin, s.cfg.MinDurationMin, s.cfg.MaxDurationMin)
	}

	var windows []WorkingWindow
	err := s.withRetry(ctx, "load windows", func() error {
		var err error
		windows, err = s.repo.WindowsForDay(ctx, physicianID, start.Weekday())
		return err
	})
	if err != nil {
		return err
	}

	startMin := start.Hour()*60 + start.Minute()
	for _, w := range windows {
		if w.Contains(startMin, durationMin) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (+%dm) is outside the physician's working hours",
		ErrInvalidSchedule, MinuteLabel(startMin), durationMin)
}

// checkOverlap rejects the interval when it intersects any active
// appointment for the physician, excluding excludeID (the appointment being
// rescheduled). Must run inside the physician lock.
func (s *Service) checkOverlap(ctx context.Context, physicianID uuid.UUID, start time.Time, durationMin int, excludeID uuid.UUID) error {
	end := start.Add(time.Duration(durationMin) * time.Minute)
	existing, err := s.repo.FindByPhysicianAndRange(ctx, physicianID, start, end)
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	for _, a := range existing {
		if a.ID == excludeID || !a.Status.Active() {
			continue
		}
		if a.Overlaps(start, end) {
			return ErrSlotUnavailable
		}
	}
	return nil
}
