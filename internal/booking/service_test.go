package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/config"
)

// mutexLocker serializes critical sections with a plain mutex, standing in
// for the Redis lock.
type mutexLocker struct {
	mu sync.Mutex
}

func (l *mutexLocker) WithPhysicianLock(ctx context.Context, _ uuid.UUID, fn func(context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

type fixture struct {
	svc       *Service
	repo      *MemoryRepository
	patient   Patient
	physician Physician
	admin     Actor
}

func testConfig() config.Config {
	return config.Config{
		MinDurationMin:     15,
		MaxDurationMin:     240,
		StoreRetryAttempts: 2,
		StoreRetryBackoff:  time.Millisecond,
	}
}

// newFixture freezes the clock at 07:00 on a Monday and registers a
// physician working Monday 08:00-12:00 in 30-minute slots.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := NewMemoryRepository()

	patient := &Patient{Name: "Ana Lima"}
	require.NoError(t, repo.CreatePatient(ctx, patient))

	phys := &Physician{Name: "Dr. Souza", License: "CRM-123456", Specialty: "Cardiology"}
	require.NoError(t, repo.CreatePhysician(ctx, phys))

	require.NoError(t, repo.InsertWindow(ctx, &WorkingWindow{
		PhysicianID: phys.ID,
		Weekday:     time.Monday,
		StartMin:    8 * 60,
		EndMin:      12 * 60,
		SlotMinutes: 30,
	}))

	svc := NewService(repo, &mutexLocker{}, testConfig(), zerolog.Nop())
	svc.now = func() time.Time { return monday.Add(7 * time.Hour) }

	return &fixture{
		svc:       svc,
		repo:      repo,
		patient:   *patient,
		physician: *phys,
		admin:     Actor{ID: uuid.New(), Role: RoleAdmin},
	}
}

func (f *fixture) input(startMin, durationMin int) CreateInput {
	return CreateInput{
		PatientID:   f.patient.ID,
		PhysicianID: f.physician.ID,
		StartAt:     monday.Add(time.Duration(startMin) * time.Minute),
		DurationMin: durationMin,
	}
}

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, appt.ID)
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, monday.Add(9*time.Hour), appt.StartAt)
	assert.Equal(t, 30, appt.DurationMin)
}

func TestCreateAppointment_PastStart(t *testing.T) {
	f := newFixture(t)

	// Clock is at 07:00; 06:00 today is gone.
	_, err := f.svc.CreateAppointment(context.Background(), f.admin, f.input(6*60, 30))
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	// Exactly now is not strictly future either.
	_, err = f.svc.CreateAppointment(context.Background(), f.admin, f.input(7*60, 30))
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestCreateAppointment_OutsideWorkingHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		startMin int
		duration int
	}{
		{"before the window", 7*60 + 30, 30},
		{"crosses the window end", 11*60 + 30, 60},
		{"off the slot grid", 9*60 + 15, 30},
		{"duration not slot aligned", 9 * 60, 45},
		{"day without windows", 24*60 + 9*60, 30}, // Tuesday
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateAppointment(ctx, f.admin, f.input(tc.startMin, tc.duration))
			assert.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}
}

func TestCreateAppointment_DurationBounds(t *testing.T) {
	f := newFixture(t)
	cfg := testConfig()
	cfg.MinDurationMin = 30
	cfg.MaxDurationMin = 60
	f.svc.cfg = cfg

	_, err := f.svc.CreateAppointment(context.Background(), f.admin, f.input(9*60, 90))
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestCreateAppointment_OverlapRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 60))
	require.NoError(t, err)

	// Same start.
	_, err = f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	// Partial intersection.
	_, err = f.svc.CreateAppointment(ctx, f.admin, f.input(9*60+30, 30))
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	// Touching interval is fine.
	_, err = f.svc.CreateAppointment(ctx, f.admin, f.input(10*60, 30))
	assert.NoError(t, err)
}

func TestCreateAppointment_CancelledSlotReopens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	require.NoError(t, err)

	_, err = f.svc.CancelAppointment(ctx, f.admin, appt.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	assert.NoError(t, err)
}

func TestCreateAppointment_RoleGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &Patient{Name: "Bruno"}
	require.NoError(t, f.repo.CreatePatient(ctx, other))

	// A patient may not book for someone else.
	asPatient := Actor{ID: other.ID, Role: RolePatient}
	_, err := f.svc.CreateAppointment(ctx, asPatient, f.input(9*60, 30))
	assert.ErrorIs(t, err, ErrForbidden)

	// A physician may not book onto another physician's calendar.
	asPhysician := Actor{ID: uuid.New(), Role: RolePhysician}
	_, err = f.svc.CreateAppointment(ctx, asPhysician, f.input(9*60, 30))
	assert.ErrorIs(t, err, ErrForbidden)

	// Booking for oneself works.
	self := Actor{ID: f.patient.ID, Role: RolePatient}
	_, err = f.svc.CreateAppointment(ctx, self, f.input(9*60, 30))
	assert.NoError(t, err)
}

func TestCreateAppointment_InactiveParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.DeactivatePatient(ctx, f.patient.ID))
	_, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestCreateAppointment_ConcurrentSameSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 16
	patients := make([]Patient, attempts)
	for i := range patients {
		p := &Patient{Name: "Paciente"}
		require.NoError(t, f.repo.CreatePatient(ctx, p))
		patients[i] = *p
	}

	var wins, conflicts int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(p Patient) {
			defer wg.Done()
			in := f.input(9*60, 30)
			in.PatientID = p.ID
			_, err := f.svc.CreateAppointment(ctx, f.admin, in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSlotUnavailable):
				conflicts++
			}
		}(patients[i])
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins, "exactly one booking must win")
	assert.EqualValues(t, attempts-1, conflicts)
}

func TestUpdateAppointment_StatusFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	require.NoError(t, err)

	confirmed := StatusConfirmed
	appt, err = f.svc.UpdateAppointment(ctx, f.admin, appt.ID, Patch{Status: &confirmed})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, appt.Status)

	completed := StatusCompleted
	appt, err = f.svc.UpdateAppointment(ctx, f.admin, appt.ID, Patch{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, appt.Status)
}

func TestUpdateAppointment_IllegalTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	require.NoError(t, err)

	// scheduled -> completed skips confirmation.
	completed := StatusCompleted
	_, err = f.svc.UpdateAppointment(ctx, f.admin, appt.ID, Patch{Status: &completed})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	bogus := Status("faltou")
	_, err = f.svc.UpdateAppointment(ctx, f.admin, appt.ID, Patch{Status: &bogus})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateAppointment_TerminalIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	require.NoError(t, err)

	_, err = f.svc.CancelAppointment(ctx, f.admin, appt.ID)
	require.NoError(t, err)

	// No status change out of cancelled.
	confirmed := StatusConfirmed
	_, err = f.svc.UpdateAppointment(ctx, f.admin, appt.ID, Patch{Status: &confirmed})
	assert.ErrorIs(t, err, ErrAlreadyTerminal)

	// Cancelling again is also refused.
	_, err = f.svc.CancelAppointment(ctx, f.admin, appt.ID)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)

	// And no reschedule either.
	newStart := monday.Add(10 * time.Hour)
	_, err = f.svc.UpdateAppointment(ctx, f.admin, appt.ID, Patch{StartAt: &newStart})
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestUpdateAppointment_PatientMayOnlyCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	require.NoError(t, err)

	self := Actor{ID: f.patient.ID, Role: RolePatient}

	confirmed := StatusConfirmed
	_, err = f.svc.UpdateAppointment(ctx, self, appt.ID, Patch{Status: &confirmed})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.svc.CancelAppointment(ctx, self, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestUpdateAppointment_ActorScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	require.NoError(t, err)

	stranger := Actor{ID: uuid.New(), Role: RolePatient}
	_, err = f.svc.GetAppointment(ctx, stranger, appt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CancelAppointment(ctx, stranger, appt.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateAppointment_Reschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 60))
	require.NoError(t, err)
	blocker, err := f.svc.CreateAppointment(ctx, f.admin, f.input(10*60, 30))
	require.NoError(t, err)

	// Move into a free slot.
	newStart := monday.Add(11 * time.Hour)
	appt, err = f.svc.UpdateAppointment(ctx, f.admin, appt.ID, Patch{StartAt: &newStart})
	require.NoError(t, err)
	assert.Equal(t, newStart, appt.StartAt)

	// Moving onto the blocker is refused.
	_, err = f.svc.UpdateAppointment(ctx, f.admin, appt.ID, Patch{StartAt: &blocker.StartAt})
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	// An appointment does not collide with itself: shrink in place.
	shorter := 30
	appt, err = f.svc.UpdateAppointment(ctx, f.admin, appt.ID, Patch{DurationMin: &shorter})
	require.NoError(t, err)
	assert.Equal(t, 30, appt.DurationMin)

	// Reschedule re-runs the schedule validation.
	outside := monday.Add(13 * time.Hour)
	_, err = f.svc.UpdateAppointment(ctx, f.admin, appt.ID, Patch{StartAt: &outside})
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

// gateLocker runs a callback after the lock is taken but before the critical
// section, modeling a writer that slips in between the caller's pre-checks
// and the lock acquisition.
type gateLocker struct {
	mu         sync.Mutex
	beforeOnce sync.Once
	before     func()
}

func (l *gateLocker) WithPhysicianLock(ctx context.Context, _ uuid.UUID, fn func(context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.before != nil {
		l.beforeOnce.Do(l.before)
	}
	return fn(ctx)
}

func TestUpdateAppointment_RescheduleLosesToConcurrentCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	require.NoError(t, err)

	// Cancel lands in the window between the service's terminal pre-check
	// and its critical section.
	f.svc.locker = &gateLocker{before: func() {
		_, err := f.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusScheduled, StatusCancelled)
		require.NoError(t, err)
	}}

	newStart := monday.Add(10 * time.Hour)
	_, err = f.svc.UpdateAppointment(ctx, f.admin, appt.ID, Patch{StartAt: &newStart})
	assert.ErrorIs(t, err, ErrAlreadyTerminal)

	got, err := f.repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, monday.Add(9*time.Hour), got.StartAt, "a terminal appointment must not move")
}

func TestRescheduleAppointment_TerminalRowIsImmovable(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	appt := &Appointment{
		PatientID: uuid.New(), PhysicianID: uuid.New(),
		StartAt: monday.Add(9 * time.Hour), DurationMin: 30, Status: StatusCancelled,
	}
	require.NoError(t, repo.InsertAppointment(ctx, appt))

	_, err := repo.RescheduleAppointment(ctx, appt.ID, monday.Add(10*time.Hour), 30)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	got, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, monday.Add(9*time.Hour), got.StartAt)
}

func TestUpdateAppointment_Notes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	require.NoError(t, err)

	notes := "retorno em 30 dias"
	appt, err = f.svc.UpdateAppointment(ctx, f.admin, appt.ID, Patch{Notes: &notes})
	require.NoError(t, err)
	require.NotNil(t, appt.Notes)
	assert.Equal(t, notes, *appt.Notes)
}

func TestListAppointments_ScopedByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &Patient{Name: "Bruno"}
	require.NoError(t, f.repo.CreatePatient(ctx, other))

	_, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	require.NoError(t, err)

	in := f.input(10*60, 30)
	in.PatientID = other.ID
	_, err = f.svc.CreateAppointment(ctx, f.admin, in)
	require.NoError(t, err)

	all, err := f.svc.ListAppointments(ctx, f.admin, AppointmentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.svc.ListAppointments(ctx, Actor{ID: f.patient.ID, Role: RolePatient}, AppointmentFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.patient.ID, mine[0].PatientID)

	// A patient cannot widen the filter to someone else's history.
	leaked, err := f.svc.ListAppointments(ctx, Actor{ID: f.patient.ID, Role: RolePatient}, AppointmentFilter{PatientID: &other.ID})
	require.NoError(t, err)
	require.Len(t, leaked, 1)
	assert.Equal(t, f.patient.ID, leaked[0].PatientID)
}

func TestCompleteOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Inserted directly: the sweep operates on history, which the booking
	// path would refuse to create.
	past := monday.Add(-48 * time.Hour)
	overdue := &Appointment{
		PatientID: f.patient.ID, PhysicianID: f.physician.ID,
		StartAt: past, DurationMin: 30, Status: StatusConfirmed,
	}
	require.NoError(t, f.repo.InsertAppointment(ctx, overdue))

	neverConfirmed := &Appointment{
		PatientID: f.patient.ID, PhysicianID: f.physician.ID,
		StartAt: past.Add(time.Hour), DurationMin: 30, Status: StatusScheduled,
	}
	require.NoError(t, f.repo.InsertAppointment(ctx, neverConfirmed))

	upcoming, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	require.NoError(t, err)
	confirmed := StatusConfirmed
	_, err = f.svc.UpdateAppointment(ctx, f.admin, upcoming.ID, Patch{Status: &confirmed})
	require.NoError(t, err)

	n, err := f.svc.CompleteOverdue(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.repo.GetAppointmentByID(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	// Unconfirmed history and future confirmations are untouched.
	got, err = f.repo.GetAppointmentByID(ctx, neverConfirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, got.Status)

	got, err = f.repo.GetAppointmentByID(ctx, upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
}

// flakyRepo fails reads a fixed number of times before delegating, always
// with a transient store error.
type flakyRepo struct {
	Repository
	mu       sync.Mutex
	failures int
}

func (r *flakyRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return nil, ErrStoreUnavailable
	}
	r.mu.Unlock()
	return r.Repository.GetPatientByID(ctx, id)
}

func TestCreateAppointment_RetriesTransientStoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	flaky := &flakyRepo{Repository: f.repo, failures: 1}
	f.svc.repo = flaky

	_, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	assert.NoError(t, err)
}

func TestCreateAppointment_StoreUnavailableSurfacesAfterRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	flaky := &flakyRepo{Repository: f.repo, failures: 10}
	f.svc.repo = flaky

	_, err := f.svc.CreateAppointment(ctx, f.admin, f.input(9*60, 30))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
