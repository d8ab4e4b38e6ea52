package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded Repository used by tests and local
// development. It mirrors the Postgres semantics the service relies on,
// including the unique active (physician, start) constraint.
type MemoryRepository struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]Patient
	physicians   map[uuid.UUID]Physician
	windows      map[uuid.UUID]WorkingWindow
	appointments map[uuid.UUID]Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		physicians:   make(map[uuid.UUID]Physician),
		windows:      make(map[uuid.UUID]WorkingWindow),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

func (r *MemoryRepository) CreatePatient(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.Active = true
	p.CreatedAt = now
	p.UpdatedAt = now
	r.patients[p.ID] = *p
	return nil
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) ListPatients(_ context.Context) ([]Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]Patient, 0, len(r.patients))
	for _, p := range r.patients {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *MemoryRepository) DeactivatePatient(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return ErrPatientNotFound
	}
	p.Active = false
	p.UpdatedAt = time.Now()
	r.patients[id] = p
	return nil
}

func (r *MemoryRepository) CreatePhysician(_ context.Context, p *Physician) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.Active = true
	p.CreatedAt = now
	p.UpdatedAt = now
	r.physicians[p.ID] = *p
	return nil
}

func (r *MemoryRepository) GetPhysicianByID(_ context.Context, id uuid.UUID) (*Physician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.physicians[id]
	if !ok {
		return nil, ErrPhysicianNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) ListPhysicians(_ context.Context) ([]Physician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]Physician, 0, len(r.physicians))
	for _, p := range r.physicians {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *MemoryRepository) DeactivatePhysician(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.physicians[id]
	if !ok {
		return ErrPhysicianNotFound
	}
	p.Active = false
	p.UpdatedAt = time.Now()
	r.physicians[id] = p
	return nil
}

func (r *MemoryRepository) ListWindows(_ context.Context, physicianID uuid.UUID) ([]WorkingWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []WorkingWindow
	for _, w := range r.windows {
		if w.PhysicianID == physicianID {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Weekday != result[j].Weekday {
			return result[i].Weekday < result[j].Weekday
		}
		return result[i].StartMin < result[j].StartMin
	})
	return result, nil
}

func (r *MemoryRepository) WindowsForDay(_ context.Context, physicianID uuid.UUID, day time.Weekday) ([]WorkingWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []WorkingWindow
	for _, w := range r.windows {
		if w.PhysicianID == physicianID && w.Weekday == day {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartMin < result[j].StartMin })
	return result, nil
}

func (r *MemoryRepository) InsertWindow(_ context.Context, w *WorkingWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now
	r.windows[w.ID] = *w
	return nil
}

func (r *MemoryRepository) DeleteWindow(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.windows[id]; !ok {
		return ErrWindowNotFound
	}
	delete(r.windows, id)
	return nil
}

func (r *MemoryRepository) InsertAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	for _, existing := range r.appointments {
		if existing.PhysicianID == a.PhysicianID && existing.Status.Active() && existing.StartAt.Equal(a.StartAt) {
			return ErrDuplicateStart
		}
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) RescheduleAppointment(_ context.Context, id uuid.UUID, start time.Time, durationMin int) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || !a.Status.Active() {
		return nil, ErrAppointmentNotFound
	}
	for _, existing := range r.appointments {
		if existing.ID != id && existing.PhysicianID == a.PhysicianID && existing.Status.Active() && existing.StartAt.Equal(start) {
			return nil, ErrDuplicateStart
		}
	}
	a.StartAt = start
	a.DurationMin = durationMin
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) UpdateAppointmentNotes(_ context.Context, id uuid.UUID, notes *string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.Notes = notes
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) FindByPhysicianAndRange(_ context.Context, physicianID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Appointment
	for _, a := range r.appointments {
		if a.PhysicianID == physicianID && a.Overlaps(from, to) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt.Before(result[j].StartAt) })
	return result, nil
}

func (r *MemoryRepository) ListAppointments(_ context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []AppointmentDetail
	for _, a := range r.appointments {
		if f.PhysicianID != nil && a.PhysicianID != *f.PhysicianID {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.ScheduledOnly && !a.Status.Active() {
			continue
		}
		if f.From != nil && !a.EndAt().After(*f.From) {
			continue
		}
		if f.To != nil && !a.StartAt.Before(*f.To) {
			continue
		}
		d := AppointmentDetail{Appointment: a}
		if p, ok := r.patients[a.PatientID]; ok {
			d.PatientName = p.Name
		}
		if p, ok := r.physicians[a.PhysicianID]; ok {
			d.PhysicianName = p.Name
			d.PhysicianSpecialty = p.Specialty
		}
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt.Before(result[j].StartAt) })
	return result, nil
}
