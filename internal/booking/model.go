package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// transitions is the full set of legal status edges. Terminal states have
// no outgoing edges.
var transitions = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether an appointment in this status holds its time slot.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

type Role string

const (
	RolePatient   Role = "patient"
	RolePhysician Role = "physician"
	RoleAdmin     Role = "admin"
)

// Actor is the authenticated caller, supplied by the identity collaborator.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Physician struct {
	ID        uuid.UUID
	Name      string
	License   string
	Specialty string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorkingWindow is one interval of a physician's weekly availability
// template. StartMin/EndMin are minutes from midnight; SlotMinutes is the
// booking granularity inside the window.
type WorkingWindow struct {
	ID          uuid.UUID
	PhysicianID uuid.UUID
	Weekday     time.Weekday
	StartMin    int
	EndMin      int
	SlotMinutes int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Contains reports whether [startMin, startMin+duration) lies inside the
// window and starts on a slot boundary.
func (w WorkingWindow) Contains(startMin, durationMin int) bool {
	if startMin < w.StartMin || startMin+durationMin > w.EndMin {
		return false
	}
	if (startMin-w.StartMin)%w.SlotMinutes != 0 {
		return false
	}
	return durationMin > 0 && durationMin%w.SlotMinutes == 0
}

type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	PhysicianID uuid.UUID
	StartAt     time.Time
	DurationMin int
	Status      Status
	Notes       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a Appointment) EndAt() time.Time {
	return a.StartAt.Add(time.Duration(a.DurationMin) * time.Minute)
}

// Overlaps applies the half-open interval test against [start, end).
func (a Appointment) Overlaps(start, end time.Time) bool {
	return a.StartAt.Before(end) && start.Before(a.EndAt())
}

// Slot is a derived bookable candidate. It is never persisted; availability
// is only meaningful at the instant it was computed.
type Slot struct {
	PhysicianID uuid.UUID
	StartAt     time.Time
	DurationMin int
	Available   bool
}

// MinuteLabel renders a minutes-from-midnight value as HH:MM.
func MinuteLabel(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// AppointmentDetail joins the demographic names the read side displays.
type AppointmentDetail struct {
	Appointment
	PatientName        string
	PhysicianName      string
	PhysicianSpecialty string
}
