package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/booking"
)

type CreateAppointmentRequest struct {
	PatientID       string    `json:"patient_id" validate:"required,uuid"`
	PhysicianID     string    `json:"physician_id" validate:"required,uuid"`
	StartAt         time.Time `json:"start_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
	Notes           *string   `json:"notes,omitempty"`
}

type PatchAppointmentRequest struct {
	Status          *string    `json:"status,omitempty" validate:"omitempty,oneof=scheduled confirmed completed cancelled"`
	StartAt         *time.Time `json:"start_at,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty" validate:"omitempty,gt=0"`
	Notes           *string    `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	PatientID       uuid.UUID `json:"patient_id"`
	PhysicianID     uuid.UUID `json:"physician_id"`
	StartAt         time.Time `json:"start_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Notes           *string   `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		PhysicianID:     a.PhysicianID,
		StartAt:         a.StartAt,
		DurationMinutes: a.DurationMin,
		Status:          string(a.Status),
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	PatientName        string `json:"patient_name"`
	PhysicianName      string `json:"physician_name"`
	PhysicianSpecialty string `json:"physician_specialty"`
}

// SlotResponse is one bookable candidate. Past slots on the current date are
// never returned; booked ones come back with available=false.
type SlotResponse struct {
	Time            string    `json:"time"`
	StartAt         time.Time `json:"start_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Available       bool      `json:"available"`
}

type CreatePatientRequest struct {
	Name  string  `json:"name" validate:"required"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone *string `json:"phone,omitempty"`
}

type PatientResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  *string   `json:"email,omitempty"`
	Phone  *string   `json:"phone,omitempty"`
	Active bool      `json:"active"`
}

type CreatePhysicianRequest struct {
	Name      string `json:"name" validate:"required"`
	License   string `json:"license" validate:"required"`
	Specialty string `json:"specialty" validate:"required"`
}

type PhysicianResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	License   string    `json:"license"`
	Specialty string    `json:"specialty"`
	Active    bool      `json:"active"`
}

type CreateWindowRequest struct {
	Weekday     int    `json:"weekday" validate:"min=0,max=6"`
	Start       string `json:"start" validate:"required"`
	End         string `json:"end" validate:"required"`
	SlotMinutes int    `json:"slot_minutes" validate:"required,gt=0"`
}

type WindowResponse struct {
	ID          uuid.UUID `json:"id"`
	PhysicianID uuid.UUID `json:"physician_id"`
	Weekday     int       `json:"weekday"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	SlotMinutes int       `json:"slot_minutes"`
}

func toWindowResponse(w booking.WorkingWindow) WindowResponse {
	return WindowResponse{
		ID:          w.ID,
		PhysicianID: w.PhysicianID,
		Weekday:     int(w.Weekday),
		Start:       booking.MinuteLabel(w.StartMin),
		End:         booking.MinuteLabel(w.EndMin),
		SlotMinutes: w.SlotMinutes,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
