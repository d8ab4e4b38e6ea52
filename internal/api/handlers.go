package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/booking"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

func requireActor(w http.ResponseWriter, r *http.Request) (booking.Actor, bool) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "no actor in request context")
	}
	return actor, ok
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// GET /physicians/{id}/slots?date=YYYY-MM-DD
func listSlotsHandler(cal *booking.Calendar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireActor(w, r); !ok {
			return
		}
		physicianID, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		day, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := cal.AvailableSlots(r.Context(), physicianID, day)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := []SlotResponse{}
		for s := range slots {
			resp = append(resp, SlotResponse{
				Time:            s.StartAt.Format("15:04"),
				StartAt:         s.StartAt,
				DurationMinutes: s.DurationMin,
				Available:       s.Available,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// POST /appointments
func createAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req CreateAppointmentRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		patientID, _ := uuid.Parse(req.PatientID)
		physicianID, _ := uuid.Parse(req.PhysicianID)

		appt, err := svc.CreateAppointment(r.Context(), actor, booking.CreateInput{
			PatientID:   patientID,
			PhysicianID: physicianID,
			StartAt:     req.StartAt,
			DurationMin: req.DurationMinutes,
			Notes:       req.Notes,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

// GET /appointments/{id}
func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), actor, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// GET /appointments?physician_id=&patient_id=&scheduled_only=
func listAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		f, err := filterFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}

		appts, err := svc.ListAppointments(r.Context(), actor, f)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]AppointmentDetailResponse, 0, len(appts))
		for _, a := range appts {
			resp = append(resp, AppointmentDetailResponse{
				AppointmentResponse: toAppointmentResponse(&a.Appointment),
				PatientName:         a.PatientName,
				PhysicianName:       a.PhysicianName,
				PhysicianSpecialty:  a.PhysicianSpecialty,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// PATCH /appointments/{id}
func patchAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		var req PatchAppointmentRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		patch := booking.Patch{
			StartAt:     req.StartAt,
			DurationMin: req.DurationMinutes,
			Notes:       req.Notes,
		}
		if req.Status != nil {
			status := booking.Status(*req.Status)
			patch.Status = &status
		}

		appt, err := svc.UpdateAppointment(r.Context(), actor, id, patch)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// DELETE /appointments/{id} — alias for cancel; the record is kept.
func cancelAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), actor, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func filterFromQuery(r *http.Request) (booking.AppointmentFilter, error) {
	var f booking.AppointmentFilter
	q := r.URL.Query()

	if v := q.Get("physician_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, err
		}
		f.PhysicianID = &id
	}
	if v := q.Get("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, err
		}
		f.PatientID = &id
	}
	f.ScheduledOnly = q.Get("scheduled_only") == "true"

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, err
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, err
		}
		f.To = &t
	}
	return f, nil
}
