package api

import (
	"net/http"
	"time"

	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/booking"
)

func createPatientHandler(dir *booking.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req CreatePatientRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		p := &booking.Patient{Name: req.Name, Email: req.Email, Phone: req.Phone}
		if err := dir.CreatePatient(r.Context(), actor, p); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPatientResponse(p))
	}
}

func getPatientHandler(dir *booking.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireActor(w, r); !ok {
			return
		}
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		p, err := dir.GetPatient(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

func listPatientsHandler(dir *booking.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		patients, err := dir.ListPatients(r.Context(), actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := make([]PatientResponse, 0, len(patients))
		for i := range patients {
			resp = append(resp, toPatientResponse(&patients[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func deactivatePatientHandler(dir *booking.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		if err := dir.DeactivatePatient(r.Context(), actor, id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createPhysicianHandler(dir *booking.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req CreatePhysicianRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		p := &booking.Physician{Name: req.Name, License: req.License, Specialty: req.Specialty}
		if err := dir.CreatePhysician(r.Context(), actor, p); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPhysicianResponse(p))
	}
}

func getPhysicianHandler(dir *booking.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireActor(w, r); !ok {
			return
		}
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		p, err := dir.GetPhysician(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPhysicianResponse(p))
	}
}

func listPhysiciansHandler(dir *booking.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireActor(w, r); !ok {
			return
		}
		physicians, err := dir.ListPhysicians(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := make([]PhysicianResponse, 0, len(physicians))
		for i := range physicians {
			resp = append(resp, toPhysicianResponse(&physicians[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func deactivatePhysicianHandler(dir *booking.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		if err := dir.DeactivatePhysician(r.Context(), actor, id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Working-hours registry endpoints. Window writes are an administrator
// operation: the registry pre-validates so reads never have to.

func listWindowsHandler(reg *booking.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireActor(w, r); !ok {
			return
		}
		physicianID, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		windows, err := reg.Windows(r.Context(), physicianID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := make([]WindowResponse, 0, len(windows))
		for _, win := range windows {
			resp = append(resp, toWindowResponse(win))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func defineWindowHandler(reg *booking.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		if actor.Role != booking.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "only administrators may define working windows")
			return
		}
		physicianID, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		var req CreateWindowRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		startMin, err := parseMinute(req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be HH:MM")
			return
		}
		endMin, err := parseMinute(req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be HH:MM")
			return
		}

		window, err := reg.DefineWindow(r.Context(), physicianID, time.Weekday(req.Weekday), startMin, endMin, req.SlotMinutes)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toWindowResponse(*window))
	}
}

func removeWindowHandler(reg *booking.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		if actor.Role != booking.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "only administrators may remove working windows")
			return
		}
		windowID, ok := pathUUID(w, r, "windowID")
		if !ok {
			return
		}
		if err := reg.RemoveWindow(r.Context(), windowID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseMinute(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func toPatientResponse(p *booking.Patient) PatientResponse {
	return PatientResponse{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone, Active: p.Active}
}

func toPhysicianResponse(p *booking.Physician) PhysicianResponse {
	return PhysicianResponse{ID: p.ID, Name: p.Name, License: p.License, Specialty: p.Specialty, Active: p.Active}
}
