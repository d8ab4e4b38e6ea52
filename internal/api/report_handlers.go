package api

import (
	"net/http"

	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/booking"
	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/report"
)

// GET /reports/appointments?format=csv|summary — read-only consumer of the
// appointment history; admins and physicians only.
func appointmentReportHandler(gen *report.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		if actor.Role == booking.RolePatient {
			writeError(w, http.StatusForbidden, "forbidden", "reports are restricted to staff")
			return
		}

		f, err := filterFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}
		if actor.Role == booking.RolePhysician {
			f.PhysicianID = &actor.ID
		}

		switch r.URL.Query().Get("format") {
		case "", "summary":
			summary, err := gen.Summarize(r.Context(), f)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, summary)
		case "csv":
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("Content-Disposition", `attachment; filename="appointments.csv"`)
			if err := gen.WriteCSV(r.Context(), w, f); err != nil {
				// Headers are already out; nothing sane left to send.
				return
			}
		default:
			writeError(w, http.StatusBadRequest, "invalid_format", "format must be summary or csv")
		}
	}
}
