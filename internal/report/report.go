// Package report renders read-only exports over appointment history. It
// never mutates state.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/booking"
)

type Generator struct {
	repo booking.Repository
}

func NewGenerator(repo booking.Repository) *Generator {
	return &Generator{repo: repo}
}

type PhysicianCount struct {
	PhysicianName string `json:"physician_name"`
	Specialty     string `json:"specialty"`
	Count         int    `json:"count"`
}

type Summary struct {
	Total       int                    `json:"total"`
	ByStatus    map[booking.Status]int `json:"by_status"`
	ByPhysician []PhysicianCount       `json:"by_physician"`
}

// Summarize aggregates appointment counts by status and physician.
func (g *Generator) Summarize(ctx context.Context, f booking.AppointmentFilter) (Summary, error) {
	appts, err := g.repo.ListAppointments(ctx, f)
	if err != nil {
		return Summary{}, fmt.Errorf("load appointments for report: %w", err)
	}

	s := Summary{ByStatus: make(map[booking.Status]int)}
	byName := make(map[string]*PhysicianCount)
	for _, a := range appts {
		s.Total++
		s.ByStatus[a.Status]++
		pc, ok := byName[a.PhysicianName]
		if !ok {
			pc = &PhysicianCount{PhysicianName: a.PhysicianName, Specialty: a.PhysicianSpecialty}
			byName[a.PhysicianName] = pc
		}
		pc.Count++
	}

	for _, pc := range byName {
		s.ByPhysician = append(s.ByPhysician, *pc)
	}
	sort.Slice(s.ByPhysician, func(i, j int) bool {
		return s.ByPhysician[i].PhysicianName < s.ByPhysician[j].PhysicianName
	})
	return s, nil
}

var csvHeader = []string{
	"appointment_id", "start_at", "duration_min", "status",
	"patient", "physician", "specialty", "notes",
}

// WriteCSV streams the filtered appointment history as CSV.
func (g *Generator) WriteCSV(ctx context.Context, w io.Writer, f booking.AppointmentFilter) error {
	appts, err := g.repo.ListAppointments(ctx, f)
	if err != nil {
		return fmt.Errorf("load appointments for report: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, a := range appts {
		notes := ""
		if a.Notes != nil {
			notes = *a.Notes
		}
		record := []string{
			a.ID.String(),
			a.StartAt.Format(time.RFC3339),
			strconv.Itoa(a.DurationMin),
			string(a.Status),
			a.PatientName,
			a.PhysicianName,
			a.PhysicianSpecialty,
			notes,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
