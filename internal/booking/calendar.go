package booking

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
)

// Calendar derives bookable slots from the working-hours registry and the
// appointment store. Slots are computed fresh per call and never cached: a
// concurrent booking can invalidate them at any moment.
type Calendar struct {
	repo Repository
	now  func() time.Time
}

func NewCalendar(repo Repository) *Calendar {
	return &Calendar{repo: repo, now: time.Now}
}

// AvailableSlots returns the candidate slots for a physician on the day
// containing `day`, ascending by start time. The data is fetched once; the
// returned sequence is finite and can be ranged over any number of times.
//
// A candidate is unavailable when its half-open interval intersects a
// non-cancelled appointment. Candidates that are not strictly in the future
// are omitted entirely, so today's past slots never appear.
func (c *Calendar) AvailableSlots(ctx context.Context, physicianID uuid.UUID, day time.Time) (iter.Seq[Slot], error) {
	windows, err := c.repo.WindowsForDay(ctx, physicianID, day.Weekday())
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return func(yield func(Slot) bool) {}, nil
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	appts, err := c.repo.FindByPhysicianAndRange(ctx, physicianID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	var booked []Appointment
	for _, a := range appts {
		if a.Status != StatusCancelled {
			booked = append(booked, a)
		}
	}

	now := c.now()

	return func(yield func(Slot) bool) {
		for _, w := range windows {
			for startMin := w.StartMin; startMin+w.SlotMinutes <= w.EndMin; startMin += w.SlotMinutes {
				start := dayStart.Add(time.Duration(startMin) * time.Minute)
				if !start.After(now) {
					continue
				}
				end := start.Add(time.Duration(w.SlotMinutes) * time.Minute)

				available := true
				for _, a := range booked {
					if a.Overlaps(start, end) {
						available = false
						break
					}
				}

				s := Slot{
					PhysicianID: physicianID,
					StartAt:     start,
					DurationMin: w.SlotMinutes,
					Available:   available,
				}
				if !yield(s) {
					return
				}
			}
		}
	}, nil
}
