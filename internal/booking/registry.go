package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidWindow rejects a working-window write whose bounds are malformed
// or that overlaps an existing window on the same weekday.
var ErrInvalidWindow = errors.New("invalid working window")

const minutesPerDay = 24 * 60

// Registry manages per-physician weekly availability templates. Windows are
// validated at write time; reads trust what was stored.
type Registry struct {
	repo Repository
}

func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo}
}

// WindowsFor returns the physician's windows for one weekday, ordered by
// start. An empty slice means the physician does not work that day; it is
// not an error.
func (g *Registry) WindowsFor(ctx context.Context, physicianID uuid.UUID, day time.Weekday) ([]WorkingWindow, error) {
	return g.repo.WindowsForDay(ctx, physicianID, day)
}

// Windows returns the full weekly template.
func (g *Registry) Windows(ctx context.Context, physicianID uuid.UUID) ([]WorkingWindow, error) {
	return g.repo.ListWindows(ctx, physicianID)
}

// DefineWindow validates and stores a new window.
func (g *Registry) DefineWindow(ctx context.Context, physicianID uuid.UUID, day time.Weekday, startMin, endMin, slotMinutes int) (*WorkingWindow, error) {
	if _, err := g.repo.GetPhysicianByID(ctx, physicianID); err != nil {
		return nil, err
	}

	if startMin < 0 || endMin > minutesPerDay || startMin >= endMin {
		return nil, fmt.Errorf("%w: start %s must precede end %s within one day",
			ErrInvalidWindow, MinuteLabel(startMin), MinuteLabel(endMin))
	}
	if slotMinutes <= 0 || startMin+slotMinutes > endMin {
		return nil, fmt.Errorf("%w: slot duration %d does not fit the window", ErrInvalidWindow, slotMinutes)
	}

	existing, err := g.repo.WindowsForDay(ctx, physicianID, day)
	if err != nil {
		return nil, err
	}
	for _, w := range existing {
		if startMin < w.EndMin && w.StartMin < endMin {
			return nil, fmt.Errorf("%w: overlaps existing window %s-%s",
				ErrInvalidWindow, MinuteLabel(w.StartMin), MinuteLabel(w.EndMin))
		}
	}

	window := &WorkingWindow{
		PhysicianID: physicianID,
		Weekday:     day,
		StartMin:    startMin,
		EndMin:      endMin,
		SlotMinutes: slotMinutes,
	}
	if err := g.repo.InsertWindow(ctx, window); err != nil {
		return nil, err
	}
	return window, nil
}

func (g *Registry) RemoveWindow(ctx context.Context, id uuid.UUID) error {
	return g.repo.DeleteWindow(ctx, id)
}
