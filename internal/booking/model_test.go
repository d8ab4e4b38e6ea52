package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusConfirmed, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCancelled, StatusCompleted, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStatusTerminalAndActive(t *testing.T) {
	assert.False(t, StatusScheduled.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())

	assert.True(t, StatusScheduled.Active())
	assert.True(t, StatusConfirmed.Active())
	assert.False(t, StatusCompleted.Active())
	assert.False(t, StatusCancelled.Active())
}

func TestAppointmentOverlaps(t *testing.T) {
	base := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)
	appt := Appointment{StartAt: base, DurationMin: 30}

	// Touching boundaries do not overlap.
	assert.False(t, appt.Overlaps(base.Add(-30*time.Minute), base))
	assert.False(t, appt.Overlaps(base.Add(30*time.Minute), base.Add(60*time.Minute)))

	assert.True(t, appt.Overlaps(base, base.Add(30*time.Minute)))
	assert.True(t, appt.Overlaps(base.Add(-15*time.Minute), base.Add(15*time.Minute)))
	assert.True(t, appt.Overlaps(base.Add(15*time.Minute), base.Add(45*time.Minute)))
	assert.True(t, appt.Overlaps(base.Add(-time.Hour), base.Add(time.Hour)))
}

func TestWorkingWindowContains(t *testing.T) {
	w := WorkingWindow{StartMin: 8 * 60, EndMin: 12 * 60, SlotMinutes: 30}

	assert.True(t, w.Contains(8*60, 30))
	assert.True(t, w.Contains(11*60+30, 30))
	assert.True(t, w.Contains(9*60, 60))

	// Crosses the window end.
	assert.False(t, w.Contains(11*60+30, 60))
	// Off the slot grid.
	assert.False(t, w.Contains(8*60+15, 30))
	// Duration not a multiple of the slot.
	assert.False(t, w.Contains(9*60, 45))
	// Before the window opens.
	assert.False(t, w.Contains(7*60+30, 30))
	assert.False(t, w.Contains(9*60, 0))
}

func TestMinuteLabel(t *testing.T) {
	assert.Equal(t, "08:00", MinuteLabel(480))
	assert.Equal(t, "00:05", MinuteLabel(5))
	assert.Equal(t, "23:45", MinuteLabel(1425))
}
