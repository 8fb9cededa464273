package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrestonSMC/dozers-site/internal/config"
	"github.com/TrestonSMC/dozers-site/internal/events"
	"github.com/TrestonSMC/dozers-site/internal/model"
)

func TestGenerateRecurring_OnePerMatchingDay(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)
	rules := config.DefaultRecurring()

	got, err := events.GenerateRecurring(rules, now, 6, time.UTC)
	require.NoError(t, err)

	byID := make(map[string]int, len(got))
	for _, ev := range got {
		byID[ev.ID]++
	}

	start, end := events.Window(now, 6, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), end)

	expected := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		for _, r := range rules {
			if d.Weekday() != r.Weekday() {
				continue
			}
			expected++
			id := events.RecurringID(r.Title, d)
			assert.Equal(t, 1, byID[id], "occurrence %s", id)
		}
	}
	assert.Len(t, got, expected)
}

func TestGenerateRecurring_FieldValues(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)
	rules := []model.RecurrenceRule{
		{Title: "Wayne Tourn", Description: "Tables 1–12", DayOfWeek: 6, Time: "12:00"},
	}

	got, err := events.GenerateRecurring(rules, now, 1, time.UTC)
	require.NoError(t, err)

	// Saturdays in June 2025: 7, 14, 21, 28.
	require.Len(t, got, 4)
	first := got[0]
	assert.Equal(t, "Wayne Tourn-2025-6-7", first.ID)
	assert.Equal(t, "Wayne Tourn", first.Title)
	assert.Equal(t, "Tables 1–12", first.Description)
	assert.Equal(t, "2025-06-07T12:00:00.000Z", first.RawDate)
	assert.Equal(t, "Sat, Jun 7, 12:00 PM", first.Display)
	assert.Equal(t, "Wayne Tourn-2025-6-28", got[3].ID)
}

func TestGenerateRecurring_LocalWallClock(t *testing.T) {
	phoenix, err := time.LoadLocation("America/Phoenix")
	require.NoError(t, err)

	rules := []model.RecurrenceRule{
		{Title: "APA 8 Ball", Description: "Tables 9–16", DayOfWeek: 1, Time: "18:00"},
	}
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, phoenix)

	got, err := events.GenerateRecurring(rules, now, 1, phoenix)
	require.NoError(t, err)

	require.NotEmpty(t, got)
	assert.Equal(t, "APA 8 Ball-2025-6-2", got[0].ID)
	assert.Equal(t, "2025-06-03T01:00:00.000Z", got[0].RawDate)
	assert.Equal(t, "Mon, Jun 2, 6:00 PM", got[0].Display)
}

func TestGenerateRecurring_Deterministic(t *testing.T) {
	now := time.Date(2025, 11, 20, 23, 59, 0, 0, time.UTC)
	rules := config.DefaultRecurring()

	a, err := events.GenerateRecurring(rules, now, 6, time.UTC)
	require.NoError(t, err)
	b, err := events.GenerateRecurring(rules, now, 6, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestGenerateRecurring_SameSlotKeepsTableOrder(t *testing.T) {
	// Thursday carries two rules at 18:00.
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	got, err := events.GenerateRecurring(config.DefaultRecurring(), now, 1, time.UTC)
	require.NoError(t, err)

	var thursday []string
	for _, ev := range got {
		if ev.RawDate == "2025-06-05T18:00:00.000Z" {
			thursday = append(thursday, ev.Title)
		}
	}
	assert.Equal(t, []string{"BCA 8 Ball", "AZPL"}, thursday)
}

func TestGenerateRecurring_DefaultWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	got, err := events.GenerateRecurring(config.DefaultRecurring(), now, 0, time.UTC)
	require.NoError(t, err)

	last := got[len(got)-1]
	assert.True(t, last.Start.Before(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.November, last.Start.Month())
}
