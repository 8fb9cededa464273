package events

import (
	"fmt"
	"time"

	"github.com/TrestonSMC/dozers-site/internal/ics"
	"github.com/TrestonSMC/dozers-site/internal/model"
)

// DefaultWindowMonths is the rolling generation window, current month
// included.
const DefaultWindowMonths = 6

// Window returns [first day of now's month, first day of the month
// windowMonths later) in loc.
func Window(now time.Time, windowMonths int, loc *time.Location) (time.Time, time.Time) {
	if windowMonths <= 0 {
		windowMonths = DefaultWindowMonths
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, windowMonths, 0)
}

// RecurringID is the deterministic identifier of a rule occurrence:
// title-year-month-day with a 1-based month.
func RecurringID(title string, date time.Time) string {
	y, m, d := date.Date()
	return fmt.Sprintf("%s-%d-%d-%d", title, y, int(m), d)
}

// GenerateRecurring materializes rules over the window starting at now's
// month. It is deterministic: the same rules, now and loc always produce the
// same events with the same identifiers.
func GenerateRecurring(rules []model.RecurrenceRule, now time.Time, windowMonths int, loc *time.Location) ([]model.PublicEvent, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, end := Window(now, windowMonths, loc)

	occs, err := ics.ExpandRules(rules, ics.ExpandConfig{
		Location:   loc,
		RangeStart: start,
		RangeEnd:   end,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.PublicEvent, 0, len(occs))
	for _, o := range occs {
		local := o.Start.In(loc)
		out = append(out, model.PublicEvent{
			ID:          RecurringID(o.Rule.Title, local),
			Title:       o.Rule.Title,
			Description: o.Rule.Description,
			RawDate:     FormatRawDate(local),
			Display:     FormatDisplay(local, loc),
			Start:       local.UTC(),
		})
	}
	return out, nil
}
