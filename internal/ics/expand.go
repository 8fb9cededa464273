package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/TrestonSMC/dozers-site/internal/model"
)

// ExpandConfig controls how recurrence rules are materialized.
type ExpandConfig struct {
	// Location is the wall-clock zone rule times are interpreted in.
	// If nil, time.Local is used.
	Location *time.Location

	// RangeStart is inclusive, RangeEnd exclusive.
	RangeStart time.Time
	RangeEnd   time.Time
}

// Occurrence is one concrete date produced by a recurrence rule.
type Occurrence struct {
	Rule model.RecurrenceRule
	// Index is the rule's position in the input table.
	Index int
	Start time.Time
}

var rruleWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// ExpandRules materializes every rule into weekly occurrences within the
// configured range. Output is ordered by start time; occurrences sharing a
// start keep table order.
func ExpandRules(rules []model.RecurrenceRule, cfg ExpandConfig) ([]Occurrence, error) {
	if !cfg.RangeEnd.After(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is not after RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	start := cfg.RangeStart.In(cfg.Location)
	out := make([]Occurrence, 0)

	for i, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		hour, minute, _ := rule.Clock()

		// DTSTART carries the rule's clock time; BYDAY selects the weekday.
		dtstart := time.Date(start.Year(), start.Month(), start.Day(), hour, minute, 0, 0, cfg.Location)
		r, err := rrule.NewRRule(rrule.ROption{
			Freq:      rrule.WEEKLY,
			Byweekday: []rrule.Weekday{rruleWeekdays[rule.DayOfWeek]},
			Dtstart:   dtstart,
			Until:     cfg.RangeEnd.In(cfg.Location).Add(-time.Second),
		})
		if err != nil {
			return nil, fmt.Errorf("expand: rule %q: %w", rule.Title, err)
		}

		for _, t := range r.All() {
			if t.Before(cfg.RangeStart) || !t.Before(cfg.RangeEnd) {
				continue
			}
			out = append(out, Occurrence{Rule: rule, Index: i, Start: t})
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].Start.Equal(out[b].Start) {
			return out[a].Start.Before(out[b].Start)
		}
		return out[a].Index < out[b].Index
	})
	return out, nil
}
