package model

import (
	"errors"
	"fmt"
	"time"
)

// KindEvent is the iCalendar component kind the aggregator consumes.
const KindEvent = "VEVENT"

// SourceEntry is a single calendar entry as read from the remote feed,
// before classification. It only lives for the duration of one request.
type SourceEntry struct {
	UID         string
	Summary     string
	Description string

	// Start is the zero time when DTSTART was missing or could not be parsed.
	Start time.Time
	// RawStart keeps the unparsed DTSTART value for logging.
	RawStart string

	Kind string
}

// HasStart reports whether the entry carries a usable start instant.
func (e SourceEntry) HasStart() bool {
	return !e.Start.IsZero()
}

// RecurrenceRule describes one weekly recurring event from the static
// schedule.
type RecurrenceRule struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"desc" json:"desc"`
	// DayOfWeek is 0=Sunday .. 6=Saturday.
	DayOfWeek int `yaml:"day_of_week" json:"day_of_week"`
	// Time is a 24-hour "HH:MM" wall-clock time.
	Time string `yaml:"time" json:"time"`
}

var (
	ErrRuleTitle     = errors.New("recurrence rule: empty title")
	ErrRuleDayOfWeek = errors.New("recurrence rule: day_of_week out of range")
	ErrRuleTime      = errors.New("recurrence rule: invalid time of day")
)

// Clock parses Time into hour and minute.
func (r RecurrenceRule) Clock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", r.Time)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrRuleTime, r.Time)
	}
	return t.Hour(), t.Minute(), nil
}

// Validate checks the rule invariants.
func (r RecurrenceRule) Validate() error {
	if r.Title == "" {
		return ErrRuleTitle
	}
	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		return fmt.Errorf("%w: %d (%s)", ErrRuleDayOfWeek, r.DayOfWeek, r.Title)
	}
	if _, _, err := r.Clock(); err != nil {
		return err
	}
	return nil
}

// Weekday returns DayOfWeek as a time.Weekday.
func (r RecurrenceRule) Weekday() time.Weekday {
	return time.Weekday(r.DayOfWeek)
}

// PublicEvent is the unit served to the site: an event judged safe to show
// to visitors.
type PublicEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"desc"`
	// RawDate is the UTC instant in ISO-8601 form and the canonical sort key.
	RawDate string `json:"rawDate"`
	// Display is the human-readable start time in the site's timezone.
	Display string `json:"time"`

	Start time.Time `json:"-"`
}
