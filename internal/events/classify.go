package events

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/TrestonSMC/dozers-site/internal/model"
)

// Reject reasons, also used as metric labels.
const (
	ReasonNone         = ""
	ReasonPersonalName = "personal_name"
	ReasonBlocklist    = "blocklist"
	ReasonInvalidDate  = "invalid_date"
)

// personalName matches titles shaped like "Jane Doe". The upstream is a staff
// scheduling system that emits entries named after employees.
var personalName = regexp.MustCompile(`^[A-Z][a-z]+ [A-Z][a-z]+$`)

// Policy is the frozen classification configuration.
type Policy struct {
	// Blocklist holds lowercase fragments; a title containing any of them is
	// internal.
	Blocklist []string
	// Location is the zone display strings are rendered in.
	Location *time.Location
}

// NewPolicy copies blocklist so later changes to the caller's slice cannot
// leak in.
func NewPolicy(blocklist []string, loc *time.Location) Policy {
	words := make([]string, 0, len(blocklist))
	for _, w := range blocklist {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			words = append(words, w)
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	return Policy{Blocklist: words, Location: loc}
}

// Classifier decides whether a feed entry is a public event.
//
// The policy is reject-only: every entry that no rule blocks is public.
type Classifier struct {
	policy    Policy
	sanitizer *bluemonday.Policy
	newID     func() string
}

// NewClassifier builds a Classifier for policy.
func NewClassifier(policy Policy) *Classifier {
	return &Classifier{
		policy:    policy,
		sanitizer: bluemonday.StrictPolicy(),
		newID:     uuid.NewString,
	}
}

// Classify returns the public event built from e, or the reason e was
// rejected.
func (c *Classifier) Classify(e model.SourceEntry) (model.PublicEvent, string) {
	title := strings.TrimSpace(e.Summary)

	if personalName.MatchString(title) {
		return model.PublicEvent{}, ReasonPersonalName
	}

	lower := strings.ToLower(title)
	for _, w := range c.policy.Blocklist {
		if strings.Contains(lower, w) {
			return model.PublicEvent{}, ReasonBlocklist
		}
	}

	if !e.HasStart() {
		return model.PublicEvent{}, ReasonInvalidDate
	}

	id := e.UID
	if id == "" {
		id = c.newID()
	}

	return model.PublicEvent{
		ID:          id,
		Title:       title,
		Description: c.cleanDescription(e.Description),
		RawDate:     FormatRawDate(e.Start),
		Display:     FormatDisplay(e.Start, c.policy.Location),
		Start:       e.Start.UTC(),
	}, ReasonNone
}

// cleanDescription converts escaped newlines and strips any markup the
// scheduling tool put into the description.
func (c *Classifier) cleanDescription(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\N`, "\n")
	// StrictPolicy escapes entities; the result is JSON text, not HTML.
	return strings.TrimSpace(html.UnescapeString(c.sanitizer.Sanitize(s)))
}

const (
	rawDateLayout = "2006-01-02T15:04:05.000Z07:00"
	displayLayout = "Mon, Jan 2, 3:04 PM"
)

// FormatRawDate renders t as a UTC ISO-8601 instant with milliseconds,
// e.g. 2025-06-03T18:00:00.000Z.
func FormatRawDate(t time.Time) string {
	return t.UTC().Format(rawDateLayout)
}

// FormatDisplay renders t for visitors, e.g. "Tue, Jun 3, 6:00 PM".
func FormatDisplay(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(displayLayout)
}
