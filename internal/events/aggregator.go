// Package events builds the public event list: live feed entries that pass
// the classifier merged with the weekly recurring schedule.
package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	appLog "github.com/TrestonSMC/dozers-site/internal/log"
	"github.com/TrestonSMC/dozers-site/internal/metrics"
	"github.com/TrestonSMC/dozers-site/internal/model"
)

// EntrySource yields the live feed's entries.
type EntrySource interface {
	Entries(ctx context.Context) ([]model.SourceEntry, error)
}

// Clock abstracts time.Now() for deterministic tests.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Options configures an Aggregator. Rules and Policy are copied at
// construction and never modified afterwards.
type Options struct {
	Source       EntrySource
	Rules        []model.RecurrenceRule
	Policy       Policy
	WindowMonths int
	Clock        Clock
	Metrics      metrics.Recorder
}

// Aggregator produces the deduplicated, date-ordered public event list.
// It keeps no state between calls.
type Aggregator struct {
	source     EntrySource
	rules      []model.RecurrenceRule
	classifier *Classifier
	location   *time.Location
	window     int
	clock      Clock
	metrics    metrics.Recorder
}

// NewAggregator validates the recurrence table and builds an Aggregator.
func NewAggregator(opts Options) (*Aggregator, error) {
	rules := make([]model.RecurrenceRule, len(opts.Rules))
	copy(rules, opts.Rules)
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("events: rule %d: %w", i, err)
		}
	}

	a := &Aggregator{
		source:     opts.Source,
		rules:      rules,
		classifier: NewClassifier(opts.Policy),
		location:   opts.Policy.Location,
		window:     opts.WindowMonths,
		clock:      opts.Clock,
		metrics:    opts.Metrics,
	}
	if a.location == nil {
		a.location = time.UTC
	}
	if a.window <= 0 {
		a.window = DefaultWindowMonths
	}
	if a.clock == nil {
		a.clock = RealClock{}
	}
	if a.metrics == nil {
		a.metrics = metrics.Nop{}
	}
	return a, nil
}

// Aggregate returns the public events. It never fails and never returns nil:
// an unreachable feed or a broken stage only makes the list shorter.
func (a *Aggregator) Aggregate(ctx context.Context) (out []model.PublicEvent) {
	defer func() {
		if r := recover(); r != nil {
			a.metrics.RecordAggregatePanic()
			appLog.Error("events: aggregate panicked", fmt.Errorf("panic: %v", r))
			out = []model.PublicEvent{}
		}
	}()

	recurring := a.Recurring()
	remote := a.Remote(ctx)

	all := make([]model.PublicEvent, 0, len(recurring)+len(remote))
	all = append(all, recurring...)
	all = append(all, remote...)

	out = SortByDate(Dedupe(all))
	a.metrics.RecordEventsServed(len(out))
	return out
}

// Recurring materializes the recurrence table for the current window.
func (a *Aggregator) Recurring() []model.PublicEvent {
	evs, err := GenerateRecurring(a.rules, a.clock.Now(), a.window, a.location)
	if err != nil {
		// Rules are validated at construction; this is a programming error.
		appLog.Error("events: recurring generation failed", err)
		return []model.PublicEvent{}
	}
	return evs
}

// Remote fetches the live feed and keeps the entries the classifier accepts.
// Fetch failures degrade to an empty list.
func (a *Aggregator) Remote(ctx context.Context) []model.PublicEvent {
	if a.source == nil {
		return []model.PublicEvent{}
	}

	entries, err := a.entries(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			appLog.Debug("events: feed fetch canceled")
		} else {
			appLog.Error("events: feed unavailable, serving recurring events only", err)
		}
		return []model.PublicEvent{}
	}

	out := make([]model.PublicEvent, 0, len(entries))
	for _, e := range entries {
		if e.Kind != "" && e.Kind != model.KindEvent {
			continue
		}
		ev, reason := a.classifier.Classify(e)
		if reason != ReasonNone {
			a.metrics.RecordRejected(reason)
			if reason == ReasonInvalidDate {
				appLog.Debug("events: dropped entry with bad start", "uid", e.UID, "dtstart", e.RawStart)
			}
			continue
		}
		out = append(out, ev)
	}
	return out
}

// entries calls the source, turning a panic into an error so that the
// recurring schedule is still served.
func (a *Aggregator) entries(ctx context.Context) (entries []model.SourceEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.metrics.RecordAggregatePanic()
			entries, err = nil, fmt.Errorf("events: feed source panicked: %v", r)
		}
	}()
	return a.source.Entries(ctx)
}

// Dedupe drops every event whose (title, rawDate) pair was already seen,
// keeping the first occurrence.
func Dedupe(evs []model.PublicEvent) []model.PublicEvent {
	type key struct{ title, rawDate string }
	seen := make(map[key]struct{}, len(evs))
	out := make([]model.PublicEvent, 0, len(evs))
	for _, ev := range evs {
		k := key{ev.Title, ev.RawDate}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, ev)
	}
	return out
}

// SortByDate orders events ascending by instant; equal instants keep their
// relative order.
func SortByDate(evs []model.PublicEvent) []model.PublicEvent {
	sort.SliceStable(evs, func(i, j int) bool {
		return instant(evs[i]).Before(instant(evs[j]))
	})
	return evs
}

// instant prefers the parsed Start and falls back to RawDate for events
// built elsewhere.
func instant(ev model.PublicEvent) time.Time {
	if !ev.Start.IsZero() {
		return ev.Start
	}
	t, err := time.Parse(time.RFC3339Nano, ev.RawDate)
	if err != nil {
		return time.Time{}
	}
	return t
}
