package ics

import (
	"bytes"
	"context"
	"fmt"

	ical "github.com/arran4/golang-ical"

	appLog "github.com/TrestonSMC/dozers-site/internal/log"
	"github.com/TrestonSMC/dozers-site/internal/metrics"
	"github.com/TrestonSMC/dozers-site/internal/model"
)

// ParseICS parses a single ICS payload into source entries.
//
// Only VEVENT components are returned; time zone definitions and other
// component kinds are skipped by iterating the calendar's typed event list.
// A VEVENT whose DTSTART is missing or unparseable is still returned with a
// zero Start so that the classifier can reject and count it.
func ParseICS(src Source, body []byte) ([]model.SourceEntry, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse %s: %w", src.ID, err)
	}

	vevents := cal.Events()
	entries := make([]model.SourceEntry, 0, len(vevents))
	for _, ve := range vevents {
		entries = append(entries, parseVEvent(ve))
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(entries))
	return entries, nil
}

func parseVEvent(ve *ical.VEvent) model.SourceEntry {
	out := model.SourceEntry{Kind: model.KindEvent}

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		out.RawStart = p.Value
		// GetStartAt resolves TZID parameters and DATE values.
		if start, err := ve.GetStartAt(); err == nil {
			out.Start = start
		}
	}

	return out
}

// Feed reads and parses one remote ICS source per call.
type Feed struct {
	fetcher *Fetcher
	source  Source
	metrics metrics.Recorder
}

// NewFeed binds a fetcher to a source.
func NewFeed(fetcher *Fetcher, src Source, rec metrics.Recorder) *Feed {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Feed{fetcher: fetcher, source: src, metrics: rec}
}

// Entries fetches the live feed and returns its VEVENT entries.
func (f *Feed) Entries(ctx context.Context) ([]model.SourceEntry, error) {
	body, err := f.fetcher.FetchOne(ctx, f.source)
	if err != nil {
		return nil, err
	}
	entries, err := ParseICS(f.source, body)
	if err != nil {
		f.metrics.RecordFeedFetch(metrics.ResultParse, 0)
		return nil, err
	}
	return entries, nil
}
