// Package probe checks the calendar feed on a schedule so an outage shows up
// in logs and metrics even when nobody is loading the events page.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "github.com/TrestonSMC/dozers-site/internal/log"
	"github.com/TrestonSMC/dozers-site/internal/metrics"
	"github.com/TrestonSMC/dozers-site/internal/model"
)

// Source is the feed being watched.
type Source interface {
	Entries(ctx context.Context) ([]model.SourceEntry, error)
}

// Result of one probe run.
type Result struct {
	OK       bool
	Entries  int
	Duration time.Duration
	Err      error
}

// Prober runs feed checks.
type Prober struct {
	source  Source
	timeout time.Duration
	metrics metrics.Recorder
}

func New(source Source, timeout time.Duration, rec metrics.Recorder) *Prober {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Prober{source: source, timeout: timeout, metrics: rec}
}

// RunOnce performs a single check.
func (p *Prober) RunOnce(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	entries, err := p.entries(ctx)
	res := Result{Entries: len(entries), Duration: time.Since(start), Err: err}

	switch {
	case err != nil:
		p.metrics.RecordProbe(metrics.ResultUnavailable)
		appLog.Warn("feed probe failed", "error", err.Error(), "duration_ms", res.Duration.Milliseconds())
	case len(entries) == 0:
		// An empty calendar is legal but usually means the export broke.
		res.OK = true
		p.metrics.RecordProbe(metrics.ResultOK)
		appLog.Warn("feed probe returned no entries", "duration_ms", res.Duration.Milliseconds())
	default:
		res.OK = true
		p.metrics.RecordProbe(metrics.ResultOK)
		appLog.Debug("feed probe ok", "entries", len(entries), "duration_ms", res.Duration.Milliseconds())
	}
	return res
}

func (p *Prober) entries(ctx context.Context) (entries []model.SourceEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe: source panicked: %v", r)
		}
	}()
	return p.source.Entries(ctx)
}

// Start schedules RunOnce on schedule (standard five-field cron syntax) in
// loc and blocks until ctx is done. An empty schedule disables the probe.
func (p *Prober) Start(ctx context.Context, schedule string, loc *time.Location) error {
	if schedule == "" {
		appLog.Info("feed probe disabled")
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(schedule, func() { p.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("probe: schedule %q: %w", schedule, err)
	}

	appLog.Info("feed probe scheduled", "cron", schedule, "timezone", loc.String())
	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}
