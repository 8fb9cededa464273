package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/TrestonSMC/dozers-site/internal/config"
	"github.com/TrestonSMC/dozers-site/internal/events"
	"github.com/TrestonSMC/dozers-site/internal/gallery"
	"github.com/TrestonSMC/dozers-site/internal/ics"
	appLog "github.com/TrestonSMC/dozers-site/internal/log"
	"github.com/TrestonSMC/dozers-site/internal/menu"
	"github.com/TrestonSMC/dozers-site/internal/metrics"
	"github.com/TrestonSMC/dozers-site/internal/netguard"
	"github.com/TrestonSMC/dozers-site/internal/probe"
	"github.com/TrestonSMC/dozers-site/internal/reviews"
	"github.com/TrestonSMC/dozers-site/internal/submission"
	"github.com/TrestonSMC/dozers-site/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	level := appLog.ParseLevel(conf.LogLevel)
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.Setup(os.Stderr, level, flags.debug)

	appLog.Info("dozers starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"window_months", conf.WindowMonths,
		"recurring_rules", len(conf.Recurring),
		"blocklist_terms", len(conf.Blocklist),
		"feed_configured", conf.Feed.URL != "",
		"probe_cron", conf.Feed.ProbeCron,
		"metrics", conf.Metrics.Enabled,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	var rec metrics.Recorder = metrics.Nop{}
	reg := prometheus.NewRegistry()
	if conf.Metrics.Enabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec = metrics.NewCollector(reg)
	}

	loc := conf.Location()

	var feed *ics.Feed
	if conf.Feed.URL != "" {
		fetcher := ics.NewFetcher(
			netguard.NewClient(conf.Feed.Timeout, conf.AllowPrivateNetworks),
			ics.FetchOptions{UserAgent: conf.Feed.UserAgent, Accept: conf.Feed.Accept},
			rec,
		)
		feed = ics.NewFeed(fetcher, ics.Source{ID: "calendar", URL: conf.Feed.URL}, rec)
	}

	opts := events.Options{
		Rules:        conf.Recurring,
		Policy:       events.NewPolicy(conf.Blocklist, loc),
		WindowMonths: conf.WindowMonths,
		Metrics:      rec,
	}
	if feed != nil {
		opts.Source = feed
	}
	agg, err := events.NewAggregator(opts)
	if err != nil {
		appLog.Error("failed to build event aggregator", err)
		os.Exit(1)
	}

	if flags.once {
		runOnce(ctx, agg)
		return
	}

	apiClient := netguard.NewClient(conf.Menu.Timeout, conf.AllowPrivateNetworks)

	limiter := web.NewRateLimiter(web.PerMinute(conf.Submission.RatePerMinute, conf.Submission.Burst))
	defer limiter.Stop()

	deps := web.Deps{
		Events: agg,
		Menu:   menu.NewClient(apiClient, conf.Menu.SheetCSVURL),
		Reviews: reviews.NewClient(apiClient, reviews.Options{
			BaseURL:  conf.Reviews.BaseURL,
			PlaceID:  conf.Reviews.PlaceID,
			APIKey:   conf.Reviews.APIKey,
			Limit:    conf.Reviews.Limit,
			Location: loc,
		}),
		Gallery: gallery.NewClient(apiClient, gallery.Options{
			SupabaseURL:    conf.Gallery.SupabaseURL,
			ServiceRoleKey: conf.Gallery.ServiceRoleKey,
			Bucket:         conf.Gallery.Bucket,
			Folder:         conf.Gallery.Folder,
			Limit:          conf.Gallery.Limit,
		}),
		Mailer: submission.NewMailer(apiClient, submission.Options{
			BaseURL: conf.Mail.BaseURL,
			APIKey:  conf.Mail.APIKey,
			From:    conf.Mail.From,
			To:      conf.Mail.To,
		}),
		SubmitLimiter: limiter,
	}
	if conf.Metrics.Enabled {
		deps.Metrics = metrics.Handler(reg)
	}

	var wg sync.WaitGroup
	if feed != nil && conf.Feed.ProbeCron != "" {
		p := probe.New(feed, conf.Feed.Timeout, rec)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Start(ctx, conf.Feed.ProbeCron, loc); err != nil {
				appLog.Error("feed probe stopped", err)
			}
		}()
	}

	srv := web.NewServer(conf, deps)
	if err := srv.Start(ctx); err != nil {
		appLog.Error("HTTP server failed", err)
		cancel()
		wg.Wait()
		os.Exit(1)
	}

	cancel()
	wg.Wait()
	appLog.Info("dozers exiting")
}

// runOnce prints one aggregated list to stdout.
func runOnce(ctx context.Context, agg *events.Aggregator) {
	evs := agg.Aggregate(ctx)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{"events": evs}); err != nil {
		appLog.Error("failed to write events", err)
		os.Exit(1)
	}
	appLog.Info("once: events written", "count", len(evs))
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/dozers/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Aggregate events once, print JSON and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging with console output")

	flag.Parse()

	return cfg
}
