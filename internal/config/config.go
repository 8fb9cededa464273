package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/TrestonSMC/dozers-site/internal/model"
)

// FeedConfig describes the remote ICS feed.
type FeedConfig struct {
	// URL is the ICS export endpoint of the scheduling platform.
	URL string `yaml:"url" json:"url"`
	// Timeout bounds a single feed request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// UserAgent and Accept are required by the upstream; requests without
	// them are rejected.
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	Accept    string `yaml:"accept" json:"accept"`
	// ProbeCron schedules the out-of-band feed health probe. Empty disables it.
	ProbeCron string `yaml:"probe_cron" json:"probe_cron"`
}

type MenuConfig struct {
	SheetCSVURL string        `yaml:"sheet_csv_url" json:"sheet_csv_url"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

type ReviewsConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	PlaceID string `yaml:"place_id" json:"place_id"`
	APIKey  string `yaml:"api_key" json:"-"`
	Limit   int    `yaml:"limit" json:"limit"`
}

type GalleryConfig struct {
	SupabaseURL    string `yaml:"supabase_url" json:"supabase_url"`
	ServiceRoleKey string `yaml:"service_role_key" json:"-"`
	Bucket         string `yaml:"bucket" json:"bucket"`
	Folder         string `yaml:"folder" json:"folder"`
	Limit          int    `yaml:"limit" json:"limit"`
}

type MailConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	APIKey  string `yaml:"api_key" json:"-"`
	From    string `yaml:"from" json:"from"`
	To      string `yaml:"to" json:"to"`
}

// SubmissionConfig limits the public event-request form per client IP.
type SubmissionConfig struct {
	RatePerMinute float64 `yaml:"rate_per_minute" json:"rate_per_minute"`
	Burst         int     `yaml:"burst" json:"burst"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for /metrics.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

type MetricsConfig struct {
	Enabled   bool             `yaml:"enabled" json:"enabled"`
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone recurring events are scheduled in and display
	// strings are rendered in.
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// WindowMonths is how many calendar months (current month included) of
	// recurring events are generated.
	WindowMonths int `yaml:"window_months" json:"window_months"`

	// AllowPrivateNetworks disables the SSRF guard on outbound clients.
	// Only meant for local development and tests.
	AllowPrivateNetworks bool `yaml:"allow_private_networks" json:"allow_private_networks"`

	Feed FeedConfig `yaml:"feed" json:"feed"`

	// Blocklist holds lowercase title fragments of internal, non-public
	// feed entries.
	Blocklist []string `yaml:"blocklist" json:"blocklist"`

	// Recurring is the weekly schedule merged into the feed.
	Recurring []model.RecurrenceRule `yaml:"recurring" json:"recurring"`

	Menu       MenuConfig       `yaml:"menu" json:"menu"`
	Reviews    ReviewsConfig    `yaml:"reviews" json:"reviews"`
	Gallery    GalleryConfig    `yaml:"gallery" json:"gallery"`
	Mail       MailConfig       `yaml:"mail" json:"mail"`
	Submission SubmissionConfig `yaml:"submission" json:"submission"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "America/Phoenix"
	defaultWindowMonths = 6
	defaultFeedTimeout  = 15 * time.Second
	defaultUserAgent    = "Mozilla/5.0"
	defaultAccept       = "text/calendar"
	defaultProbeCron    = "*/30 * * * *"
	defaultReviewsURL   = "https://maps.googleapis.com/maps/api/place/details/json"
	defaultMailURL      = "https://api.resend.com"
)

// DefaultBlocklist returns the internal-operations terms that keep staff
// scheduling entries off the public calendar.
func DefaultBlocklist() []string {
	return []string{
		"birthday",
		"anniversary",
		"staff",
		"meeting",
		"manager",
		"mgr",
		"shift",
		"training",
		"pto",
		"vacation",
		"availability",
		"unavailability",
		"interview",
		"call-in",
		"on call",
	}
}

// DefaultRecurring returns the weekly league and tournament schedule.
func DefaultRecurring() []model.RecurrenceRule {
	return []model.RecurrenceRule{
		{Title: "APA 8 Ball", Description: "Tables 9–16", DayOfWeek: 1, Time: "18:00"},
		{Title: "BCA 8 Ball", Description: "Tables 1–16", DayOfWeek: 2, Time: "18:00"},
		{Title: "APA Double Jeopardy", Description: "Tables 11–16", DayOfWeek: 3, Time: "18:00"},
		{Title: "BCA 8 Ball", Description: "Tables 17–22", DayOfWeek: 4, Time: "18:00"},
		{Title: "AZPL", Description: "Tables 13–16", DayOfWeek: 4, Time: "18:00"},
		{Title: "Trace Tourn", Description: "Tables 9–16", DayOfWeek: 5, Time: "18:00"},
		{Title: "Wayne Tourn", Description: "Tables 1–12", DayOfWeek: 6, Time: "12:00"},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		LogLevel:     "info",
		WindowMonths: defaultWindowMonths,
		Feed: FeedConfig{
			URL:       "https://app.7shifts.com/calendar/events/402227/2f0448f8c89dfbcbaca21a035a43436.ics",
			Timeout:   defaultFeedTimeout,
			UserAgent: defaultUserAgent,
			Accept:    defaultAccept,
			ProbeCron: defaultProbeCron,
		},
		Blocklist: DefaultBlocklist(),
		Recurring: DefaultRecurring(),
		Menu: MenuConfig{
			Timeout: defaultFeedTimeout,
		},
		Reviews: ReviewsConfig{
			BaseURL: defaultReviewsURL,
			PlaceID: "ChIJKafbhzmvK4cRlN9PfXk0fV8",
			Limit:   5,
		},
		Gallery: GalleryConfig{
			Bucket: "dozers-gallery",
			Folder: "gallery",
			Limit:  200,
		},
		Mail: MailConfig{
			BaseURL: defaultMailURL,
		},
		Submission: SubmissionConfig{
			RatePerMinute: 5,
			Burst:         5,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.WindowMonths <= 0 {
		c.WindowMonths = defaultWindowMonths
	}
	if c.Feed.Timeout <= 0 {
		c.Feed.Timeout = defaultFeedTimeout
	}
	if c.Feed.UserAgent == "" {
		c.Feed.UserAgent = defaultUserAgent
	}
	if c.Feed.Accept == "" {
		c.Feed.Accept = defaultAccept
	}
	// A nil list means "not configured"; an explicit empty list is kept.
	if c.Blocklist == nil {
		c.Blocklist = DefaultBlocklist()
	}
	if c.Recurring == nil {
		c.Recurring = DefaultRecurring()
	}
	if c.Menu.Timeout <= 0 {
		c.Menu.Timeout = defaultFeedTimeout
	}
	if c.Reviews.BaseURL == "" {
		c.Reviews.BaseURL = defaultReviewsURL
	}
	if c.Reviews.Limit <= 0 {
		c.Reviews.Limit = 5
	}
	if c.Gallery.Limit <= 0 {
		c.Gallery.Limit = 200
	}
	if c.Mail.BaseURL == "" {
		c.Mail.BaseURL = defaultMailURL
	}
	if c.Submission.RatePerMinute <= 0 {
		c.Submission.RatePerMinute = 5
	}
	if c.Submission.Burst <= 0 {
		c.Submission.Burst = 5
	}
}

// Validate checks values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	for i, r := range c.Recurring {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("config: recurring[%d]: %w", i, err)
		}
	}
	if c.Feed.ProbeCron != "" {
		if _, err := cron.ParseStandard(c.Feed.ProbeCron); err != nil {
			return fmt.Errorf("config: feed.probe_cron %q: %w", c.Feed.ProbeCron, err)
		}
	}
	return nil
}

// Location resolves Timezone, falling back to UTC on error.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// envOverrides lists settings that may come from the environment. Secrets
// also accept the unprefixed names the hosting platform already exports.
type envOverrides struct {
	Listen    string `envconfig:"LISTEN"`
	Timezone  string `envconfig:"TIMEZONE"`
	LogLevel  string `envconfig:"LOG_LEVEL"`
	FeedURL   string `envconfig:"FEED_URL"`
	ProbeCron string `envconfig:"PROBE_CRON"`

	MenuCSVURL string `envconfig:"MENU_SHEET_CSV_URL"`

	GoogleMapsAPIKey string `envconfig:"GOOGLE_MAPS_API_KEY"`

	SupabaseURL    string `envconfig:"NEXT_PUBLIC_SUPABASE_URL"`
	SupabaseKey    string `envconfig:"SUPABASE_SERVICE_ROLE_KEY"`
	ResendAPIKey   string `envconfig:"RESEND_API_KEY"`
	EventFromEmail string `envconfig:"EVENT_FROM_EMAIL"`
	EventToEmail   string `envconfig:"EVENT_TO_EMAIL"`

	MetricsUser     string `envconfig:"METRICS_USER"`
	MetricsPassword string `envconfig:"METRICS_PASSWORD"`
}

// EnvPrefix is prepended to override names, e.g. DOZERS_LISTEN. The bare
// name (LISTEN) is consulted when the prefixed one is unset.
const EnvPrefix = "DOZERS"

// ApplyEnv overlays non-empty environment values onto c.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Listen, env.Listen)
	set(&c.Timezone, env.Timezone)
	set(&c.LogLevel, env.LogLevel)
	set(&c.Feed.URL, env.FeedURL)
	set(&c.Feed.ProbeCron, env.ProbeCron)
	set(&c.Menu.SheetCSVURL, env.MenuCSVURL)
	set(&c.Reviews.APIKey, env.GoogleMapsAPIKey)
	set(&c.Gallery.SupabaseURL, env.SupabaseURL)
	set(&c.Gallery.ServiceRoleKey, env.SupabaseKey)
	set(&c.Mail.APIKey, env.ResendAPIKey)
	set(&c.Mail.From, env.EventFromEmail)
	set(&c.Mail.To, env.EventToEmail)

	if env.MetricsUser != "" && env.MetricsPassword != "" {
		c.Metrics.BasicAuth = &BasicAuthConfig{
			Username: env.MetricsUser,
			Password: env.MetricsPassword,
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
//
// Environment overrides are applied last in both cases, and the result is
// validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := readOrCreate(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readOrCreate(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return nil, fmt.Errorf("config: write defaults: %w", err)
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".dozers-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
