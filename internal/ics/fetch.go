package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	appLog "github.com/TrestonSMC/dozers-site/internal/log"
	"github.com/TrestonSMC/dozers-site/internal/metrics"
)

// maxBodySize caps the feed payload; real feeds are a few dozen entries.
const maxBodySize = 5 << 20

// Source represents the ICS feed to read.
type Source struct {
	// ID is an internal identifier used in logs.
	ID string
	// URL is the ICS endpoint.
	URL string
}

// FetchOptions carries the request headers the upstream insists on.
type FetchOptions struct {
	UserAgent string
	Accept    string
}

var (
	ErrEmptyURL  = errors.New("ics: source URL is empty")
	ErrStatus    = errors.New("ics: unexpected upstream status")
	ErrEmptyBody = errors.New("ics: empty body")
)

// Fetcher retrieves ICS payloads. Responses are never cached: every call
// reflects the live feed.
type Fetcher struct {
	client  *http.Client
	opts    FetchOptions
	metrics metrics.Recorder
}

// NewFetcher creates a Fetcher using client. A nil recorder discards metrics.
func NewFetcher(client *http.Client, opts FetchOptions, rec metrics.Recorder) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Fetcher{client: client, opts: opts, metrics: rec}
}

// FetchOne downloads the body of src.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) ([]byte, error) {
	if src.URL == "" {
		return nil, ErrEmptyURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("ics: build request: %w", err)
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	if f.opts.Accept != "" {
		req.Header.Set("Accept", f.opts.Accept)
	}
	req.Header.Set("Cache-Control", "no-cache")

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))
	started := time.Now()

	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.RecordFeedFetch(metrics.ResultNetwork, time.Since(started))
		return nil, fmt.Errorf("ics: fetch %s: %w", redactURL(src.URL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.metrics.RecordFeedFetch(metrics.ResultStatus, time.Since(started))
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		f.metrics.RecordFeedFetch(metrics.ResultNetwork, time.Since(started))
		return nil, fmt.Errorf("ics: read body: %w", err)
	}
	if len(body) == 0 {
		f.metrics.RecordFeedFetch(metrics.ResultParse, time.Since(started))
		return nil, ErrEmptyBody
	}

	f.metrics.RecordFeedFetch(metrics.ResultOK, time.Since(started))
	appLog.Debug("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// redactURL hides the path and query of an ICS URL for logging: feed
// exports embed their access token in the path.
//
//	https://example.com/calendar/events/1/secret.ics -> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"
	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + redactedSuffix
}
