// Package reviews proxies the place's public reviews from the Google Places
// details endpoint.
package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Review is the trimmed shape served to the site.
type Review struct {
	Author  string  `json:"author"`
	Text    string  `json:"text"`
	Rating  float64 `json:"rating"`
	Time    string  `json:"time"`
	Profile string  `json:"profile"`
}

var (
	ErrNoAPIKey = errors.New("reviews: missing API key")
	ErrStatus   = errors.New("reviews: unexpected upstream status")
)

// Options configure a Client.
type Options struct {
	BaseURL  string
	PlaceID  string
	APIKey   string
	Limit    int
	Location *time.Location
}

type Client struct {
	http *http.Client
	opts Options
}

func NewClient(client *http.Client, opts Options) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	return &Client{http: client, opts: opts}
}

type detailsResponse struct {
	Status string `json:"status"`
	Result *struct {
		Reviews []placeReview `json:"reviews"`
	} `json:"result"`
}

type placeReview struct {
	AuthorName      string  `json:"author_name"`
	Text            string  `json:"text"`
	Rating          float64 `json:"rating"`
	Time            int64   `json:"time"`
	ProfilePhotoURL string  `json:"profile_photo_url"`
}

// Fetch returns up to Limit reviews in upstream order. A response without
// reviews yields an empty, non-nil slice.
func (c *Client) Fetch(ctx context.Context) ([]Review, error) {
	if c.opts.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	u, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("reviews: base url: %w", err)
	}
	q := u.Query()
	q.Set("place_id", c.opts.PlaceID)
	q.Set("fields", "name,reviews,rating,user_ratings_total")
	q.Set("key", c.opts.APIKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("reviews: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		// The key is part of the URL; keep it out of the error text.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("reviews: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	var body detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("reviews: decode: %w", err)
	}

	out := make([]Review, 0, c.opts.Limit)
	if body.Result == nil {
		return out, nil
	}
	for _, r := range body.Result.Reviews {
		if len(out) == c.opts.Limit {
			break
		}
		out = append(out, Review{
			Author:  r.AuthorName,
			Text:    r.Text,
			Rating:  r.Rating,
			Time:    FormatDate(time.Unix(r.Time, 0), c.opts.Location),
			Profile: r.ProfilePhotoURL,
		})
	}
	return out, nil
}

// FormatDate renders t as M/D/YYYY in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("1/2/2006")
}
