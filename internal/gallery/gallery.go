// Package gallery lists photo file names from a Supabase storage bucket.
package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
)

var ErrNotConfigured = errors.New("gallery: supabase url or key is not configured")

var imageName = regexp.MustCompile(`(?i)\.(png|jpe?g|webp|gif)$`)

// Options configure a Client.
type Options struct {
	SupabaseURL    string
	ServiceRoleKey string
	Bucket         string
	Folder         string
	Limit          int
}

type Client struct {
	http *http.Client
	opts Options
}

func NewClient(client *http.Client, opts Options) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Limit <= 0 {
		opts.Limit = 200
	}
	return &Client{http: client, opts: opts}
}

type listRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	SortBy sortBy `json:"sortBy"`
}

type sortBy struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}

type object struct {
	Name string `json:"name"`
}

// storageError is the body Supabase storage returns on failure.
type storageError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Images returns image file names in the configured folder, sorted by name.
func (c *Client) Images(ctx context.Context) ([]string, error) {
	if c.opts.SupabaseURL == "" || c.opts.ServiceRoleKey == "" {
		return nil, ErrNotConfigured
	}

	endpoint, err := url.JoinPath(c.opts.SupabaseURL, "storage/v1/object/list", c.opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("gallery: endpoint: %w", err)
	}
	payload, err := json.Marshal(listRequest{
		Prefix: c.opts.Folder,
		Limit:  c.opts.Limit,
		SortBy: sortBy{Column: "name", Order: "asc"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gallery: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.ServiceRoleKey)
	req.Header.Set("apikey", c.opts.ServiceRoleKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gallery: list: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gallery: read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var se storageError
		if json.Unmarshal(body, &se) == nil && se.Message != "" {
			return nil, errors.New(se.Message)
		}
		return nil, fmt.Errorf("gallery: unexpected status %d", resp.StatusCode)
	}

	var objects []object
	if err := json.Unmarshal(body, &objects); err != nil {
		return nil, fmt.Errorf("gallery: decode: %w", err)
	}
	return filterImages(objects), nil
}

func filterImages(objects []object) []string {
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		if o.Name == "" || !imageName.MatchString(o.Name) {
			continue
		}
		out = append(out, o.Name)
	}
	return out
}
