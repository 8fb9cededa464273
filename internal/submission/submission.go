// Package submission delivers event requests from the public form by e-mail
// through the Resend HTTP API.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/template"
)

// Form is the body posted by the event request page.
type Form struct {
	DateRange           string `json:"dateRange"`
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	DaysOfWeek          string `json:"daysOfWeek"`
	EventType           string `json:"eventType"`
	Notes               string `json:"notes"`
	RequestedBy         string `json:"requestedBy"`
	RequestDate         string `json:"requestDate"`
	Phone               string `json:"phone"`
	Email               string `json:"email"`
	TableSize           string `json:"tableSize"`
	NumberOfTables      string `json:"numberOfTables"`
	EstimatedAttendance string `json:"estimatedAttendance"`
	GreenFees           string `json:"greenFees"`
	SpecialRequest      string `json:"specialRequest"`
}

var bodyTemplate = template.Must(template.New("submission").Parse(`NEW EVENT SUBMISSION

Date/Range: {{.DateRange}}
Start Time: {{.StartTime}}
End Time: {{.EndTime}}
Days of Week: {{.DaysOfWeek}}

Type: {{.EventType}}

Requested By: {{.RequestedBy}}
Request Date: {{.RequestDate}}
Phone: {{.Phone}}
Email: {{.Email}}

Tables Needed: {{.TableSize}}
Number of Tables: {{.NumberOfTables}}
Estimated Attendance: {{.EstimatedAttendance}}
Green Fees: {{.GreenFees}}

Notes:
{{.Notes}}

Special Request:
{{.SpecialRequest}}
`))

// Subject is the e-mail subject for f.
func (f Form) Subject() string {
	return "New Event Submission — " + f.RequestedBy
}

// Body renders the plain-text e-mail body.
func (f Form) Body() (string, error) {
	var b strings.Builder
	if err := bodyTemplate.Execute(&b, f); err != nil {
		return "", fmt.Errorf("submission: render: %w", err)
	}
	return b.String(), nil
}

var ErrNotConfigured = errors.New("submission: mail api key or addresses are not configured")

// Options configure a Mailer.
type Options struct {
	BaseURL string
	APIKey  string
	From    string
	To      string
}

// Mailer sends submissions.
type Mailer struct {
	http *http.Client
	opts Options
}

func NewMailer(client *http.Client, opts Options) *Mailer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Mailer{http: client, opts: opts}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type sendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Send delivers f and returns the provider's message id. Provider errors
// carry the provider's message text.
func (m *Mailer) Send(ctx context.Context, f Form) (string, error) {
	if m.opts.APIKey == "" || m.opts.From == "" || m.opts.To == "" {
		return "", ErrNotConfigured
	}
	text, err := f.Body()
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(sendRequest{
		From:    m.opts.From,
		To:      []string{m.opts.To},
		Subject: f.Subject(),
		Text:    text,
		ReplyTo: strings.TrimSpace(f.Email),
	})
	if err != nil {
		return "", err
	}

	endpoint, err := url.JoinPath(m.opts.BaseURL, "emails")
	if err != nil {
		return "", fmt.Errorf("submission: endpoint: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("submission: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.opts.APIKey)

	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submission: send: %w", err)
	}
	defer resp.Body.Close()

	var out sendResponse
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("submission: read response: %w", err)
	}
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if out.Message != "" {
			return "", errors.New(out.Message)
		}
		return "", fmt.Errorf("submission: unexpected status %d", resp.StatusCode)
	}
	return out.ID, nil
}
