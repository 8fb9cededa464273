// Package netguard builds the outbound HTTP clients used for upstream
// feeds and APIs.
package netguard

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

var allowedSchemes = []string{"http", "https"}

// NewClient returns an HTTP client for talking to third-party upstreams.
//
// Unless allowPrivate is set, the client is wrapped by safeurl, which
// validates the resolved IP at dial time and refuses private, loopback,
// link-local and cloud metadata addresses. allowPrivate is meant for local
// development and tests that point upstream URLs at httptest servers.
func NewClient(timeout time.Duration, allowPrivate bool) *http.Client {
	if allowPrivate {
		return &http.Client{Timeout: timeout}
	}

	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(cfg).Client
}
