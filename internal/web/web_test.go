package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TrestonSMC/dozers-site/internal/config"
	"github.com/TrestonSMC/dozers-site/internal/menu"
	"github.com/TrestonSMC/dozers-site/internal/metrics"
	"github.com/TrestonSMC/dozers-site/internal/model"
	"github.com/TrestonSMC/dozers-site/internal/reviews"
	"github.com/TrestonSMC/dozers-site/internal/submission"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) Aggregate(ctx context.Context) []model.PublicEvent {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]model.PublicEvent)
	}
	return nil
}

type panicEvents struct{}

func (panicEvents) Aggregate(context.Context) []model.PublicEvent { panic("boom") }

type MockMenu struct {
	mock.Mock
}

func (m *MockMenu) Fetch(ctx context.Context) ([]menu.Category, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]menu.Category), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockReviews struct {
	mock.Mock
}

func (m *MockReviews) Fetch(ctx context.Context) ([]reviews.Review, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]reviews.Review), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockGallery struct {
	mock.Mock
}

func (m *MockGallery) Images(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, f submission.Form) (string, error) {
	args := m.Called(ctx, f)
	return args.String(0), args.Error(1)
}

func newTestServer(deps Deps) *Server {
	return NewServer(config.DefaultConfig(), deps)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// -----------------------------------------------------------------------------
// Test Cases
// -----------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(Deps{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestEvents_BothRoutes(t *testing.T) {
	evs := []model.PublicEvent{{
		ID:          "APA 8 Ball-2025-6-2",
		Title:       "APA 8 Ball",
		Description: "Tables 9–16",
		RawDate:     "2025-06-03T01:00:00.000Z",
		Display:     "Mon, Jun 2, 6:00 PM",
	}}
	provider := new(MockEvents)
	provider.On("Aggregate", mock.Anything).Return(evs)
	s := newTestServer(Deps{Events: provider})

	for _, path := range []string{"/events-feed", "/api/events"} {
		rec := do(t, s, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"events":[{"id":"APA 8 Ball-2025-6-2","title":"APA 8 Ball","desc":"Tables 9–16","rawDate":"2025-06-03T01:00:00.000Z","time":"Mon, Jun 2, 6:00 PM"}]}`, rec.Body.String())
	}
	provider.AssertNumberOfCalls(t, "Aggregate", 2)
}

func TestEvents_AlwaysOK(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{"NoProvider", Deps{}},
		{"Panics", Deps{Events: panicEvents{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(tt.deps), http.MethodGet, "/events-feed", "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"events":[]}`, rec.Body.String())
		})
	}

	nilList := new(MockEvents)
	nilList.On("Aggregate", mock.Anything).Return(nil)
	rec := do(t, newTestServer(Deps{Events: nilList}), http.MethodGet, "/api/events", "")
	assert.JSONEq(t, `{"events":[]}`, rec.Body.String())
}

func TestMenu(t *testing.T) {
	price := "14"
	ok := new(MockMenu)
	ok.On("Fetch", mock.Anything).Return([]menu.Category{{
		Name: "Burgers",
		Sort: 1,
		Rows: []menu.Row{{Category: "Burgers", Type: menu.TypeItem, Name: "Dozer Burger", Price: &price, Active: true}},
	}}, nil)

	rec := do(t, newTestServer(Deps{Menu: ok}), http.MethodGet, "/api/menu", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body menuResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Categories, 1)
	assert.Equal(t, "Dozer Burger", body.Categories[0].Rows[0].Name)

	failing := new(MockMenu)
	failing.On("Fetch", mock.Anything).Return(nil, menu.ErrStatus)
	rec = do(t, newTestServer(Deps{Menu: failing}), http.MethodGet, "/api/menu", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestReviews(t *testing.T) {
	ok := new(MockReviews)
	ok.On("Fetch", mock.Anything).Return([]reviews.Review{{Author: "Guest", Rating: 5, Time: "6/4/2025"}}, nil)
	rec := do(t, newTestServer(Deps{Reviews: ok}), http.MethodGet, "/api/reviews", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reviews":[{"author":"Guest","text":"","rating":5,"time":"6/4/2025","profile":""}]}`, rec.Body.String())

	noKey := new(MockReviews)
	noKey.On("Fetch", mock.Anything).Return(nil, reviews.ErrNoAPIKey)
	rec = do(t, newTestServer(Deps{Reviews: noKey}), http.MethodGet, "/api/reviews", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Missing API key"}`, rec.Body.String())

	broken := new(MockReviews)
	broken.On("Fetch", mock.Anything).Return(nil, errors.New("dial tcp: refused"))
	rec = do(t, newTestServer(Deps{Reviews: broken}), http.MethodGet, "/api/reviews", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch reviews"}`, rec.Body.String())
}

func TestGallery(t *testing.T) {
	ok := new(MockGallery)
	ok.On("Images", mock.Anything).Return([]string{"bar.jpg"}, nil)
	rec := do(t, newTestServer(Deps{Gallery: ok}), http.MethodGet, "/api/gallery", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"images":["bar.jpg"]}`, rec.Body.String())

	failing := new(MockGallery)
	failing.On("Images", mock.Anything).Return(nil, errors.New("Bucket not found"))
	rec = do(t, newTestServer(Deps{Gallery: failing}), http.MethodGet, "/api/gallery", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"images":[],"error":"Bucket not found"}`, rec.Body.String())
}

func TestSubmitEvent(t *testing.T) {
	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(f submission.Form) bool {
		return f.RequestedBy == "Sam Rivera" && f.Email == "sam@example.com"
	})).Return("msg_1", nil)

	rec := do(t, newTestServer(Deps{Mailer: mailer}), http.MethodPost, "/api/submit-event",
		`{"requestedBy":"Sam Rivera","email":"sam@example.com","dateRange":"June 14"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	mailer.AssertExpectations(t)
}

func TestSubmitEvent_Errors(t *testing.T) {
	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, mock.Anything).Return("", errors.New("Invalid from field"))
	s := newTestServer(Deps{Mailer: mailer})

	rec := do(t, s, http.MethodPost, "/api/submit-event", `{"requestedBy":"Sam"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid from field"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/submit-event", `not json`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
	mailer.AssertNumberOfCalls(t, "Send", 1)
}

func TestSubmitEvent_RateLimited(t *testing.T) {
	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, mock.Anything).Return("msg", nil)

	limiter := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2, CleanupInterval: time.Minute})
	defer limiter.Stop()
	s := newTestServer(Deps{Mailer: mailer, SubmitLimiter: limiter})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, s, http.MethodPost, "/api/submit-event", `{"requestedBy":"Sam"}`).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Other routes are not limited.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
}

func TestMetrics_BasicAuth(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg).RecordRejected("blocklist")

	cfg := config.DefaultConfig()
	cfg.Metrics.BasicAuth = &config.BasicAuthConfig{Username: "ops", Password: "pw"}
	s := NewServer(cfg, Deps{Metrics: metrics.Handler(reg)})

	rec := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("ops", "pw")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dozers_feed_entries_rejected_total{reason="blocklist"} 1`)

	// Health stays public.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
}

func TestMetrics_NotMounted(t *testing.T) {
	rec := do(t, newTestServer(Deps{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(PerMinute(5, 5))
	defer rl.Stop()

	rl.get("203.0.113.7")
	rl.get("203.0.113.8")
	require.Equal(t, 2, rl.Len())

	rl.cleanup(time.Now())
	assert.Equal(t, 2, rl.Len())

	rl.cleanup(time.Now().Add(11 * time.Minute))
	assert.Equal(t, 0, rl.Len())
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.4:5123"
	assert.Equal(t, "198.51.100.4", clientIP(r))

	r.RemoteAddr = "198.51.100.4"
	assert.Equal(t, "198.51.100.4", clientIP(r))
}
