package probe_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TrestonSMC/dozers-site/internal/metrics"
	"github.com/TrestonSMC/dozers-site/internal/model"
	"github.com/TrestonSMC/dozers-site/internal/probe"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) Entries(ctx context.Context) ([]model.SourceEntry, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]model.SourceEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockRecorder struct {
	metrics.Nop
	mock.Mock
}

func (m *MockRecorder) RecordProbe(result string) { m.Called(result) }

type panicSource struct{}

func (panicSource) Entries(context.Context) ([]model.SourceEntry, error) { panic("boom") }

func TestRunOnce(t *testing.T) {
	tests := []struct {
		name    string
		entries []model.SourceEntry
		err     error
		wantOK  bool
		result  string
	}{
		{"Healthy", []model.SourceEntry{{Summary: "Nine Ball Open"}}, nil, true, metrics.ResultOK},
		{"EmptyCalendar", []model.SourceEntry{}, nil, true, metrics.ResultOK},
		{"Down", nil, errors.New("connection refused"), false, metrics.ResultUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := new(MockSource)
			src.On("Entries", mock.Anything).Return(tt.entries, tt.err)
			rec := new(MockRecorder)
			rec.On("RecordProbe", tt.result).Once()

			res := probe.New(src, time.Second, rec).RunOnce(context.Background())

			assert.Equal(t, tt.wantOK, res.OK)
			assert.Equal(t, len(tt.entries), res.Entries)
			rec.AssertExpectations(t)
		})
	}
}

func TestRunOnce_SourcePanics(t *testing.T) {
	rec := new(MockRecorder)
	rec.On("RecordProbe", metrics.ResultUnavailable).Once()

	res := probe.New(panicSource{}, time.Second, rec).RunOnce(context.Background())

	assert.False(t, res.OK)
	require.Error(t, res.Err)
	rec.AssertExpectations(t)
}

func TestRunOnce_AppliesTimeout(t *testing.T) {
	src := new(MockSource)
	src.On("Entries", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})).Return([]model.SourceEntry{}, nil)

	res := probe.New(src, 50*time.Millisecond, nil).RunOnce(context.Background())
	assert.True(t, res.OK)
	src.AssertExpectations(t)
}

func TestStart_DisabledAndInvalid(t *testing.T) {
	p := probe.New(new(MockSource), time.Second, nil)

	assert.NoError(t, p.Start(context.Background(), "", time.UTC))
	assert.Error(t, p.Start(context.Background(), "not a cron", time.UTC))
}

func TestStart_StopsWithContext(t *testing.T) {
	p := probe.New(new(MockSource), time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Start(ctx, "0 4 * * *", time.UTC) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("probe did not stop")
	}
}
