package appstate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/step-tracker/pkg/steps"
	test_util "github.com/code-payments/step-tracker/pkg/testutil"
)

func TestPoller_RefreshAndPublish(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource()
	poller := NewPoller(source, withManualTestOverrides(&testOverrides{
		pollSchedule:   "@every 1s",
		statusSchedule: "@every 1s",
	}))

	assert.False(t, poller.HasSteps())
	assert.Equal(t, Snapshot{}, poller.Get())

	source.setSteps(42)
	poller.RefreshSteps(ctx)
	assert.True(t, poller.HasSteps())

	snapshot := poller.Get()
	assert.EqualValues(t, 42, snapshot.Steps)
	assert.Equal(t, "2024-03-10", snapshot.Day)
	assert.False(t, snapshot.UpdatedAt.IsZero())
	assert.True(t, snapshot.StatusUpdatedAt.IsZero())

	poller.Publish(97)
	assert.EqualValues(t, 97, poller.Get().Steps)

	source.setStatus(steps.TrackingStatus{Available: true, Permission: steps.PermissionStatusGranted, Listening: true})
	poller.RefreshStatus(ctx)

	snapshot = poller.Get()
	assert.True(t, snapshot.Status.Listening)
	assert.Equal(t, steps.PermissionStatusGranted, snapshot.Status.Permission)
	assert.False(t, snapshot.StatusUpdatedAt.IsZero())
}

func TestPoller_Gauges(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource()
	poller := NewPoller(source, withManualTestOverrides(&testOverrides{
		pollSchedule:   "@every 1s",
		statusSchedule: "@every 1s",
	}))

	collectors := poller.Collectors()
	require.Len(t, collectors, 2)

	assert.EqualValues(t, 0, testutil.ToFloat64(collectors[0]))
	assert.EqualValues(t, 0, testutil.ToFloat64(collectors[1]))

	source.setSteps(1234)
	source.setStatus(steps.TrackingStatus{Available: true, Listening: true})
	poller.RefreshSteps(ctx)
	poller.RefreshStatus(ctx)

	assert.EqualValues(t, 1234, testutil.ToFloat64(collectors[0]))
	assert.EqualValues(t, 1, testutil.ToFloat64(collectors[1]))
}

func TestPoller_Start(t *testing.T) {
	source := newFakeSource()
	poller := NewPoller(source, withManualTestOverrides(&testOverrides{
		pollSchedule:   "@every 1s",
		statusSchedule: "@every 1s",
	}))

	source.setSteps(5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- poller.Start(ctx)
	}()

	// Initial refresh happens immediately
	require.NoError(t, test_util.WaitFor(time.Second, 10*time.Millisecond, poller.HasSteps))
	assert.EqualValues(t, 5, poller.Get().Steps)

	source.setSteps(6)
	require.NoError(t, test_util.WaitForValue(3*time.Second, 50*time.Millisecond, int64(6), func() int64 {
		return poller.Get().Steps
	}))
	assert.True(t, atomic.LoadInt64(&source.stepReads) >= 2)

	cancel()
	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPoller_InvalidSchedule(t *testing.T) {
	poller := NewPoller(newFakeSource(), withManualTestOverrides(&testOverrides{
		pollSchedule:   "whenever",
		statusSchedule: "@every 1s",
	}))

	assert.Error(t, poller.Start(context.Background()))
}

type fakeSource struct {
	mu        sync.Mutex
	steps     int64
	status    steps.TrackingStatus
	stepReads int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{}
}

func (s *fakeSource) GetTodaySteps(_ context.Context) int64 {
	atomic.AddInt64(&s.stepReads, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

func (s *fakeSource) Status(_ context.Context) steps.TrackingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *fakeSource) Today() time.Time {
	return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
}

func (s *fakeSource) setSteps(value int64) {
	s.mu.Lock()
	s.steps = value
	s.mu.Unlock()
}

func (s *fakeSource) setStatus(status steps.TrackingStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}
