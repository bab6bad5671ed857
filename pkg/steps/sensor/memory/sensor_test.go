package memory

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/step-tracker/pkg/steps"
	task_memory "github.com/code-payments/step-tracker/pkg/steps/task/memory"
)

func TestSensor_PermissionFlow(t *testing.T) {
	ctx := context.Background()
	s := New(task_memory.New())

	available, err := s.IsAvailable(ctx)
	require.NoError(t, err)
	assert.True(t, available)

	status, err := s.GetPermissionStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, steps.PermissionStatusUnknown, status)

	s.SetRequestOutcome(steps.PermissionStatusDenied)

	status, err = s.RequestPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, steps.PermissionStatusDenied, status)

	// Already answered, so the outcome no longer matters
	s.SetRequestOutcome(steps.PermissionStatusGranted)

	status, err = s.RequestPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, steps.PermissionStatusDenied, status)

	s.SetAvailable(false)

	status, err = s.GetPermissionStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, steps.PermissionStatusUnavailable, status)
}

func TestSensor_HistoryAndEvents(t *testing.T) {
	ctx := context.Background()

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	scheduler := task_memory.New()
	s := New(scheduler, WithClock(func() time.Time { return now }))

	var received []*steps.StepEvent
	require.NoError(t, scheduler.Define("task", func(_ context.Context, event *steps.StepEvent, _ error) {
		received = append(received, event)
	}))

	_, err := s.QueryStepHistory(ctx, now.Add(-time.Hour), now)
	assert.Equal(t, steps.ErrPermissionDenied, err)
	assert.Equal(t, steps.ErrPermissionDenied, s.SubscribeToStepEvents(ctx, "task"))

	_, err = s.RequestPermission(ctx)
	require.NoError(t, err)

	// Not subscribed yet, so only history observes these
	delivered, err := s.Walk(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)

	require.NoError(t, s.SubscribeToStepEvents(ctx, "task"))

	delivered, err = s.Walk(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	require.Len(t, received, 1)
	assert.EqualValues(t, 12, received[0].Steps)
	assert.NotEmpty(t, received[0].Id)
	assert.Equal(t, now, received[0].Time)

	s.WalkUnobserved(now.Add(-30*time.Minute), 100)
	s.WalkUnobserved(now.Add(-48*time.Hour), 1000)

	result, err := s.QueryStepHistory(ctx, now.Add(-time.Hour), now.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 142, result.Steps)
	assert.NoError(t, result.Validate())

	// The window excludes its end instant
	result, err = s.QueryStepHistory(ctx, now.Add(-time.Hour), now)
	require.NoError(t, err)
	assert.EqualValues(t, 100, result.Steps)

	result, err = s.QueryStepHistory(ctx, now.Add(-30*time.Minute), now)
	require.NoError(t, err)
	assert.EqualValues(t, 100, result.Steps)

	s.InduceHistoryErrors()
	_, err = s.QueryStepHistory(ctx, now.Add(-time.Hour), now)
	assert.True(t, errors.Is(err, steps.ErrHistoryQueryFailed))

	s.StopInducingErrors()
	s.SetAvailable(false)
	_, err = s.QueryStepHistory(ctx, now.Add(-time.Hour), now)
	assert.Equal(t, steps.ErrSensorUnavailable, err)
}

func TestSensor_UnregisteredTaskStopsReceiving(t *testing.T) {
	ctx := context.Background()
	scheduler := task_memory.New()
	s := New(scheduler)

	require.NoError(t, scheduler.Define("task", func(context.Context, *steps.StepEvent, error) {}))

	_, err := s.RequestPermission(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SubscribeToStepEvents(ctx, "task"))

	delivered, err := s.Walk(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	require.NoError(t, scheduler.Unregister(ctx, "task"))

	delivered, err = s.Walk(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)

	_, err = s.Walk(ctx, -1)
	assert.Error(t, err)
}
