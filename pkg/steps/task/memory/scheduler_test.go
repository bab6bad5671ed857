package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/step-tracker/pkg/steps"
	"github.com/code-payments/step-tracker/pkg/steps/task"
)

func TestScheduler_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	var received []int64
	var receivedErrs []error
	handler := func(_ context.Context, event *steps.StepEvent, deliveryErr error) {
		if deliveryErr != nil {
			receivedErrs = append(receivedErrs, deliveryErr)
			return
		}
		received = append(received, event.Steps)
	}

	assert.Equal(t, task.ErrInvalidTaskName, s.Define("", handler))
	require.NoError(t, s.Define("task", handler))
	assert.Equal(t, task.ErrTaskAlreadyDefined, s.Define("task", handler))

	// Not registered, so nothing is delivered
	delivered, err := s.Dispatch(ctx, "task", &steps.StepEvent{Steps: 1}, nil)
	require.NoError(t, err)
	assert.False(t, delivered)

	registered, err := s.IsRegistered(ctx, "task")
	require.NoError(t, err)
	assert.False(t, registered)

	require.NoError(t, s.Register(ctx, "task"))
	require.NoError(t, s.Register(ctx, "task"))

	registered, err = s.IsRegistered(ctx, "task")
	require.NoError(t, err)
	assert.True(t, registered)

	delivered, err = s.Dispatch(ctx, "task", &steps.StepEvent{Steps: 10}, nil)
	require.NoError(t, err)
	assert.True(t, delivered)

	delivered, err = s.Dispatch(ctx, "task", nil, errors.New("sensor hiccup"))
	require.NoError(t, err)
	assert.True(t, delivered)

	assert.Equal(t, []int64{10}, received)
	assert.Len(t, receivedErrs, 1)
	assert.Equal(t, 2, s.Delivered("task"))

	require.NoError(t, s.Unregister(ctx, "task"))
	require.NoError(t, s.Unregister(ctx, "task"))

	registered, err = s.IsRegistered(ctx, "task")
	require.NoError(t, err)
	assert.False(t, registered)

	delivered, err = s.Dispatch(ctx, "task", &steps.StepEvent{Steps: 5}, nil)
	require.NoError(t, err)
	assert.False(t, delivered)
	assert.Equal(t, []int64{10}, received)
}

func TestScheduler_RegisteredButUndefined(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Register(ctx, "task"))

	_, err := s.Dispatch(ctx, "task", &steps.StepEvent{Steps: 1}, nil)
	assert.Equal(t, task.ErrTaskNotDefined, err)
}

func TestScheduler_RecoversPanics(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Define("task", func(context.Context, *steps.StepEvent, error) {
		panic("boom")
	}))
	require.NoError(t, s.Register(ctx, "task"))

	assert.NotPanics(t, func() {
		delivered, err := s.Dispatch(ctx, "task", &steps.StepEvent{Steps: 1}, nil)
		assert.Error(t, err)
		assert.False(t, delivered)
	})
}
