package background

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memory_kv "github.com/code-payments/step-tracker/pkg/kv/memory"
	"github.com/code-payments/step-tracker/pkg/steps"
	"github.com/code-payments/step-tracker/pkg/steps/counter"
	memory_sensor "github.com/code-payments/step-tracker/pkg/steps/sensor/memory"
	memory_task "github.com/code-payments/step-tracker/pkg/steps/task/memory"
)

func TestListener_Lifecycle(t *testing.T) {
	ctx := context.Background()

	scheduler := memory_task.New()
	sensor := memory_sensor.New(scheduler)
	store := counter.NewStore(memory_kv.New(), counter.WithEnvConfigs())
	require.NoError(t, DefineTask(scheduler, store))

	_, err := sensor.RequestPermission(ctx)
	require.NoError(t, err)

	listener := NewListener(sensor, scheduler)

	registered, err := listener.IsRegistered(ctx)
	require.NoError(t, err)
	assert.False(t, registered)

	// Nothing is listening yet
	_, err = sensor.Walk(ctx, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 0, store.GetToday(ctx))

	require.NoError(t, listener.Register(ctx))
	require.NoError(t, listener.Register(ctx))

	registered, err = listener.IsRegistered(ctx)
	require.NoError(t, err)
	assert.True(t, registered)

	for _, delta := range []int64{10, 5} {
		delivered, err := sensor.Walk(ctx, delta)
		require.NoError(t, err)
		assert.Equal(t, 1, delivered)
	}
	assert.EqualValues(t, 15, store.GetToday(ctx))

	require.NoError(t, listener.Unregister(ctx))
	require.NoError(t, listener.Unregister(ctx))

	registered, err = listener.IsRegistered(ctx)
	require.NoError(t, err)
	assert.False(t, registered)

	_, err = sensor.Walk(ctx, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 15, store.GetToday(ctx))
}

func TestListener_RegisterRequiresPermission(t *testing.T) {
	ctx := context.Background()

	scheduler := memory_task.New()
	sensor := memory_sensor.New(scheduler)
	listener := NewListener(sensor, scheduler)

	sensor.SetPermissionStatus(steps.PermissionStatusDenied)
	assert.ErrorIs(t, listener.Register(ctx), steps.ErrPermissionDenied)

	registered, err := listener.IsRegistered(ctx)
	require.NoError(t, err)
	assert.False(t, registered)
}
