package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/step-tracker/pkg/config"
)

func TestHappyPath(t *testing.T) {
	c := NewConfig(nil)
	_, err := c.Get(context.Background())
	assert.Equal(t, config.ErrNoValue, err)

	expected := "value"
	c.SetValue(expected)
	val, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expected, val)

	c.ClearValue()
	_, err = c.Get(context.Background())
	assert.Equal(t, config.ErrNoValue, err)

	c.InduceErrors()
	_, err = c.Get(context.Background())
	assert.Equal(t, errDeveloperInduced, err)

	c.StopInducingErrors()
	_, err = c.Get(context.Background())
	assert.Equal(t, config.ErrNoValue, err)

	c.Shutdown()
	_, err = c.Get(context.Background())
	assert.Equal(t, config.ErrShutdown, err)
}

func TestTypedHelpers(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, 3*time.Second, NewDurationConfig(3*time.Second).Get(ctx))
	assert.EqualValues(t, 8, NewUint64Config(8).Get(ctx))
	assert.Equal(t, "prefix_", NewStringConfig("prefix_").Get(ctx))
	assert.True(t, NewBoolConfig(true).Get(ctx))
}
