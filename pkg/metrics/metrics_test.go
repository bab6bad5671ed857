package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestHelpersWithoutNewRelic(t *testing.T) {
	ctx := context.Background()

	_, ok := FromContext(ctx)
	assert.False(t, ok)
	assert.Equal(t, ctx, NewContext(ctx, nil))

	RecordCount(ctx, "count", 1)
	RecordDuration(ctx, "duration", time.Second)
	RecordEvent(ctx, "event", map[string]interface{}{"key": "value"})

	tracedCtx, end := StartTransaction(ctx, "txn")
	assert.Equal(t, ctx, tracedCtx)
	end(errors.New("ignored"))

	tracer := TraceMethodCall(ctx, "struct", "method")
	assert.Nil(t, tracer)
	tracer.AddAttribute("key", "value")
	tracer.OnError(errors.New("ignored"))
	tracer.End()
}

func TestForwardedMessage(t *testing.T) {
	entry := logrus.NewEntry(logrus.StandardLogger())
	entry.Message = "reconciled"
	assert.Equal(t, "reconciled", forwardedMessage(entry))

	entry = entry.WithError(errors.New("history unavailable")).WithField("steps", 97)
	entry.Message = "reconciled"
	assert.Equal(t, `message="reconciled", error="history unavailable", data={"steps":97}`, forwardedMessage(entry))
}
