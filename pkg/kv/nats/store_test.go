package nats

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/step-tracker/pkg/kv/tests"
	"github.com/code-payments/step-tracker/pkg/natstest"
)

func TestKvNatsStore(t *testing.T) {
	ctx := context.Background()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)

	conn, teardown, err := natstest.StartNats(pool)
	require.NoError(t, err)
	defer teardown()
	defer conn.Close()

	js, err := jetstream.New(conn)
	require.NoError(t, err)

	testStore, err := New(ctx, js, "")
	require.NoError(t, err)

	// Opening an existing bucket reuses it
	_, err = New(ctx, js, "")
	require.NoError(t, err)

	reset := func() {
		require.NoError(t, testStore.(*store).reset(ctx))
	}
	tests.RunTests(t, testStore, reset)
}
