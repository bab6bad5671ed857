// Package retry re-runs fallible calls, such as sensor history queries and
// broker setup, according to a composable set of strategies.
package retry

import (
	"context"
)

// Action is a function to be performed in a retriable manner.
type Action func() error

// ContextAction is an Action bound to the caller's context.
type ContextAction func(ctx context.Context) error

// Retry executes the provided action, potentially multiple times based off of
// the provided strategies. Retry blocks until the action is successful, or one
// of the strategies indicates no further retries should be performed. It
// returns the number of attempts made.
//
// Strategies are evaluated in order, so any strategy that induces a delay
// should be specified last.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	return RetryWithContext(
		context.Background(),
		func(context.Context) error { return action() },
		strategies...,
	)
}

// RetryWithContext is Retry for callers that can be cancelled. No attempt is
// made once ctx is done, and the last attempt's error is returned as is. Pair
// it with BackoffWithContext so delays end with ctx too.
func RetryWithContext(ctx context.Context, action ContextAction, strategies ...Strategy) (uint, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var attempts uint
	for {
		attempts++

		err := action(ctx)
		if err == nil {
			return attempts, nil
		}

		if !shouldRetry(strategies, attempts, err) || ctx.Err() != nil {
			return attempts, err
		}
	}
}

func shouldRetry(strategies []Strategy, attempts uint, err error) bool {
	for _, s := range strategies {
		if !s(attempts, err) {
			return false
		}
	}
	return true
}
