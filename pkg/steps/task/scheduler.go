// Package task models the platform scheduler that re-invokes named background
// handlers, potentially in a fresh, short-lived process, whenever a
// subscription registered under that name delivers data.
package task

import (
	"context"
	"errors"

	"github.com/code-payments/step-tracker/pkg/steps"
)

var (
	ErrTaskNotDefined     = errors.New("task not defined")
	ErrTaskAlreadyDefined = errors.New("task already defined")
	ErrInvalidTaskName    = errors.New("task name is required")
)

// Handler is invoked once per delivery. deliveryErr is set when the scheduler
// could not produce an event, in which case event is nil. Handlers must not
// assume any state beyond what they were constructed with.
type Handler func(ctx context.Context, event *steps.StepEvent, deliveryErr error)

type Scheduler interface {
	// Define binds handler to name. It must be called once per process, before
	// any delivery for name can be handled.
	Define(name string, handler Handler) error

	// Register marks the subscription for name as active so deliveries are
	// routed to its handler, including after a process restart
	Register(ctx context.Context, name string) error

	// IsRegistered reports whether the subscription for name is active
	IsRegistered(ctx context.Context, name string) (bool, error)

	// Unregister removes the subscription for name. Unregistering an inactive
	// subscription is not an error.
	Unregister(ctx context.Context, name string) error
}
