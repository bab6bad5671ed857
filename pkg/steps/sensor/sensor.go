// Package sensor defines the motion sensor capability step tracking consumes
package sensor

import (
	"context"
	"time"

	"github.com/code-payments/step-tracker/pkg/steps"
)

type Sensor interface {
	// IsAvailable reports whether the device has a usable step sensor
	IsAvailable(ctx context.Context) (bool, error)

	// GetPermissionStatus returns the current motion permission without
	// prompting the user
	GetPermissionStatus(ctx context.Context) (steps.PermissionStatus, error)

	// RequestPermission prompts for motion permission when it is undetermined
	// and returns the resulting status
	RequestPermission(ctx context.Context) (steps.PermissionStatus, error)

	// SubscribeToStepEvents starts delivering step deltas to the scheduler task
	// named taskName. The subscription outlives this process for as long as the
	// scheduler keeps it registered.
	SubscribeToStepEvents(ctx context.Context, taskName string) error

	// QueryStepHistory returns the sensor's own step total between start and
	// end. Failures wrap steps.ErrSensorUnavailable, steps.ErrPermissionDenied
	// or steps.ErrHistoryQueryFailed.
	QueryStepHistory(ctx context.Context, start, end time.Time) (*steps.HistoryResult, error)
}
