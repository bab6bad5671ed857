package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/code-payments/step-tracker/pkg/steps"
	"github.com/code-payments/step-tracker/pkg/steps/sensor"
	task_memory "github.com/code-payments/step-tracker/pkg/steps/task/memory"
)

var errDeveloperInduced = errors.New("in memory sensor: developer induced error")

type sample struct {
	at    time.Time
	steps int64
}

// Sensor is a simulated step sensor used for testing and local runs. Events
// are delivered synchronously through an in memory scheduler.
type Sensor struct {
	scheduler *task_memory.Scheduler
	now       func() time.Time

	mu              sync.Mutex
	available       bool
	permission      steps.PermissionStatus
	requestOutcome  steps.PermissionStatus
	history         []sample
	subscriptions   map[string]struct{}
	availabilityErr error
	historyErr      error
	subscribeErr    error
}

var _ sensor.Sensor = (*Sensor)(nil)

type Option func(*Sensor)

// WithClock overrides the source of event and sample timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Sensor) {
		s.now = now
	}
}

// New returns an available sensor with undetermined permission that grants
// permission when requested
func New(scheduler *task_memory.Scheduler, opts ...Option) *Sensor {
	s := &Sensor{
		scheduler:      scheduler,
		now:            time.Now,
		available:      true,
		permission:     steps.PermissionStatusUnknown,
		requestOutcome: steps.PermissionStatusGranted,
		subscriptions:  make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// IsAvailable implements sensor.Sensor.IsAvailable
func (s *Sensor) IsAvailable(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.availabilityErr != nil {
		return false, s.availabilityErr
	}
	return s.available, nil
}

// GetPermissionStatus implements sensor.Sensor.GetPermissionStatus
func (s *Sensor) GetPermissionStatus(_ context.Context) (steps.PermissionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.available {
		return steps.PermissionStatusUnavailable, nil
	}
	return s.permission, nil
}

// RequestPermission implements sensor.Sensor.RequestPermission
func (s *Sensor) RequestPermission(_ context.Context) (steps.PermissionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.available {
		return steps.PermissionStatusUnavailable, nil
	}

	// Once answered, the platform no longer prompts
	if s.permission == steps.PermissionStatusUnknown {
		s.permission = s.requestOutcome
	}
	return s.permission, nil
}

// SubscribeToStepEvents implements sensor.Sensor.SubscribeToStepEvents
func (s *Sensor) SubscribeToStepEvents(ctx context.Context, taskName string) error {
	s.mu.Lock()
	switch {
	case s.subscribeErr != nil:
		s.mu.Unlock()
		return s.subscribeErr
	case !s.available:
		s.mu.Unlock()
		return steps.ErrSensorUnavailable
	case s.permission != steps.PermissionStatusGranted:
		s.mu.Unlock()
		return steps.ErrPermissionDenied
	}
	s.subscriptions[taskName] = struct{}{}
	s.mu.Unlock()

	return s.scheduler.Register(ctx, taskName)
}

// QueryStepHistory implements sensor.Sensor.QueryStepHistory. Samples are
// included when they fall within [start, end).
func (s *Sensor) QueryStepHistory(_ context.Context, start, end time.Time) (*steps.HistoryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case !s.available:
		return nil, steps.ErrSensorUnavailable
	case s.permission != steps.PermissionStatusGranted:
		return nil, steps.ErrPermissionDenied
	case s.historyErr != nil:
		return nil, errors.Wrap(steps.ErrHistoryQueryFailed, s.historyErr.Error())
	}

	var total int64
	for _, sample := range s.history {
		if sample.at.Before(start) || !sample.at.Before(end) {
			continue
		}
		total += sample.steps
	}

	return &steps.HistoryResult{
		Start: start,
		End:   end,
		Steps: total,
	}, nil
}

// Walk simulates the user taking n steps now. The steps land in the sensor's
// history and are delivered as one event to every subscribed task the
// scheduler still has registered. It returns the number of tasks the event
// was delivered to.
func (s *Sensor) Walk(ctx context.Context, n int64) (int, error) {
	if n < 0 {
		return 0, errors.New("step count must be non-negative")
	}

	now := s.now()

	s.mu.Lock()
	s.history = append(s.history, sample{at: now, steps: n})
	var names []string
	for name := range s.subscriptions {
		names = append(names, name)
	}
	s.mu.Unlock()

	event := &steps.StepEvent{
		Id:    uuid.New().String(),
		Steps: n,
		Time:  now,
	}

	var delivered int
	for _, name := range names {
		ok, err := s.scheduler.Dispatch(ctx, name, event, nil)
		if err != nil {
			return delivered, err
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

// WalkUnobserved records n steps in the sensor's history at time at without
// delivering any event, as happens while the process is killed
func (s *Sensor) WalkUnobserved(at time.Time, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, sample{at: at, steps: n})
}

func (s *Sensor) SetAvailable(available bool) {
	s.mu.Lock()
	s.available = available
	s.mu.Unlock()
}

// SetPermissionStatus sets the current permission, as if the user changed it
// in system settings
func (s *Sensor) SetPermissionStatus(status steps.PermissionStatus) {
	s.mu.Lock()
	s.permission = status
	s.mu.Unlock()
}

// SetRequestOutcome sets how the user answers the next permission prompt
func (s *Sensor) SetRequestOutcome(status steps.PermissionStatus) {
	s.mu.Lock()
	s.requestOutcome = status
	s.mu.Unlock()
}

func (s *Sensor) InduceAvailabilityErrors() {
	s.mu.Lock()
	s.availabilityErr = errDeveloperInduced
	s.mu.Unlock()
}

func (s *Sensor) InduceHistoryErrors() {
	s.mu.Lock()
	s.historyErr = errDeveloperInduced
	s.mu.Unlock()
}

func (s *Sensor) InduceSubscribeErrors() {
	s.mu.Lock()
	s.subscribeErr = errDeveloperInduced
	s.mu.Unlock()
}

func (s *Sensor) StopInducingErrors() {
	s.mu.Lock()
	s.availabilityErr = nil
	s.historyErr = nil
	s.subscribeErr = nil
	s.mu.Unlock()
}
