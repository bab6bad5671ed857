package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/step-tracker/pkg/steps"
	"github.com/code-payments/step-tracker/pkg/steps/task"
)

// Scheduler is an in process task.Scheduler. Registrations live only as long
// as the Scheduler value.
type Scheduler struct {
	log *logrus.Entry

	mu         sync.RWMutex
	handlers   map[string]task.Handler
	registered map[string]bool
	delivered  map[string]int
}

func New() *Scheduler {
	return &Scheduler{
		log:        logrus.StandardLogger().WithField("type", "steps/task/memory"),
		handlers:   make(map[string]task.Handler),
		registered: make(map[string]bool),
		delivered:  make(map[string]int),
	}
}

// Define implements task.Scheduler.Define
func (s *Scheduler) Define(name string, handler task.Handler) error {
	if len(name) == 0 {
		return task.ErrInvalidTaskName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handlers[name]; ok {
		return task.ErrTaskAlreadyDefined
	}
	s.handlers[name] = handler
	return nil
}

// Register implements task.Scheduler.Register
func (s *Scheduler) Register(_ context.Context, name string) error {
	if len(name) == 0 {
		return task.ErrInvalidTaskName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.registered[name] = true
	return nil
}

// IsRegistered implements task.Scheduler.IsRegistered
func (s *Scheduler) IsRegistered(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.registered[name], nil
}

// Unregister implements task.Scheduler.Unregister
func (s *Scheduler) Unregister(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.registered, name)
	return nil
}

// Dispatch delivers event, or deliveryErr, to the handler defined for name.
// Nothing is delivered unless name is registered. It reports whether the
// handler ran. A panicking handler is recovered and logged.
func (s *Scheduler) Dispatch(ctx context.Context, name string, event *steps.StepEvent, deliveryErr error) (delivered bool, err error) {
	s.mu.RLock()
	handler, defined := s.handlers[name]
	registered := s.registered[name]
	s.mu.RUnlock()

	if !registered {
		return false, nil
	}

	if !defined {
		return false, task.ErrTaskNotDefined
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("task", name).Errorf("task handler panicked: %v", r)
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()

	handler(ctx, event, deliveryErr)

	s.mu.Lock()
	s.delivered[name]++
	s.mu.Unlock()

	return true, nil
}

// Delivered returns the number of deliveries handled for name
func (s *Scheduler) Delivered(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.delivered[name]
}
