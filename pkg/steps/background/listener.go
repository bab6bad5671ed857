package background

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/step-tracker/pkg/steps/sensor"
	"github.com/code-payments/step-tracker/pkg/steps/task"
)

// Listener manages the sensor subscription that feeds TaskName
type Listener struct {
	log       *logrus.Entry
	sensor    sensor.Sensor
	scheduler task.Scheduler
}

func NewListener(sensor sensor.Sensor, scheduler task.Scheduler) *Listener {
	return &Listener{
		log:       logrus.StandardLogger().WithField("type", "steps/background/listener"),
		sensor:    sensor,
		scheduler: scheduler,
	}
}

// Register subscribes the sensor's step deltas to TaskName. It is a no-op when
// the subscription is already registered.
func (l *Listener) Register(ctx context.Context) error {
	log := l.log.WithField("method", "Register")

	registered, err := l.scheduler.IsRegistered(ctx, TaskName)
	if err != nil {
		return errors.Wrap(err, "error checking task registration")
	}

	if registered {
		log.Debug("background task already registered")
		return nil
	}

	if err := l.sensor.SubscribeToStepEvents(ctx, TaskName); err != nil {
		return errors.Wrap(err, "error subscribing to step events")
	}

	log.Info("background task registered")
	return nil
}

// IsRegistered reports whether the scheduler holds an active subscription
func (l *Listener) IsRegistered(ctx context.Context) (bool, error) {
	return l.scheduler.IsRegistered(ctx, TaskName)
}

// Unregister removes the subscription. It is a no-op when nothing is registered.
func (l *Listener) Unregister(ctx context.Context) error {
	log := l.log.WithField("method", "Unregister")

	registered, err := l.scheduler.IsRegistered(ctx, TaskName)
	if err != nil {
		return errors.Wrap(err, "error checking task registration")
	}

	if !registered {
		return nil
	}

	if err := l.scheduler.Unregister(ctx, TaskName); err != nil {
		return errors.Wrap(err, "error unregistering task")
	}

	log.Info("background task unregistered")
	return nil
}
