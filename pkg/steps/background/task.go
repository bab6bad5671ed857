// Package background accumulates sensor step deltas into the day counter from
// a headless, scheduler-invoked execution context.
package background

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/step-tracker/pkg/metrics"
	"github.com/code-payments/step-tracker/pkg/steps"
	"github.com/code-payments/step-tracker/pkg/steps/counter"
	"github.com/code-payments/step-tracker/pkg/steps/task"
)

// TaskName identifies the background step subscription. It must never change,
// since the scheduler relies on it to resume delivery after a restart.
const TaskName = "BACKGROUND_STEP_TRACKER"

const (
	stepEventDeliveredEventName = "StepEventDelivered"
	stepEventDroppedMetricName  = "StepEvent.Dropped"
)

var recordCount = metrics.RecordCount

// HandleStepEvent adds a single delivered delta to today's counter and returns
// the new total
func HandleStepEvent(ctx context.Context, store *counter.Store, event *steps.StepEvent) (int64, error) {
	if event == nil {
		return 0, errors.New("event is nil")
	}

	if err := event.Validate(); err != nil {
		return 0, errors.Wrap(err, "invalid step event")
	}

	return store.AddToday(ctx, event.Steps)
}

// NewTaskHandler returns the scheduler handler for TaskName. It never fails or
// panics: a delta that cannot be recorded is logged and dropped, and the next
// reconciliation restores it.
func NewTaskHandler(store *counter.Store) task.Handler {
	log := logrus.StandardLogger().WithFields(logrus.Fields{
		"type": "steps/background",
		"task": TaskName,
	})

	return func(ctx context.Context, event *steps.StepEvent, deliveryErr error) {
		ctx, end := metrics.StartTransaction(ctx, TaskName)

		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic handling step event: %v", r)
				log.WithError(err).Error("recovered from step event panic")
			}
			if err != nil {
				recordCount(ctx, stepEventDroppedMetricName, 1)
			}
			end(err)
		}()

		if deliveryErr != nil {
			err = deliveryErr
			log.WithError(deliveryErr).Warn("step event delivery failed")
			return
		}

		log := log
		if event != nil {
			log = log.WithFields(logrus.Fields{
				"event": event.Id,
				"delta": event.Steps,
			})
		}

		total, err := HandleStepEvent(ctx, store, event)
		if err != nil {
			log.WithError(err).Warn("dropping step event")
			return
		}

		log.WithField("total", total).Debugf("+%d steps, today's total is %d", event.Steps, total)

		metrics.RecordEvent(ctx, stepEventDeliveredEventName, map[string]interface{}{
			"delta": event.Steps,
			"total": total,
		})
	}
}

// DefineTask binds the step event handler to TaskName. Call it once at process
// start, before the scheduler begins delivering, so that deliveries resumed
// after a restart find their handler.
func DefineTask(scheduler task.Scheduler, store *counter.Store) error {
	return scheduler.Define(TaskName, NewTaskHandler(store))
}
