// Package reconcile repairs the day counter against the sensor's own history,
// which is treated as ground truth for the current day.
package reconcile

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/step-tracker/pkg/metrics"
	"github.com/code-payments/step-tracker/pkg/retry"
	"github.com/code-payments/step-tracker/pkg/retry/backoff"
	"github.com/code-payments/step-tracker/pkg/steps"
	"github.com/code-payments/step-tracker/pkg/steps/counter"
	"github.com/code-payments/step-tracker/pkg/steps/sensor"
)

const (
	reconciliationEventName      = "StepReconciliation"
	reconciliationDurationMetric = "StepReconciliation.Duration"
)

// Result is the outcome of a single reconciliation pass
type Result struct {
	// Steps is today's count after the pass
	Steps int64

	// Confirmed is true when Steps came from the sensor's history. When false,
	// Steps is the previously stored value and Cause explains why.
	Confirmed bool

	Cause error
}

type Engine struct {
	log    *logrus.Entry
	conf   *conf
	sensor sensor.Sensor
	store  *counter.Store
}

func NewEngine(sensor sensor.Sensor, store *counter.Store, configProvider ConfigProvider) *Engine {
	return &Engine{
		log:    logrus.StandardLogger().WithField("type", "steps/reconcile"),
		conf:   configProvider(),
		sensor: sensor,
		store:  store,
	}
}

// Reconcile overwrites today's counter with the sensor's step total since
// local midnight. On any failure the counter is left untouched and its current
// value is returned instead. It never returns an error.
func (e *Engine) Reconcile(ctx context.Context) *Result {
	log := e.log.WithField("method", "Reconcile")

	tracer := metrics.TraceMethodCall(ctx, "reconcile.Engine", "Reconcile")
	defer tracer.End()

	start := time.Now()
	defer func() {
		metrics.RecordDuration(ctx, reconciliationDurationMetric, time.Since(start))
	}()

	previous := e.store.GetToday(ctx)

	result, err := e.reconcile(ctx)
	if err != nil {
		log.WithError(err).Warn("reconciliation skipped, falling back to stored steps")

		result = &Result{
			Steps: e.store.GetToday(ctx),
			Cause: err,
		}
		tracer.OnError(err)
	} else {
		log.WithFields(logrus.Fields{
			"previous": previous,
			"steps":    result.Steps,
		}).Info("reconciled steps with sensor history")
	}

	tracer.AddAttribute("confirmed", result.Confirmed)
	metrics.RecordEvent(ctx, reconciliationEventName, map[string]interface{}{
		"confirmed": result.Confirmed,
		"steps":     result.Steps,
		"previous":  previous,
	})

	return result
}

func (e *Engine) reconcile(ctx context.Context) (*Result, error) {
	now := e.store.Now()
	midnight := counter.StartOfDay(now, e.store.Location())

	history, err := e.queryHistory(ctx, midnight, now)
	if err != nil {
		return nil, err
	}

	if err := e.store.SetTodayFor(ctx, now, history.Steps); err != nil {
		return nil, errors.Wrap(err, "error overwriting today's steps")
	}

	return &Result{
		Steps:     history.Steps,
		Confirmed: true,
	}, nil
}

func (e *Engine) queryHistory(ctx context.Context, start, end time.Time) (*steps.HistoryResult, error) {
	attempts := e.conf.historyRetryAttempts.Get(ctx)
	delay := e.conf.historyRetryBackoff.Get(ctx)

	var history *steps.HistoryResult
	_, err := retry.RetryWithContext(
		ctx,
		func(ctx context.Context) error {
			var err error
			history, err = e.sensor.QueryStepHistory(ctx, start, end)
			if err != nil {
				return err
			}

			if history == nil {
				return errors.Wrap(steps.ErrHistoryQueryFailed, "sensor returned no history")
			}

			if err := history.Validate(); err != nil {
				return errors.Wrap(steps.ErrHistoryQueryFailed, err.Error())
			}

			return nil
		},
		retry.NonRetriableErrors(steps.ErrSensorUnavailable, steps.ErrPermissionDenied),
		retry.Limit(uint(attempts)),
		retry.BackoffWithContext(ctx, backoff.Constant(delay), delay),
	)
	if err != nil {
		return nil, err
	}

	return history, nil
}
