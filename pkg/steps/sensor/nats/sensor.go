// Package nats bridges the sensor and scheduler capabilities to a device-side
// sensor agent over NATS. Queries use request/reply; step events are published
// by the agent into a JetStream stream and consumed through durable consumers
// named after the scheduler task, so delivery resumes after a restart.
package nats

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/step-tracker/pkg/steps"
	"github.com/code-payments/step-tracker/pkg/steps/sensor"
	"github.com/code-payments/step-tracker/pkg/steps/task"
)

type Sensor struct {
	log       *logrus.Entry
	conf      *conf
	conn      *nats.Conn
	scheduler task.Scheduler
}

var _ sensor.Sensor = (*Sensor)(nil)

func NewSensor(conn *nats.Conn, scheduler task.Scheduler, configProvider ConfigProvider) *Sensor {
	return &Sensor{
		log:       logrus.StandardLogger().WithField("type", "steps/sensor/nats"),
		conf:      configProvider(),
		conn:      conn,
		scheduler: scheduler,
	}
}

// IsAvailable implements sensor.Sensor.IsAvailable
func (s *Sensor) IsAvailable(ctx context.Context) (bool, error) {
	var resp availabilityResponse
	if err := s.request(ctx, "available", nil, &resp); err != nil {
		return false, err
	}

	if err := toError(resp.Error); err != nil {
		if errors.Is(err, steps.ErrSensorUnavailable) {
			return false, nil
		}
		return false, err
	}
	return resp.Available, nil
}

// GetPermissionStatus implements sensor.Sensor.GetPermissionStatus
func (s *Sensor) GetPermissionStatus(ctx context.Context) (steps.PermissionStatus, error) {
	return s.permission(ctx, "permission.status")
}

// RequestPermission implements sensor.Sensor.RequestPermission
func (s *Sensor) RequestPermission(ctx context.Context) (steps.PermissionStatus, error) {
	return s.permission(ctx, "permission.request")
}

// SubscribeToStepEvents implements sensor.Sensor.SubscribeToStepEvents
func (s *Sensor) SubscribeToStepEvents(ctx context.Context, taskName string) error {
	req := &watchRequest{
		Task:    taskName,
		Subject: eventSubject(s.conf.subjectPrefix.Get(ctx), taskName),
	}

	var resp watchResponse
	if err := s.request(ctx, "watch", req, &resp); err != nil {
		return err
	}

	if err := toError(resp.Error); err != nil {
		return err
	}

	return s.scheduler.Register(ctx, taskName)
}

// QueryStepHistory implements sensor.Sensor.QueryStepHistory
func (s *Sensor) QueryStepHistory(ctx context.Context, start, end time.Time) (*steps.HistoryResult, error) {
	req := &historyRequest{
		Start: start,
		End:   end,
	}

	var resp historyResponse
	if err := s.request(ctx, "history", req, &resp); err != nil {
		return nil, errors.Wrap(steps.ErrHistoryQueryFailed, err.Error())
	}

	if err := toError(resp.Error); err != nil {
		if errors.Is(err, steps.ErrSensorUnavailable) || errors.Is(err, steps.ErrPermissionDenied) {
			return nil, err
		}
		return nil, errors.Wrap(steps.ErrHistoryQueryFailed, err.Error())
	}

	count, err := decodeSteps(resp.Steps)
	if err != nil {
		return nil, errors.Wrapf(steps.ErrHistoryQueryFailed, "bridge returned %s", string(resp.Steps))
	}

	return &steps.HistoryResult{
		Start: start,
		End:   end,
		Steps: count,
	}, nil
}

func (s *Sensor) permission(ctx context.Context, endpoint string) (steps.PermissionStatus, error) {
	var resp permissionResponse
	if err := s.request(ctx, endpoint, nil, &resp); err != nil {
		return steps.PermissionStatusUnknown, err
	}

	if err := toError(resp.Error); err != nil {
		if errors.Is(err, steps.ErrSensorUnavailable) {
			return steps.PermissionStatusUnavailable, nil
		}
		return steps.PermissionStatusUnknown, err
	}
	return steps.ParsePermissionStatus(resp.Status), nil
}

func (s *Sensor) request(ctx context.Context, endpoint string, req, resp interface{}) error {
	subject := s.conf.subjectPrefix.Get(ctx) + "." + endpoint

	var payload []byte
	if req != nil {
		var err error
		payload, err = json.Marshal(req)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.conf.requestTimeout.Get(ctx))
	defer cancel()

	msg, err := s.conn.RequestWithContext(ctx, subject, payload)
	if err != nil {
		s.log.WithError(err).WithField("subject", subject).Debug("sensor bridge request failed")
		return errors.Wrapf(err, "request to %s failed", subject)
	}

	if err := json.Unmarshal(msg.Data, resp); err != nil {
		return errors.Wrapf(err, "malformed reply from %s", subject)
	}
	return nil
}

func eventSubject(prefix, taskName string) string {
	return prefix + ".events." + taskName
}
