package nats

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/code-payments/step-tracker/pkg/steps"
)

// Error codes a sensor bridge replies with
const (
	errorCodeUnavailable      = "unavailable"
	errorCodePermissionDenied = "permission_denied"
)

var errMalformedSteps = errors.New("malformed step count")

type availabilityResponse struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

type permissionResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type watchRequest struct {
	Task    string `json:"task"`
	Subject string `json:"subject"`
}

type watchResponse struct {
	Error string `json:"error,omitempty"`
}

type historyRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type historyResponse struct {
	Steps json.RawMessage `json:"steps"`
	Error string          `json:"error,omitempty"`
}

type eventMessage struct {
	Id    string          `json:"id"`
	Steps json.RawMessage `json:"steps"`
	Time  time.Time       `json:"time"`
}

// decodeSteps accepts a JSON number holding a non-negative integral value.
// Bridges on some platforms report counts as floats, so 12.0 is accepted but
// 12.5, strings, null and out of range values are not.
func decodeSteps(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return 0, errMalformedSteps
	}

	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return 0, errMalformedSteps
	}

	if value, err := strconv.ParseInt(number.String(), 10, 64); err == nil {
		if value < 0 {
			return 0, errMalformedSteps
		}
		return value, nil
	}

	value, err := number.Float64()
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 || value != math.Trunc(value) || value >= math.MaxInt64 {
		return 0, errMalformedSteps
	}
	return int64(value), nil
}

func decodeEvent(data []byte) (*steps.StepEvent, error) {
	var msg eventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrap(err, "malformed step event")
	}

	count, err := decodeSteps(msg.Steps)
	if err != nil {
		return nil, errors.Wrap(err, "malformed step event")
	}

	id := msg.Id
	if len(id) == 0 {
		id = uuid.New().String()
	}

	return &steps.StepEvent{
		Id:    id,
		Steps: count,
		Time:  msg.Time,
	}, nil
}

func toError(code string) error {
	switch code {
	case "":
		return nil
	case errorCodeUnavailable:
		return steps.ErrSensorUnavailable
	case errorCodePermissionDenied:
		return steps.ErrPermissionDenied
	}
	return errors.New(code)
}
