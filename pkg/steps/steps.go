// Package steps holds the types shared by the step tracking reconciliation
// core: sensor events and history, permission and tracking status, and the
// error taxonomy used across its components.
package steps

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// StepEvent is a single step delta delivered by the sensor's event stream
type StepEvent struct {
	Id    string
	Steps int64
	Time  time.Time
}

func (e *StepEvent) Validate() error {
	if e.Steps < 0 {
		return errors.Errorf("step delta must be non-negative, got %d", e.Steps)
	}
	return nil
}

func (e *StepEvent) Clone() StepEvent {
	return StepEvent{
		Id:    e.Id,
		Steps: e.Steps,
		Time:  e.Time,
	}
}

// HistoryResult is the sensor's authoritative step total over [Start, End)
type HistoryResult struct {
	Start time.Time
	End   time.Time
	Steps int64
}

func (r *HistoryResult) Validate() error {
	if r.Steps < 0 {
		return errors.Errorf("history step count must be non-negative, got %d", r.Steps)
	}

	if r.End.Before(r.Start) {
		return errors.New("history end precedes start")
	}

	return nil
}

type PermissionStatus uint8

const (
	PermissionStatusUnknown PermissionStatus = iota
	PermissionStatusGranted
	PermissionStatusDenied
	PermissionStatusUnavailable
)

func (s PermissionStatus) String() string {
	switch s {
	case PermissionStatusGranted:
		return "granted"
	case PermissionStatusDenied:
		return "denied"
	case PermissionStatusUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// ParsePermissionStatus is the inverse of PermissionStatus.String. Anything
// unrecognized maps to PermissionStatusUnknown.
func ParsePermissionStatus(value string) PermissionStatus {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "granted":
		return PermissionStatusGranted
	case "denied":
		return PermissionStatusDenied
	case "unavailable":
		return PermissionStatusUnavailable
	}
	return PermissionStatusUnknown
}

// TrackingStatus is derived on demand for display and is never persisted
type TrackingStatus struct {
	Available  bool
	Permission PermissionStatus
	Listening  bool
}
