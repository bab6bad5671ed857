// Package tracker coordinates permission acquisition, reconciliation and the
// background subscription over the lifetime of the application.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/step-tracker/pkg/metrics"
	"github.com/code-payments/step-tracker/pkg/steps"
	"github.com/code-payments/step-tracker/pkg/steps/background"
	"github.com/code-payments/step-tracker/pkg/steps/counter"
	"github.com/code-payments/step-tracker/pkg/steps/reconcile"
	"github.com/code-payments/step-tracker/pkg/steps/sensor"
)

const stateTransitionEventName = "StepTrackerStateTransition"

// Coordinator is the only entry point the application layer needs. It never
// writes step counts itself; writes happen through the reconciliation engine
// and the background task.
type Coordinator struct {
	log      *logrus.Entry
	sensor   sensor.Sensor
	store    *counter.Store
	engine   *reconcile.Engine
	listener *background.Listener

	initMu sync.Mutex

	stateMu  sync.RWMutex
	state    State
	appState AppState
}

func NewCoordinator(
	sensor sensor.Sensor,
	store *counter.Store,
	engine *reconcile.Engine,
	listener *background.Listener,
) *Coordinator {
	return &Coordinator{
		log:      logrus.StandardLogger().WithField("type", "steps/tracker"),
		sensor:   sensor,
		store:    store,
		engine:   engine,
		listener: listener,
		state:    StateUninitialized,
		appState: AppStateActive,
	}
}

// Init acquires permission, reconciles today's count and registers the
// background subscription. It returns true once tracking is fully active.
//
// Init may be retried from any state. From StateDenied or StateUnavailable it
// asks the sensor again; from StateActive it re-runs the grant path, which is
// safe since registration is idempotent.
func (c *Coordinator) Init(ctx context.Context) bool {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	log := c.log.WithField("method", "Init")
	log.Info("initializing step tracking")

	c.setState(ctx, StateRequestingPermission)

	available, err := c.sensor.IsAvailable(ctx)
	if err != nil {
		log.WithError(err).Warn("failure checking sensor availability")
		c.setState(ctx, StateUnavailable)
		return false
	} else if !available {
		log.Warn("step sensor is not available on this device")
		c.setState(ctx, StateUnavailable)
		return false
	}

	permission, err := c.sensor.RequestPermission(ctx)
	if err != nil {
		log.WithError(err).Warn("failure requesting motion permission")
		c.setState(ctx, StateDenied)
		return false
	}

	switch permission {
	case steps.PermissionStatusGranted:
	case steps.PermissionStatusUnavailable:
		log.Warn("step sensor became unavailable while requesting permission")
		c.setState(ctx, StateUnavailable)
		return false
	default:
		log.WithField("permission", permission.String()).Warn("motion permission not granted")
		c.setState(ctx, StateDenied)
		return false
	}

	log.Info("permission granted, reconciling and registering background task")

	// Reconciliation runs before registration so deltas delivered from here on
	// build on the authoritative count
	c.engine.Reconcile(ctx)
	c.setState(ctx, StateActive)

	if err := c.listener.Register(ctx); err != nil {
		log.WithError(err).Warn("failure registering background task")
		return false
	}

	return true
}

// ReconcileSteps runs a reconciliation pass regardless of state
func (c *Coordinator) ReconcileSteps(ctx context.Context) *reconcile.Result {
	return c.engine.Reconcile(ctx)
}

// IsTracking reports whether the background subscription is registered
func (c *Coordinator) IsTracking(ctx context.Context) bool {
	registered, err := c.listener.IsRegistered(ctx)
	if err != nil {
		c.log.WithField("method", "IsTracking").WithError(err).Warn("failure checking task registration")
		return false
	}
	return registered
}

// Status is computed on every call from the sensor and scheduler
func (c *Coordinator) Status(ctx context.Context) steps.TrackingStatus {
	log := c.log.WithField("method", "Status")

	available, err := c.sensor.IsAvailable(ctx)
	if err != nil {
		log.WithError(err).Warn("failure checking sensor availability")
		available = false
	}

	if !available {
		return steps.TrackingStatus{
			Available:  false,
			Permission: steps.PermissionStatusUnavailable,
			Listening:  false,
		}
	}

	permission, err := c.sensor.GetPermissionStatus(ctx)
	if err != nil {
		log.WithError(err).Warn("failure getting permission status")
		permission = steps.PermissionStatusUnknown
	}

	return steps.TrackingStatus{
		Available:  true,
		Permission: permission,
		Listening:  c.IsTracking(ctx),
	}
}

// GetTodaySteps reads today's stored count without touching the sensor
func (c *Coordinator) GetTodaySteps(ctx context.Context) int64 {
	return c.store.GetToday(ctx)
}

// Today returns local midnight of the current day
func (c *Coordinator) Today() time.Time {
	return counter.StartOfDay(c.store.Now(), c.store.Location())
}

// HandleAppStateChange reacts to the application's foreground state. Becoming
// active while tracking is active triggers reconciliation, whose result is
// returned. Otherwise nothing happens and nil is returned.
func (c *Coordinator) HandleAppStateChange(ctx context.Context, next AppState) *reconcile.Result {
	c.stateMu.Lock()
	previous := c.appState
	c.appState = next
	state := c.state
	c.stateMu.Unlock()

	c.log.WithFields(logrus.Fields{
		"method":   "HandleAppStateChange",
		"previous": previous,
		"next":     next,
		"state":    state.String(),
	}).Debug("app state changed")

	if next != AppStateActive || state != StateActive {
		return nil
	}

	return c.engine.Reconcile(ctx)
}

// StopTracking unregisters the background subscription. The coordinator stays
// in its current state, so Init registers it again.
func (c *Coordinator) StopTracking(ctx context.Context) error {
	return c.listener.Unregister(ctx)
}

// State returns the current lifecycle state
func (c *Coordinator) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	return c.state
}

// AppState returns the most recently reported application state
func (c *Coordinator) AppState() AppState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	return c.appState
}

func (c *Coordinator) setState(ctx context.Context, next State) {
	c.stateMu.Lock()
	previous := c.state
	c.state = next
	c.stateMu.Unlock()

	if previous == next {
		return
	}

	c.log.WithFields(logrus.Fields{
		"from": previous.String(),
		"to":   next.String(),
	}).Info("step tracker state transition")

	metrics.RecordEvent(ctx, stateTransitionEventName, map[string]interface{}{
		"from": previous.String(),
		"to":   next.String(),
	})
}
