// Package appstate keeps the application layer's view of today's steps fresh
// by re-reading the counter on a fixed schedule. It never blocks on the sensor.
package appstate

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/step-tracker/pkg/steps"
)

const dayLayout = "2006-01-02"

// Source is what the poller reads from. *tracker.Coordinator satisfies it.
type Source interface {
	GetTodaySteps(ctx context.Context) int64
	Status(ctx context.Context) steps.TrackingStatus
	Today() time.Time
}

// Snapshot is the application layer's read-only copy of step state
type Snapshot struct {
	Steps     int64
	Day       string
	UpdatedAt time.Time

	Status          steps.TrackingStatus
	StatusUpdatedAt time.Time
}

type Poller struct {
	log    *logrus.Entry
	conf   *conf
	source Source

	mu       sync.RWMutex
	snapshot Snapshot
	hasSteps bool

	todayStepsGauge prom.GaugeFunc
	listeningGauge  prom.GaugeFunc
}

func NewPoller(source Source, configProvider ConfigProvider) *Poller {
	p := &Poller{
		log:    logrus.StandardLogger().WithField("type", "steps/appstate"),
		conf:   configProvider(),
		source: source,
	}

	p.todayStepsGauge = prom.NewGaugeFunc(prom.GaugeOpts{
		Name: "step_tracker_today_steps",
		Help: "Today's step count as last observed by the application layer",
	}, func() float64 {
		return float64(p.Get().Steps)
	})

	p.listeningGauge = prom.NewGaugeFunc(prom.GaugeOpts{
		Name: "step_tracker_listening",
		Help: "Whether the background step subscription was registered at the last status refresh",
	}, func() float64 {
		if p.Get().Status.Listening {
			return 1
		}
		return 0
	})

	return p
}

// Collectors returns the prometheus collectors exposing the snapshot
func (p *Poller) Collectors() []prom.Collector {
	return []prom.Collector{p.todayStepsGauge, p.listeningGauge}
}

// Start refreshes the snapshot immediately, then on the configured schedules
// until ctx is done
func (p *Poller) Start(ctx context.Context) error {
	log := p.log.WithField("method", "Start")

	c := cron.New(cron.WithLocation(time.Local))

	if _, err := c.AddFunc(p.conf.pollSchedule.Get(ctx), func() { p.RefreshSteps(ctx) }); err != nil {
		return errors.Wrap(err, "invalid poll schedule")
	}

	if _, err := c.AddFunc(p.conf.statusSchedule.Get(ctx), func() { p.RefreshStatus(ctx) }); err != nil {
		return errors.Wrap(err, "invalid status schedule")
	}

	p.RefreshSteps(ctx)
	p.RefreshStatus(ctx)

	c.Start()
	log.Debug("app state poller started")

	<-ctx.Done()

	<-c.Stop().Done()
	log.Debug("app state poller stopped")

	return ctx.Err()
}

// RefreshSteps re-reads today's count into the snapshot
func (p *Poller) RefreshSteps(ctx context.Context) {
	p.Publish(p.source.GetTodaySteps(ctx))
}

// Publish records count as today's steps, as after a manual refresh
func (p *Poller) Publish(count int64) {
	day := p.source.Today().Format(dayLayout)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hasSteps && (p.snapshot.Steps != count || p.snapshot.Day != day) {
		p.log.WithFields(logrus.Fields{
			"day":   day,
			"steps": count,
		}).Trace("step count changed")
	}

	p.snapshot.Steps = count
	p.snapshot.Day = day
	p.snapshot.UpdatedAt = time.Now()
	p.hasSteps = true
}

// RefreshStatus recomputes tracking status into the snapshot
func (p *Poller) RefreshStatus(ctx context.Context) {
	status := p.source.Status(ctx)

	p.mu.Lock()
	p.snapshot.Status = status
	p.snapshot.StatusUpdatedAt = time.Now()
	p.mu.Unlock()
}

// Get returns a copy of the current snapshot
func (p *Poller) Get() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.snapshot
}

// HasSteps reports whether the snapshot holds a step count yet
func (p *Poller) HasSteps() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.hasSteps
}
