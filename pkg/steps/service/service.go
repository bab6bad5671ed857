// Package service wires the step tracking components into a runnable app.
package service

import (
	"context"
	"database/sql"
	"net/http"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	v3 "go.etcd.io/etcd/client/v3"

	"github.com/code-payments/step-tracker/pkg/app"
	pg "github.com/code-payments/step-tracker/pkg/database/postgres"
	"github.com/code-payments/step-tracker/pkg/database/sqlite"
	"github.com/code-payments/step-tracker/pkg/kv"
	kv_etcd "github.com/code-payments/step-tracker/pkg/kv/etcd"
	kv_memory "github.com/code-payments/step-tracker/pkg/kv/memory"
	kv_nats "github.com/code-payments/step-tracker/pkg/kv/nats"
	kv_postgres "github.com/code-payments/step-tracker/pkg/kv/postgres"
	kv_sqlite "github.com/code-payments/step-tracker/pkg/kv/sqlite"
	"github.com/code-payments/step-tracker/pkg/metrics"
	"github.com/code-payments/step-tracker/pkg/steps/appstate"
	"github.com/code-payments/step-tracker/pkg/steps/background"
	"github.com/code-payments/step-tracker/pkg/steps/counter"
	"github.com/code-payments/step-tracker/pkg/steps/reconcile"
	"github.com/code-payments/step-tracker/pkg/steps/sensor"
	sensor_memory "github.com/code-payments/step-tracker/pkg/steps/sensor/memory"
	sensor_nats "github.com/code-payments/step-tracker/pkg/steps/sensor/nats"
	steps_http "github.com/code-payments/step-tracker/pkg/steps/server/http"
	"github.com/code-payments/step-tracker/pkg/steps/task"
	task_memory "github.com/code-payments/step-tracker/pkg/steps/task/memory"
	"github.com/code-payments/step-tracker/pkg/steps/tracker"
)

// Service is an app.App serving step tracking over HTTP
type Service struct {
	log *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closers []func() error

	natsConn *nats.Conn

	coordinator *tracker.Coordinator
	poller      *appstate.Poller
	server      *steps_http.Server

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	stopOnce     sync.Once
}

var _ app.App = (*Service)(nil)

func New() *Service {
	return &Service{
		log:        logrus.StandardLogger().WithField("type", "steps/service"),
		shutdownCh: make(chan struct{}),
	}
}

// Init builds every component from config and starts tracking
func (s *Service) Init(raw app.Config, metricsProvider *newrelic.Application) error {
	log := s.log.WithField("method", "Init")

	config, err := DecodeConfig(raw)
	if err != nil {
		return err
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	if metricsProvider != nil {
		s.ctx = metrics.NewContext(s.ctx, metricsProvider)
	}

	if err := s.init(config); err != nil {
		s.Stop()
		return err
	}

	log.WithFields(logrus.Fields{
		"kv_backend":     config.KVBackend,
		"sensor_backend": config.SensorBackend,
	}).Info("step tracker initialized")

	return nil
}

func (s *Service) init(config *Config) error {
	kvStore, err := s.newKVStore(config)
	if err != nil {
		return errors.Wrap(err, "failed to initialize kv store")
	}

	var (
		scheduler      task.Scheduler
		stepSensor     sensor.Sensor
		walker         steps_http.Walker
		startScheduler func(ctx context.Context) error
	)

	switch config.SensorBackend {
	case SensorBackendNats:
		conn, err := s.connectNats(config)
		if err != nil {
			return err
		}

		js, err := jetstream.New(conn)
		if err != nil {
			return errors.Wrap(err, "failed to initialize jetstream")
		}

		natsScheduler := sensor_nats.NewScheduler(s.ctx, js, sensor_nats.WithEnvConfigs())
		scheduler = natsScheduler
		stepSensor = sensor_nats.NewSensor(conn, natsScheduler, sensor_nats.WithEnvConfigs())
		startScheduler = natsScheduler.Start
	default:
		memoryScheduler := task_memory.New()
		memorySensor := sensor_memory.New(memoryScheduler)
		scheduler = memoryScheduler
		stepSensor = memorySensor
		walker = memorySensor
	}

	store := counter.NewStore(kvStore, counter.WithEnvConfigs())
	engine := reconcile.NewEngine(stepSensor, store, reconcile.WithEnvConfigs())

	if err := background.DefineTask(scheduler, store); err != nil {
		return errors.Wrap(err, "failed to define background task")
	}

	listener := background.NewListener(stepSensor, scheduler)
	s.coordinator = tracker.NewCoordinator(stepSensor, store, engine, listener)
	s.poller = appstate.NewPoller(s.coordinator, appstate.WithEnvConfigs())

	var serverOpts []steps_http.Option
	if walker != nil {
		serverOpts = append(serverOpts, steps_http.WithWalker(walker))
	}
	s.server = steps_http.NewServer(s.coordinator, s.poller, steps_http.WithEnvConfigs(), serverOpts...)

	if startScheduler != nil {
		s.goUntilDone("scheduler", startScheduler)
	}

	if !s.coordinator.Init(s.ctx) {
		s.log.WithField("state", s.coordinator.State().String()).Warn("step tracking is not active")
	}

	s.goUntilDone("poller", s.poller.Start)

	return nil
}

func (s *Service) newKVStore(config *Config) (kv.Store, error) {
	switch config.KVBackend {
	case KVBackendMemory:
		return kv_memory.New(), nil
	case KVBackendSqlite:
		db, err := sqlite.Open(config.SqlitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		return kv_sqlite.New(db)
	case KVBackendPostgres:
		db, err := pg.New(&pg.Config{
			Host:               config.Postgres.Host,
			Port:               config.Postgres.Port,
			User:               config.Postgres.User,
			Password:           config.Postgres.Password,
			DbName:             config.Postgres.DbName,
			MaxOpenConnections: config.Postgres.MaxOpenConnections,
			MaxIdleConnections: config.Postgres.MaxIdleConnections,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		return kv_postgres.New(db), nil
	case KVBackendEtcd:
		client, err := v3.New(v3.Config{
			Endpoints:   config.EtcdEndpoints,
			DialTimeout: config.EtcdDialTimeout,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to etcd")
		}
		s.closers = append(s.closers, client.Close)
		return kv_etcd.New(client, config.EtcdPrefix), nil
	case KVBackendNats:
		conn, err := s.connectNats(config)
		if err != nil {
			return nil, err
		}
		js, err := jetstream.New(conn)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize jetstream")
		}
		return kv_nats.New(s.ctx, js, config.NatsKVBucket)
	default:
		return nil, errors.Errorf("unknown kv backend %q", config.KVBackend)
	}
}

// connectNats returns a connection shared by every nats backed component
func (s *Service) connectNats(config *Config) (*nats.Conn, error) {
	if s.natsConn != nil {
		return s.natsConn, nil
	}

	conn, err := nats.Connect(
		config.NatsURL,
		nats.Name("step-tracker"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to nats")
	}

	s.natsConn = conn
	s.closers = append(s.closers, func() error {
		conn.Close()
		return nil
	})
	return conn, nil
}

// goUntilDone runs fn in the background. An unexpected return shuts the
// service down.
func (s *Service) goUntilDone(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		err := fn(s.ctx)
		if s.ctx.Err() != nil {
			return
		}

		s.log.WithError(err).WithField("component", name).Error("background component stopped unexpectedly")
		s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	}()
}

func (s *Service) Handler() http.Handler {
	return s.server.Router()
}

func (s *Service) Collectors() []prometheus.Collector {
	return s.poller.Collectors()
}

// Coordinator exposes the tracker, mainly for local tooling
func (s *Service) Coordinator() *tracker.Coordinator {
	return s.coordinator
}

func (s *Service) ShutdownChan() <-chan struct{} {
	return s.shutdownCh
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()

		for i := len(s.closers) - 1; i >= 0; i-- {
			if err := s.closers[i](); err != nil && !errors.Is(err, sql.ErrConnDone) {
				s.log.WithError(err).Warn("failure closing resource")
			}
		}
	})
}
