package nats

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/step-tracker/pkg/retry"
	"github.com/code-payments/step-tracker/pkg/retry/backoff"
	"github.com/code-payments/step-tracker/pkg/steps/task"
)

// Durable consumer names cannot contain subject tokens or whitespace
var taskNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Scheduler is a task.Scheduler backed by JetStream durable consumers. A
// registration is the durable consumer itself, so it survives restarts of
// this process and Start resumes delivery for every defined task.
type Scheduler struct {
	log  *logrus.Entry
	conf *conf
	js   jetstream.JetStream

	mu        sync.Mutex
	baseCtx   context.Context
	handlers  map[string]task.Handler
	consuming map[string]jetstream.ConsumeContext
}

var _ task.Scheduler = (*Scheduler)(nil)

// NewScheduler returns a scheduler whose handlers run with ctx, whether
// delivery starts from Register or from Start.
func NewScheduler(ctx context.Context, js jetstream.JetStream, configProvider ConfigProvider) *Scheduler {
	return &Scheduler{
		log:       logrus.StandardLogger().WithField("type", "steps/task/nats"),
		conf:      configProvider(),
		js:        js,
		baseCtx:   ctx,
		handlers:  make(map[string]task.Handler),
		consuming: make(map[string]jetstream.ConsumeContext),
	}
}

// Define implements task.Scheduler.Define
func (s *Scheduler) Define(name string, handler task.Handler) error {
	if !taskNamePattern.MatchString(name) {
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
func (s *Scheduler) Register(ctx context.Context, name string) error {
	if !taskNamePattern.MatchString(name) {
		return task.ErrInvalidTaskName
	}

	if err := s.ensureStream(ctx); err != nil {
		return err
	}

	consumer, err := s.js.CreateOrUpdateConsumer(ctx, s.conf.streamName.Get(ctx), jetstream.ConsumerConfig{
		Durable:       name,
		FilterSubject: eventSubject(s.conf.subjectPrefix.Get(ctx), name),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       s.conf.ackWait.Get(ctx),
		// An existing durable keeps its ack floor, so this only applies to
		// a fresh registration, which must not replay earlier deltas
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create consumer for %s", name)
	}

	return s.consume(name, consumer)
}

// IsRegistered implements task.Scheduler.IsRegistered
func (s *Scheduler) IsRegistered(ctx context.Context, name string) (bool, error) {
	if !taskNamePattern.MatchString(name) {
		return false, nil
	}

	_, err := s.js.Consumer(ctx, s.conf.streamName.Get(ctx), name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, jetstream.ErrConsumerNotFound), errors.Is(err, jetstream.ErrStreamNotFound):
		return false, nil
	default:
		return false, errors.Wrapf(err, "failed to get consumer for %s", name)
	}
}

// Unregister implements task.Scheduler.Unregister
func (s *Scheduler) Unregister(ctx context.Context, name string) error {
	if !taskNamePattern.MatchString(name) {
		return nil
	}

	s.mu.Lock()
	if consumeCtx, ok := s.consuming[name]; ok {
		consumeCtx.Stop()
		delete(s.consuming, name)
	}
	s.mu.Unlock()

	err := s.js.DeleteConsumer(ctx, s.conf.streamName.Get(ctx), name)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jetstream.ErrConsumerNotFound), errors.Is(err, jetstream.ErrStreamNotFound):
		return nil
	default:
		return errors.Wrapf(err, "failed to delete consumer for %s", name)
	}
}

// Start resumes delivery for every defined task that is still registered,
// then blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	log := s.log.WithField("method", "Start")

	s.mu.Lock()
	var names []string
	for name := range s.handlers {
		names = append(names, name)
	}
	s.mu.Unlock()

	_, err := retry.RetryWithContext(
		ctx,
		s.ensureStream,
		retry.Limit(5),
		retry.BackoffWithContext(ctx, backoff.BinaryExponential(100*time.Millisecond), 5*time.Second),
	)
	if err != nil {
		return err
	}

	for _, name := range names {
		consumer, err := s.js.Consumer(ctx, s.conf.streamName.Get(ctx), name)
		if errors.Is(err, jetstream.ErrConsumerNotFound) {
			log.WithField("task", name).Debug("task not registered, nothing to resume")
			continue
		} else if err != nil {
			return errors.Wrapf(err, "failed to get consumer for %s", name)
		}

		if err := s.consume(name, consumer); err != nil {
			return err
		}
		log.WithField("task", name).Info("resumed task delivery")
	}

	<-ctx.Done()

	s.Stop()
	return ctx.Err()
}

// Stop halts delivery to this process without touching registrations
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, consumeCtx := range s.consuming {
		consumeCtx.Stop()
		delete(s.consuming, name)
	}
}

func (s *Scheduler) consume(name string, consumer jetstream.Consumer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handler, defined := s.handlers[name]
	if !defined {
		// The registration persists; delivery starts once a process defines it
		return nil
	}

	if _, ok := s.consuming[name]; ok {
		return nil
	}

	log := s.log.WithField("task", name)
	baseCtx := s.baseCtx

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		event, err := decodeEvent(msg.Data())
		if err != nil {
			log.WithError(err).Warn("received malformed step event")
		}

		handler(baseCtx, event, err)

		// Handlers drop what they cannot record, so redelivery never helps
		if err := msg.Ack(); err != nil {
			log.WithError(err).Warn("failure acking step event")
		}
	})
	if err != nil {
		return errors.Wrapf(err, "failed to consume for %s", name)
	}

	s.consuming[name] = consumeCtx
	return nil
}

func (s *Scheduler) ensureStream(ctx context.Context) error {
	_, err := s.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     s.conf.streamName.Get(ctx),
		Subjects: []string{s.conf.subjectPrefix.Get(ctx) + ".events.>"},
		MaxAge:   s.conf.streamMaxAge.Get(ctx),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create event stream")
	}
	return nil
}
