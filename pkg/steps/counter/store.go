package counter

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/step-tracker/pkg/kv"
	"github.com/code-payments/step-tracker/pkg/metrics"
	"github.com/code-payments/step-tracker/pkg/steps"
	"github.com/code-payments/step-tracker/pkg/sync"
)

const (
	metricsStructName = "counter.store"
)

var (
	ErrNotFound       = errors.New("no step count recorded for day")
	ErrInvalidCount   = errors.New("step count must be non-negative")
	ErrDayRolledOver  = errors.New("day has rolled over")
	ErrMalformedCount = errors.New("stored step count is malformed")
)

// Option configures a Store
type Option func(*Store)

// WithClock overrides the source of the current time
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLocation overrides the timezone used to partition days
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		s.loc = loc
	}
}

// Store is the day-partitioned step counter. It is the only component that
// reads or writes step counts in the underlying kv.Store.
//
// Writes are serialized per day key within this process. Other processes
// sharing the same kv.Store may still race; reconciliation repairs any update
// lost that way.
type Store struct {
	log  *logrus.Entry
	conf *conf
	kv   kv.Store

	locks *sync.StripedLock
	now   func() time.Time
	loc   *time.Location
}

func NewStore(kvStore kv.Store, configProvider ConfigProvider, opts ...Option) *Store {
	conf := configProvider()

	s := &Store{
		log:   logrus.StandardLogger().WithField("type", "steps/counter"),
		conf:  conf,
		kv:    kvStore,
		locks: sync.NewStripedLock(uint(conf.lockStripes.Get(context.Background()))),
		now:   time.Now,
		loc:   time.Local,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Now returns the store's notion of the current time
func (s *Store) Now() time.Time {
	return s.now()
}

// Location returns the timezone days are partitioned in
func (s *Store) Location() *time.Location {
	return s.loc
}

// TodayKey returns the storage key for the current local day
func (s *Store) TodayKey(ctx context.Context) string {
	return s.keyFor(ctx, s.now())
}

// GetToday returns today's count, or 0 when nothing has been recorded yet.
// Read failures and corrupt values are logged and reported as 0.
func (s *Store) GetToday(ctx context.Context) int64 {
	key := s.TodayKey(ctx)

	log := s.log.WithFields(logrus.Fields{
		"method": "GetToday",
		"key":    key,
	})

	count, err := s.read(ctx, key)
	switch err {
	case nil:
		return count
	case kv.ErrNotFound:
		return 0
	default:
		log.WithError(err).Warn("failure reading today's step count, reporting zero")
		return 0
	}
}

// AddToday adds delta to today's count and returns the new total. An absent
// or corrupt stored value counts as 0.
func (s *Store) AddToday(ctx context.Context, delta int64) (int64, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "AddToday")
	defer tracer.End()

	key := s.TodayKey(ctx)

	log := s.log.WithFields(logrus.Fields{
		"method": "AddToday",
		"key":    key,
		"delta":  delta,
	})

	lock := s.locks.GetString(key)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.read(ctx, key)
	switch errors.Cause(err) {
	case nil:
	case kv.ErrNotFound:
		current = 0
	case ErrMalformedCount:
		log.WithError(err).Warn("overwriting malformed step count")
		current = 0
	default:
		tracer.OnError(err)
		return 0, err
	}

	updated := current + delta
	if updated < 0 {
		return 0, ErrInvalidCount
	}

	if err := s.write(ctx, key, updated); err != nil {
		tracer.OnError(err)
		return 0, err
	}

	return updated, nil
}

// SetToday unconditionally overwrites today's count
func (s *Store) SetToday(ctx context.Context, value int64) error {
	return s.SetTodayFor(ctx, s.now(), value)
}

// SetTodayFor overwrites today's count with a value computed as of asOf. When
// asOf falls on a day other than today, nothing is written and
// ErrDayRolledOver is returned, so a value computed before local midnight
// never lands in the new day's counter.
func (s *Store) SetTodayFor(ctx context.Context, asOf time.Time, value int64) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "SetToday")
	defer tracer.End()

	if value < 0 {
		return ErrInvalidCount
	}

	key := s.TodayKey(ctx)
	if s.keyFor(ctx, asOf) != key {
		return ErrDayRolledOver
	}

	lock := s.locks.GetString(key)
	lock.Lock()
	defer lock.Unlock()

	err := s.write(ctx, key, value)
	tracer.OnError(err)
	return err
}

// Get returns the record for an arbitrary local day
func (s *Store) Get(ctx context.Context, day time.Time) (*Record, error) {
	count, err := s.read(ctx, s.keyFor(ctx, day))
	if err == kv.ErrNotFound {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return &Record{
		Day:   StartOfDay(day, s.loc),
		Count: count,
	}, nil
}

func (s *Store) keyFor(ctx context.Context, t time.Time) string {
	return keyFor(s.conf.keyPrefix.Get(ctx), t, s.loc)
}

func (s *Store) read(ctx context.Context, key string) (int64, error) {
	value, err := s.kv.Get(ctx, key)
	if err == kv.ErrNotFound {
		return 0, err
	} else if err != nil {
		return 0, errors.Wrapf(steps.ErrStoreIO, "failure reading %s: %v", key, err)
	}

	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil || count < 0 {
		return 0, errors.Wrapf(ErrMalformedCount, "key %s holds %q", key, value)
	}
	return count, nil
}

func (s *Store) write(ctx context.Context, key string, count int64) error {
	err := s.kv.Set(ctx, key, strconv.FormatInt(count, 10))
	if err != nil {
		return errors.Wrapf(steps.ErrStoreIO, "failure writing %s: %v", key, err)
	}
	return nil
}
