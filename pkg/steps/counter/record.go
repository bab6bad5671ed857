package counter

import (
	"time"

	"github.com/pkg/errors"
)

const dayLayout = "2006-01-02"

// Record is the persisted step count for a single local calendar day
type Record struct {
	Day   time.Time
	Count int64
}

func (r *Record) Validate() error {
	if r.Day.IsZero() {
		return errors.New("day is required")
	}

	if r.Count < 0 {
		return ErrInvalidCount
	}

	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Day:   r.Day,
		Count: r.Count,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Day = r.Day
	dst.Count = r.Count
}

// DayString is the record's day in YYYY-MM-DD form
func (r *Record) DayString() string {
	return r.Day.Format(dayLayout)
}

// KeyFor returns the storage key for the calendar day t falls on in loc. Two
// instants on the same local day always share a key, and local midnight is the
// only boundary at which the key changes.
func KeyFor(t time.Time, loc *time.Location) string {
	return keyFor(DefaultKeyPrefix, t, loc)
}

// StartOfDay returns local midnight of the day t falls on in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}

	local := t.In(loc)
	year, month, day := local.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func keyFor(prefix string, t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return prefix + t.In(loc).Format(dayLayout)
}
