// Package schedule computes bookable appointment slots by subtracting busy
// calendar intervals from the studio's daily working window.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/beryozskin/studio-bot/pkg/logging"
)

var scheduleTracer = otel.Tracer("studio.internal.schedule")

// ErrCalendarUnavailable indicates the calendar backend could not be queried.
// A day with no free slots is an empty result, never this error.
var ErrCalendarUnavailable = errors.New("calendar unavailable")

// BusyInterval is a half-open occupied range [Start, End) on the calendar.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// BusySource lists busy intervals between from and to. Implementations must
// exclude all-day events that carry no time of day.
type BusySource interface {
	BusyIntervals(ctx context.Context, from, to time.Time) ([]BusyInterval, error)
}

// Resolver computes free start times for a calendar date.
type Resolver struct {
	source      BusySource
	loc         *time.Location
	dayStart    time.Duration // offset from midnight
	dayEnd      time.Duration
	granularity time.Duration
	blockWidth  time.Duration
	now         func() time.Time
	logger      *logging.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithNow overrides the wall-clock source. Used in tests.
func WithNow(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver constructs a Resolver. dayStart and dayEnd are "HH:MM" strings
// bounding the working window; blockWidth is the fixed interval tested against
// busy ranges regardless of the selected service's duration.
func NewResolver(source BusySource, loc *time.Location, dayStart, dayEnd string, granularity, blockWidth time.Duration, logger *logging.Logger, opts ...Option) (*Resolver, error) {
	if source == nil {
		return nil, fmt.Errorf("schedule: busy source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	startOffset, err := parseClock(dayStart)
	if err != nil {
		return nil, fmt.Errorf("schedule: day start: %w", err)
	}
	endOffset, err := parseClock(dayEnd)
	if err != nil {
		return nil, fmt.Errorf("schedule: day end: %w", err)
	}
	if endOffset <= startOffset {
		return nil, fmt.Errorf("schedule: working window %s-%s is empty", dayStart, dayEnd)
	}
	if granularity <= 0 || blockWidth <= 0 {
		return nil, fmt.Errorf("schedule: granularity and block width must be positive")
	}
	r := &Resolver{
		source:      source,
		loc:         loc,
		dayStart:    startOffset,
		dayEnd:      endOffset,
		granularity: granularity,
		blockWidth:  blockWidth,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the ordered free start times for the given calendar date.
// Each start t is free when [t, t+blockWidth) overlaps no busy interval and t
// is strictly in the future. The block width is fixed; it does not track the
// selected service's duration.
func (r *Resolver) Resolve(ctx context.Context, date time.Time) ([]time.Time, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("studio.date", date.Format("2006-01-02")))

	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, r.loc)
	windowStart := midnight.Add(r.dayStart)
	windowEnd := midnight.Add(r.dayEnd)

	busy, err := r.source.BusyIntervals(ctx, windowStart, windowEnd)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("schedule: busy intervals for %s: %w",
			date.Format("2006-01-02"), errors.Join(ErrCalendarUnavailable, err))
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	now := r.now()
	var free []time.Time
	for t := windowStart; !t.Add(r.blockWidth).After(windowEnd); t = t.Add(r.granularity) {
		if !t.After(now) {
			continue
		}
		if overlapsAny(busy, t, t.Add(r.blockWidth)) {
			continue
		}
		free = append(free, t)
	}

	r.logger.Debug("resolved free slots",
		"date", date.Format("2006-01-02"),
		"busy_count", len(busy),
		"free_count", len(free),
	)
	return free, nil
}

func overlapsAny(busy []BusyInterval, start, end time.Time) bool {
	for _, b := range busy {
		// Half-open overlap: NOT (end <= b.Start OR start >= b.End).
		if !(!end.After(b.Start) || !start.Before(b.End)) {
			return true
		}
	}
	return false
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
