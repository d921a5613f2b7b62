package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/beryozskin/studio-bot/internal/observability/metrics"
	"github.com/beryozskin/studio-bot/pkg/logging"
)

var bookingTracer = otel.Tracer("studio.internal.booking")

// Event is a calendar event at the backend's interface boundary.
type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Calendar is the external calendar backend. It is the single source of truth
// for busy intervals; no local locking is layered on top of it.
type Calendar interface {
	Insert(ctx context.Context, ev Event) (string, error)
	Upcoming(ctx context.Context, from time.Time) ([]Event, error)
	Get(ctx context.Context, id string) (Event, error)
	Delete(ctx context.Context, id string) error
}

// Ledger appends one row per reservation to the external tabular ledger.
type Ledger interface {
	Append(ctx context.Context, row []string) error
}

// OperatorNotifier tells the operator channel about bookings and
// cancellations.
type OperatorNotifier interface {
	BookingCreated(ctx context.Context, r *Reservation) error
	BookingCancelled(ctx context.Context, start time.Time) error
}

// Reservation is the outcome of a successful commit. No local copy is
// retained; the calendar event is authoritative.
type Reservation struct {
	EventID       string
	UserID        int64
	StaffName     string
	ServiceName   string
	CustomerName  string
	CustomerPhone string
	Start         time.Time
	End           time.Time
}

// CommitResult carries the committed reservation plus any secondary failure.
// SecondaryErr is set when the calendar insert succeeded but the ledger append
// or the operator notification failed; the reservation still stands.
type CommitResult struct {
	Reservation  *Reservation
	SecondaryErr error
}

// Committer writes confirmed reservations to the calendar and the ledger, and
// serves the cancellation lookups over the same calendar.
type Committer struct {
	calendar Calendar
	ledger   Ledger
	notifier OperatorNotifier
	// revalidate, when set, re-resolves the day's free slots right before the
	// calendar insert and rejects slots taken since they were offered.
	revalidate SlotResolver
	loc        *time.Location
	now        func() time.Time
	logger     *logging.Logger
	metrics    *metrics.BookingMetrics
}

// CommitterOption customizes a Committer.
type CommitterOption func(*Committer)

// WithCommitNow overrides the wall clock used for ledger timestamps. Used in
// tests.
func WithCommitNow(now func() time.Time) CommitterOption {
	return func(c *Committer) { c.now = now }
}

// WithRevalidation makes Commit re-check slot freshness against the calendar.
// Off by default: the window between slot display and commit is otherwise a
// known race.
func WithRevalidation(resolver SlotResolver) CommitterOption {
	return func(c *Committer) { c.revalidate = resolver }
}

// NewCommitter constructs a reservation committer.
func NewCommitter(calendar Calendar, ledger Ledger, notifier OperatorNotifier, loc *time.Location, logger *logging.Logger, m *metrics.BookingMetrics, opts ...CommitterOption) *Committer {
	if calendar == nil {
		panic("booking: calendar required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Committer{
		calendar: calendar,
		ledger:   ledger,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
		metrics:  m,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit writes one calendar event and one ledger row for the session and
// notifies the operator channel. A calendar failure aborts the commit; ledger
// and notify failures after a successful insert are reported on the result
// but do not undo the reservation.
func (c *Committer) Commit(ctx context.Context, session *Session) (*CommitResult, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.commit")
	defer span.End()

	if session == nil || !session.complete() {
		return nil, ErrMissingPriorSelection
	}

	start, err := session.StartAt(c.loc)
	if err != nil {
		return nil, &ValidationError{Field: "time", Reason: fmt.Sprintf("unparseable start %q %q", session.Date, session.Time)}
	}
	// The event spans the service's actual duration, unlike the fixed block
	// width used during slot search.
	end := start.Add(time.Duration(session.DurationMin) * time.Minute)

	commitID := uuid.NewString()
	span.SetAttributes(
		attribute.String("studio.commit_id", commitID),
		attribute.String("studio.service", session.ServiceName),
	)
	logger := c.logger.With("commit_id", commitID, "user_id", session.UserID)

	if c.revalidate != nil {
		if err := c.checkFreshness(ctx, start); err != nil {
			return nil, err
		}
	}

	eventID, err := c.calendar.Insert(ctx, Event{
		Summary:     session.StaffName + " | " + session.ServiceName,
		Description: fmt.Sprintf("Client: %s\n%s", session.CustomerName, EncodeUserToken(session.UserID)),
		Start:       start,
		End:         end,
	})
	if err != nil {
		span.RecordError(err)
		c.metrics.ObserveCommitFailure(string(StepCalendar))
		return nil, &CommitError{Step: StepCalendar, Err: err}
	}

	reservation := &Reservation{
		EventID:       eventID,
		UserID:        session.UserID,
		StaffName:     session.StaffName,
		ServiceName:   session.ServiceName,
		CustomerName:  session.CustomerName,
		CustomerPhone: session.CustomerPhone,
		Start:         start,
		End:           end,
	}
	result := &CommitResult{Reservation: reservation}
	c.metrics.ObserveCommit()

	var secondary []error
	if c.ledger != nil {
		row := []string{
			c.now().In(c.loc).Format("02.01 15:04"),
			session.CustomerName,
			session.CustomerPhone,
			session.ServiceName,
			session.Date + " " + session.Time,
			"Pending",
		}
		if err := c.ledger.Append(ctx, row); err != nil {
			c.metrics.ObserveCommitFailure(string(StepLedger))
			logger.Error("ledger append failed after calendar insert", "event_id", eventID, "error", err)
			secondary = append(secondary, &CommitError{Step: StepLedger, Err: err})
		}
	}
	if c.notifier != nil {
		if err := c.notifier.BookingCreated(ctx, reservation); err != nil {
			c.metrics.ObserveCommitFailure(string(StepNotify))
			logger.Error("operator notification failed", "event_id", eventID, "error", err)
			secondary = append(secondary, &CommitError{Step: StepNotify, Err: err})
		}
	}
	result.SecondaryErr = errors.Join(secondary...)

	logger.Info("reservation committed",
		"event_id", eventID,
		"service", session.ServiceName,
		"staff", session.StaffName,
		"start", start.Format(time.RFC3339),
	)
	return result, nil
}

// checkFreshness rejects a slot that disappeared between display and commit.
func (c *Committer) checkFreshness(ctx context.Context, start time.Time) error {
	slots, err := c.revalidate.Resolve(ctx, start)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		if slot.Equal(start) {
			return nil
		}
	}
	return &ValidationError{Field: "time", Reason: "slot no longer available, pick another time"}
}

// ListActive returns the user's future reservations, ascending by start. The
// calendar is queried and events are matched by the uid token embedded in the
// description at commit time.
func (c *Committer) ListActive(ctx context.Context, userID int64) ([]Reservation, error) {
	events, err := c.calendar.Upcoming(ctx, c.now())
	if err != nil {
		return nil, fmt.Errorf("booking: list upcoming: %w", err)
	}

	var out []Reservation
	for _, ev := range events {
		if !MatchUserToken(ev.Description, userID) {
			continue
		}
		staff, service := splitSummary(ev.Summary)
		out = append(out, Reservation{
			EventID:     ev.ID,
			UserID:      userID,
			StaffName:   staff,
			ServiceName: service,
			Start:       ev.Start,
			End:         ev.End,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Cancel deletes a reservation event and notifies the operator channel. A
// missing event or a rejected delete surfaces as CancelError.
func (c *Committer) Cancel(ctx context.Context, eventID string) (time.Time, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("studio.event_id", eventID))

	ev, err := c.calendar.Get(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		c.metrics.ObserveCancellation("not_found")
		return time.Time{}, &CancelError{EventID: eventID, Err: err}
	}
	if err := c.calendar.Delete(ctx, eventID); err != nil {
		span.RecordError(err)
		c.metrics.ObserveCancellation("delete_failed")
		return time.Time{}, &CancelError{EventID: eventID, Err: err}
	}
	c.metrics.ObserveCancellation("ok")

	if c.notifier != nil {
		if err := c.notifier.BookingCancelled(ctx, ev.Start); err != nil {
			// The event is already gone; report, don't fail the cancellation.
			c.logger.Error("cancellation notification failed", "event_id", eventID, "error", err)
		}
	}

	c.logger.Info("reservation cancelled", "event_id", eventID, "start", ev.Start.Format(time.RFC3339))
	return ev.Start, nil
}

// EncodeUserToken renders the recoverable user id token embedded in event
// descriptions.
func EncodeUserToken(userID int64) string {
	return fmt.Sprintf("uid:%d", userID)
}

// MatchUserToken reports whether the description carries the exact uid token
// for userID on its own line, so uid:12 never matches uid:123.
func MatchUserToken(description string, userID int64) bool {
	token := EncodeUserToken(userID)
	for _, line := range strings.Split(description, "\n") {
		if strings.TrimSpace(line) == token {
			return true
		}
	}
	return false
}

func splitSummary(summary string) (staff, service string) {
	parts := strings.SplitN(summary, " | ", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", summary
}
