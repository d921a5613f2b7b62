// Package gcal adapts the Google Calendar API to the booking and schedule
// interfaces. The calendar is a single shared resource for the whole studio.
package gcal

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/beryozskin/studio-bot/internal/booking"
	"github.com/beryozskin/studio-bot/internal/schedule"
	"github.com/beryozskin/studio-bot/pkg/logging"
)

// Client wraps the calendar service for one calendar id. Every call carries a
// bounded timeout so a stuck backend cannot hang a conversation.
type Client struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
	timeout    time.Duration
	logger     *logging.Logger
}

// New builds a calendar client authorized with a service-account credentials
// file.
func New(ctx context.Context, credentialsFile, calendarID string, loc *time.Location, timeout time.Duration, logger *logging.Logger) (*Client, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("gcal: calendar id required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	svc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(calendar.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("gcal: create service: %w", err)
	}
	return &Client{
		svc:        svc,
		calendarID: calendarID,
		loc:        loc,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// BusyIntervals lists the occupied ranges between from and to. All-day events
// have no time of day and are skipped.
func (c *Client) BusyIntervals(ctx context.Context, from, to time.Time) ([]schedule.BusyInterval, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	res, err := c.svc.Events.List(c.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gcal: list events: %w", err)
	}

	var busy []schedule.BusyInterval
	for _, item := range res.Items {
		start, end, ok := eventTimes(item, c.loc)
		if !ok {
			continue
		}
		busy = append(busy, schedule.BusyInterval{Start: start, End: end})
	}
	return busy, nil
}

// Insert creates one event and returns its id.
func (c *Client) Insert(ctx context.Context, ev booking.Event) (string, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	created, err := c.svc.Events.Insert(c.calendarID, &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gcal: insert event: %w", err)
	}
	c.logger.Debug("calendar event created", "event_id", created.Id, "start", ev.Start.Format(time.RFC3339))
	return created.Id, nil
}

// Upcoming lists future timed events ordered by start.
func (c *Client) Upcoming(ctx context.Context, from time.Time) ([]booking.Event, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	res, err := c.svc.Events.List(c.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gcal: list upcoming: %w", err)
	}

	var out []booking.Event
	for _, item := range res.Items {
		start, end, ok := eventTimes(item, c.loc)
		if !ok {
			continue
		}
		out = append(out, booking.Event{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Start:       start,
			End:         end,
		})
	}
	return out, nil
}

// Get fetches a single event by id.
func (c *Client) Get(ctx context.Context, id string) (booking.Event, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	item, err := c.svc.Events.Get(c.calendarID, id).Context(ctx).Do()
	if err != nil {
		return booking.Event{}, fmt.Errorf("gcal: get event %s: %w", id, err)
	}
	start, end, _ := eventTimes(item, c.loc)
	return booking.Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Start:       start,
		End:         end,
	}, nil
}

// Delete removes an event by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.svc.Events.Delete(c.calendarID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcal: delete event %s: %w", id, err)
	}
	return nil
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// eventTimes extracts concrete start/end timestamps. Events carrying only a
// date (all-day) report ok=false.
func eventTimes(item *calendar.Event, loc *time.Location) (start, end time.Time, ok bool) {
	if item.Start == nil || item.End == nil || item.Start.DateTime == "" || item.End.DateTime == "" {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start.In(loc), end.In(loc), true
}
