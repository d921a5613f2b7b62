package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beryozskin/studio-bot/internal/catalog"
	"github.com/beryozskin/studio-bot/internal/schedule"
	"github.com/beryozskin/studio-bot/pkg/logging"
)

type fakeResolver struct {
	slots []time.Time
	err   error
}

func (f *fakeResolver) Resolve(_ context.Context, _ time.Time) ([]time.Time, error) {
	return f.slots, f.err
}

func testDay() time.Time {
	return time.Date(2026, 9, 16, 0, 0, 0, 0, time.UTC)
}

func testSlots() []time.Time {
	day := testDay()
	return []time.Time{
		time.Date(day.Year(), day.Month(), day.Day(), 14, 0, 0, 0, time.UTC),
		time.Date(day.Year(), day.Month(), day.Day(), 14, 30, 0, 0, time.UTC),
		time.Date(day.Year(), day.Month(), day.Day(), 15, 0, 0, 0, time.UTC),
	}
}

func newTestMachine(t *testing.T, resolver SlotResolver) *Machine {
	t.Helper()
	if resolver == nil {
		resolver = &fakeResolver{slots: testSlots()}
	}
	return NewMachine(NewMemorySessionStore(), catalog.Default(), resolver, time.UTC, logging.Discard())
}

func advanceToConfirmation(t *testing.T, m *Machine, userID int64) *Session {
	t.Helper()
	ctx := context.Background()

	_, err := m.StartBooking(ctx, userID)
	require.NoError(t, err)
	_, err = m.SelectService(ctx, userID, "cleansing")
	require.NoError(t, err)
	_, err = m.SelectStaff(ctx, userID, "anna")
	require.NoError(t, err)
	_, _, err = m.SelectDate(ctx, userID, testDay())
	require.NoError(t, err)
	_, err = m.SelectTime(ctx, userID, "14:00")
	require.NoError(t, err)
	_, err = m.SetName(ctx, userID, "Maria")
	require.NoError(t, err)
	session, err := m.SetPhone(ctx, userID, "+15551234567")
	require.NoError(t, err)
	return session
}

func TestHappyPathReachesConfirmation(t *testing.T) {
	m := newTestMachine(t, nil)
	session := advanceToConfirmation(t, m, 42)

	assert.Equal(t, StateAwaitingConfirmation, session.State)
	assert.Equal(t, "Cleansing", session.ServiceName)
	assert.Equal(t, 1500, session.Price)
	assert.Equal(t, 60, session.DurationMin)
	assert.Equal(t, "Anna", session.StaffName)
	assert.Equal(t, "2026-09-16", session.Date)
	assert.Equal(t, "14:00", session.Time)
	assert.Equal(t, "Maria", session.CustomerName)
	assert.Equal(t, "+15551234567", session.CustomerPhone)
	assert.True(t, session.complete())
}

func TestSelectServiceValidation(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t, nil)

	// Service selection without a started booking lacks the category.
	_, err := m.SelectService(ctx, 1, "cleansing")
	assert.ErrorIs(t, err, ErrMissingPriorSelection)

	_, err = m.StartBooking(ctx, 1)
	require.NoError(t, err)

	_, err = m.SelectService(ctx, 1, "no-such-service")
	assert.True(t, IsValidation(err), "out-of-catalog service must be a validation error, got %v", err)

	session, err := m.Session(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingService, session.State, "rejected input must not advance the state")
}

func TestSelectStaffRequiresService(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t, nil)

	_, err := m.StartBooking(ctx, 1)
	require.NoError(t, err)

	_, err = m.SelectStaff(ctx, 1, "anna")
	assert.ErrorIs(t, err, ErrMissingPriorSelection)
}

func TestSelectStaffUnknown(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t, nil)

	_, err := m.StartBooking(ctx, 1)
	require.NoError(t, err)
	_, err = m.SelectService(ctx, 1, "cleansing")
	require.NoError(t, err)

	_, err = m.SelectStaff(ctx, 1, "nobody")
	assert.True(t, IsValidation(err))
}

func TestSelectDateNoSlotsStays(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t, &fakeResolver{slots: nil})

	_, err := m.StartBooking(ctx, 1)
	require.NoError(t, err)
	_, err = m.SelectService(ctx, 1, "cleansing")
	require.NoError(t, err)
	_, err = m.SelectStaff(ctx, 1, "anna")
	require.NoError(t, err)

	session, slots, err := m.SelectDate(ctx, 1, testDay())
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.Equal(t, StateAwaitingDate, session.State, "full day keeps the user at date selection")
	assert.Empty(t, session.Date)
}

func TestSelectDateCalendarFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	cause := fmt.Errorf("schedule: %w", schedule.ErrCalendarUnavailable)
	m := newTestMachine(t, &fakeResolver{err: cause})

	_, err := m.StartBooking(ctx, 1)
	require.NoError(t, err)
	_, err = m.SelectService(ctx, 1, "cleansing")
	require.NoError(t, err)
	_, err = m.SelectStaff(ctx, 1, "anna")
	require.NoError(t, err)

	_, _, err = m.SelectDate(ctx, 1, testDay())
	assert.ErrorIs(t, err, schedule.ErrCalendarUnavailable)

	session, err := m.Session(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingDate, session.State, "resolver failure must not corrupt the session")
}

func TestSelectTimeRejectsStaleSlot(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t, nil)

	_, err := m.StartBooking(ctx, 1)
	require.NoError(t, err)
	_, err = m.SelectService(ctx, 1, "cleansing")
	require.NoError(t, err)
	_, err = m.SelectStaff(ctx, 1, "anna")
	require.NoError(t, err)
	_, _, err = m.SelectDate(ctx, 1, testDay())
	require.NoError(t, err)

	// 18:00 was never offered for this session.
	_, err = m.SelectTime(ctx, 1, "18:00")
	assert.True(t, IsValidation(err), "stale slot must be rejected, got %v", err)

	session, err := m.Session(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingTime, session.State)
	assert.Empty(t, session.Time)
}

func TestFreeTextValidation(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t, nil)

	_, err := m.StartBooking(ctx, 1)
	require.NoError(t, err)
	_, err = m.SelectService(ctx, 1, "cleansing")
	require.NoError(t, err)
	_, err = m.SelectStaff(ctx, 1, "anna")
	require.NoError(t, err)
	_, _, err = m.SelectDate(ctx, 1, testDay())
	require.NoError(t, err)
	_, err = m.SelectTime(ctx, 1, "14:00")
	require.NoError(t, err)

	_, err = m.SetName(ctx, 1, "   ")
	assert.True(t, IsValidation(err))

	_, err = m.SetName(ctx, 1, "Maria")
	require.NoError(t, err)

	_, err = m.SetPhone(ctx, 1, "")
	assert.True(t, IsValidation(err))
}

func TestBackStepsClearSkippedFields(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t, nil)

	_, err := m.StartBooking(ctx, 1)
	require.NoError(t, err)
	_, err = m.SelectService(ctx, 1, "cleansing")
	require.NoError(t, err)
	_, err = m.SelectStaff(ctx, 1, "anna")
	require.NoError(t, err)
	_, _, err = m.SelectDate(ctx, 1, testDay())
	require.NoError(t, err)

	// AwaitingTime -> AwaitingDate clears the date and the offered set.
	session, err := m.Back(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingDate, session.State)
	assert.Empty(t, session.Date)
	assert.Empty(t, session.OfferedSlots)

	// AwaitingDate -> AwaitingStaff clears the staff selection.
	session, err = m.Back(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingStaff, session.State)
	assert.Empty(t, session.StaffID)

	// AwaitingStaff -> AwaitingService clears the service selection.
	session, err = m.Back(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingService, session.State)
	assert.Empty(t, session.ServiceID)
	assert.Zero(t, session.Price)

	_, err = m.Back(ctx, 1)
	assert.True(t, IsValidation(err), "no back edge from AwaitingService")
}

func TestRestartClearsEverything(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t, nil)
	advanceToConfirmation(t, m, 1)

	require.NoError(t, m.Restart(ctx, 1))

	session, err := m.Session(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, session.State)
	assert.Empty(t, session.ServiceID)
	assert.Empty(t, session.CustomerName)
}

func TestNoShortcutToConfirmation(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t, nil)
	committer := NewCommitter(&fakeCalendar{}, nil, nil, time.UTC, logging.Discard(), nil)

	// Fresh session: confirming immediately must be refused.
	_, err := m.StartBooking(ctx, 1)
	require.NoError(t, err)
	_, err = m.Confirm(ctx, 1, committer)
	assert.ErrorIs(t, err, ErrMissingPriorSelection)

	// Skipping steps is refused at every stage.
	_, err = m.SelectService(ctx, 1, "cleansing")
	require.NoError(t, err)
	_, err = m.SelectTime(ctx, 1, "14:00")
	assert.ErrorIs(t, err, ErrMissingPriorSelection)
	_, err = m.SetName(ctx, 1, "Maria")
	assert.ErrorIs(t, err, ErrMissingPriorSelection)
	_, err = m.Confirm(ctx, 1, committer)
	assert.ErrorIs(t, err, ErrMissingPriorSelection)
}

func TestSessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	users := []int64{100, 200}
	services := []string{"cleansing", "peeling"}

	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := users[i]
			if _, err := m.StartBooking(ctx, uid); err != nil {
				errs[i] = err
				return
			}
			if _, err := m.SelectService(ctx, uid, services[i]); err != nil {
				errs[i] = err
				return
			}
			if _, err := m.SelectStaff(ctx, uid, "anna"); err != nil {
				errs[i] = err
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "user %d", users[i])
	}

	first, err := m.Session(ctx, 100)
	require.NoError(t, err)
	second, err := m.Session(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, "cleansing", first.ServiceID)
	assert.Equal(t, "peeling", second.ServiceID)
}

func TestUserTokenRoundTrip(t *testing.T) {
	desc := "Client: Maria\n" + EncodeUserToken(123)
	assert.True(t, MatchUserToken(desc, 123))
	assert.False(t, MatchUserToken(desc, 12), "uid:12 must not match uid:123")
	assert.False(t, MatchUserToken(desc, 1234))
	assert.False(t, MatchUserToken("no token here", 123))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(&ValidationError{Field: "time", Reason: "stale"}))
	assert.True(t, IsValidation(fmt.Errorf("wrap: %w", &ValidationError{Field: "x", Reason: "y"})))
	assert.False(t, IsValidation(errors.New("other")))
	assert.False(t, IsValidation(ErrMissingPriorSelection))
}
