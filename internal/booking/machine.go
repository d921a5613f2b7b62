package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/beryozskin/studio-bot/internal/catalog"
	"github.com/beryozskin/studio-bot/pkg/logging"
)

// SlotResolver computes free start times for a calendar date.
type SlotResolver interface {
	Resolve(ctx context.Context, date time.Time) ([]time.Time, error)
}

// Machine drives a user through the booking flow. It validates every input
// against the catalog and the session's earlier selections, so client-supplied
// callback data is never trusted on its own.
//
// Machine itself holds no per-user mutable state; callers must serialize
// actions per user (see telegram.Dispatcher). Distinct users are independent.
type Machine struct {
	store    SessionStore
	catalog  *catalog.Catalog
	resolver SlotResolver
	loc      *time.Location
	logger   *logging.Logger
}

// NewMachine constructs the booking state machine.
func NewMachine(store SessionStore, cat *catalog.Catalog, resolver SlotResolver, loc *time.Location, logger *logging.Logger) *Machine {
	if store == nil {
		panic("booking: session store required")
	}
	if cat == nil {
		panic("booking: catalog required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Machine{store: store, catalog: cat, resolver: resolver, loc: loc, logger: logger}
}

// Session returns the user's current session, creating an idle one on first
// contact.
func (m *Machine) Session(ctx context.Context, userID int64) (*Session, error) {
	session, err := m.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		session = NewSession(userID)
		if err := m.store.Save(ctx, session); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// StartBooking resets the session and opens service selection for the default
// category.
func (m *Machine) StartBooking(ctx context.Context, userID int64) (*Session, error) {
	session := NewSession(userID)
	session.State = StateAwaitingService
	session.Category = m.catalog.DefaultCategory
	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}
	m.logger.Debug("booking started", "user_id", userID, "category", session.Category)
	return session, nil
}

// Restart clears the session back to idle from any state.
func (m *Machine) Restart(ctx context.Context, userID int64) error {
	return m.store.Clear(ctx, userID)
}

// SelectService records the chosen service and advances to staff selection.
func (m *Machine) SelectService(ctx context.Context, userID int64, serviceID string) (*Session, error) {
	session, err := m.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session.Category == "" {
		return nil, ErrMissingPriorSelection
	}
	if session.State != StateAwaitingService {
		return nil, &ValidationError{Field: "service", Reason: fmt.Sprintf("unexpected in state %s", session.State)}
	}
	svc, ok := m.catalog.Service(session.Category, serviceID)
	if !ok {
		return nil, &ValidationError{Field: "service", Reason: fmt.Sprintf("unknown service %q", serviceID)}
	}

	session.ServiceID = svc.ID
	session.ServiceName = svc.Name
	session.Price = svc.Price
	session.DurationMin = svc.DurationMin
	session.State = StateAwaitingStaff
	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SelectStaff records the chosen staff member and advances to date selection.
func (m *Machine) SelectStaff(ctx context.Context, userID int64, staffID string) (*Session, error) {
	session, err := m.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session.ServiceID == "" {
		return nil, ErrMissingPriorSelection
	}
	if session.State != StateAwaitingStaff {
		return nil, &ValidationError{Field: "staff", Reason: fmt.Sprintf("unexpected in state %s", session.State)}
	}
	staff, ok := m.catalog.StaffMember(staffID)
	if !ok {
		return nil, &ValidationError{Field: "staff", Reason: fmt.Sprintf("unknown staff %q", staffID)}
	}

	session.StaffID = staff.ID
	session.StaffName = staff.Name
	session.State = StateAwaitingDate
	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SelectDate resolves free slots for the chosen date. When slots exist the
// session advances to time selection with the offered set recorded; when the
// day is full the session stays at date selection and the caller re-prompts.
func (m *Machine) SelectDate(ctx context.Context, userID int64, date time.Time) (*Session, []time.Time, error) {
	session, err := m.Session(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if session.StaffID == "" {
		return nil, nil, ErrMissingPriorSelection
	}
	if session.State != StateAwaitingDate {
		return nil, nil, &ValidationError{Field: "date", Reason: fmt.Sprintf("unexpected in state %s", session.State)}
	}

	slots, err := m.resolver.Resolve(ctx, date)
	if err != nil {
		// Session untouched: the user can retry the same date.
		return nil, nil, err
	}
	if len(slots) == 0 {
		return session, nil, nil
	}

	session.Date = date.In(m.loc).Format("2006-01-02")
	session.OfferedSlots = make([]string, 0, len(slots))
	for _, slot := range slots {
		session.OfferedSlots = append(session.OfferedSlots, slot.In(m.loc).Format("15:04"))
	}
	session.State = StateAwaitingTime
	if err := m.store.Save(ctx, session); err != nil {
		return nil, nil, err
	}
	return session, slots, nil
}

// SelectTime accepts a slot only if it is still in the set last offered to
// this session.
func (m *Machine) SelectTime(ctx context.Context, userID int64, hhmm string) (*Session, error) {
	session, err := m.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session.Date == "" || len(session.OfferedSlots) == 0 {
		return nil, ErrMissingPriorSelection
	}
	if session.State != StateAwaitingTime {
		return nil, &ValidationError{Field: "time", Reason: fmt.Sprintf("unexpected in state %s", session.State)}
	}
	if !session.Offered(hhmm) {
		return nil, &ValidationError{Field: "time", Reason: fmt.Sprintf("slot %q is not among the offered times", hhmm)}
	}

	session.Time = hhmm
	session.State = StateAwaitingName
	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SetName records the customer name from free text.
func (m *Machine) SetName(ctx context.Context, userID int64, name string) (*Session, error) {
	session, err := m.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session.Time == "" {
		return nil, ErrMissingPriorSelection
	}
	if session.State != StateAwaitingName {
		return nil, &ValidationError{Field: "name", Reason: fmt.Sprintf("unexpected in state %s", session.State)}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "name must not be empty"}
	}

	session.CustomerName = name
	session.State = StateAwaitingPhone
	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SetPhone records the customer phone from free text and advances to the
// confirmation summary.
func (m *Machine) SetPhone(ctx context.Context, userID int64, phone string) (*Session, error) {
	session, err := m.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session.CustomerName == "" {
		return nil, ErrMissingPriorSelection
	}
	if session.State != StateAwaitingPhone {
		return nil, &ValidationError{Field: "phone", Reason: fmt.Sprintf("unexpected in state %s", session.State)}
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, &ValidationError{Field: "phone", Reason: "phone must not be empty"}
	}

	session.CustomerPhone = phone
	session.State = StateAwaitingConfirmation
	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Back steps to the previous collection state, clearing the fields the
// abandoned step had populated.
func (m *Machine) Back(ctx context.Context, userID int64) (*Session, error) {
	session, err := m.Session(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch session.State {
	case StateAwaitingStaff:
		session.ServiceID = ""
		session.ServiceName = ""
		session.Price = 0
		session.DurationMin = 0
		session.State = StateAwaitingService
	case StateAwaitingDate:
		session.StaffID = ""
		session.StaffName = ""
		session.State = StateAwaitingStaff
	case StateAwaitingTime:
		session.Date = ""
		session.OfferedSlots = nil
		session.State = StateAwaitingDate
	default:
		return nil, &ValidationError{Field: "state", Reason: fmt.Sprintf("cannot go back from %s", session.State)}
	}

	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Confirm commits the reservation through the committer and clears the
// session on success. The session also survives external failures so the
// user can retry confirmation.
func (m *Machine) Confirm(ctx context.Context, userID int64, committer *Committer) (*CommitResult, error) {
	session, err := m.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session.State != StateAwaitingConfirmation || !session.complete() {
		return nil, ErrMissingPriorSelection
	}

	result, err := committer.Commit(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := m.store.Clear(ctx, userID); err != nil {
		m.logger.Error("failed to clear session after commit", "user_id", userID, "error", err)
	}
	return result, nil
}
