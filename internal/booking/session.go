package booking

import (
	"time"
)

// State is a step of the booking flow. The flow only advances along the
// defined forward path or resets to idle.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingService      State = "awaiting_service"
	StateAwaitingStaff        State = "awaiting_staff"
	StateAwaitingDate         State = "awaiting_date"
	StateAwaitingTime         State = "awaiting_time"
	StateAwaitingName         State = "awaiting_name"
	StateAwaitingPhone        State = "awaiting_phone"
	StateAwaitingConfirmation State = "awaiting_confirmation"
)

// Session tracks one user's progress through the booking flow. Fields fill in
// monotonically as the state advances; only restart or a back step clears
// them.
type Session struct {
	UserID int64 `json:"user_id"`
	State  State `json:"state"`

	Category    string `json:"category,omitempty"`
	ServiceID   string `json:"service_id,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
	Price       int    `json:"price,omitempty"`
	DurationMin int    `json:"duration_min,omitempty"`

	StaffID   string `json:"staff_id,omitempty"`
	StaffName string `json:"staff_name,omitempty"`

	Date string `json:"date,omitempty"` // "2006-01-02"
	Time string `json:"time,omitempty"` // "15:04"

	// OfferedSlots is the slot set last produced for Date. A selected time
	// is only accepted when it is still in this set.
	OfferedSlots []string `json:"offered_slots,omitempty"`

	CustomerName  string `json:"customer_name,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns an idle session for the user.
func NewSession(userID int64) *Session {
	return &Session{UserID: userID, State: StateIdle, UpdatedAt: time.Now()}
}

// Offered reports whether hhmm is in the slot set last shown to the user.
func (s *Session) Offered(hhmm string) bool {
	for _, slot := range s.OfferedSlots {
		if slot == hhmm {
			return true
		}
	}
	return false
}

// StartAt parses the selected date and time in loc.
func (s *Session) StartAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", s.Date+" "+s.Time, loc)
}

// complete reports whether every field required for commit is populated.
func (s *Session) complete() bool {
	return s.ServiceID != "" && s.ServiceName != "" && s.DurationMin > 0 &&
		s.StaffName != "" && s.Date != "" && s.Time != "" &&
		s.CustomerName != "" && s.CustomerPhone != ""
}
