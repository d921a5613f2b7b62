// Package notify delivers booking events to the studio's operator chat.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/beryozskin/studio-bot/internal/booking"
	"github.com/beryozskin/studio-bot/pkg/logging"
)

// Sender sends a plain text message to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Service posts booking and cancellation notices to the operator chat. With
// no chat configured it degrades to a no-op.
type Service struct {
	sender Sender
	chatID int64
	loc    *time.Location
	logger *logging.Logger
}

// NewService creates a notification service. chatID 0 disables delivery.
func NewService(sender Sender, chatID int64, loc *time.Location, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{sender: sender, chatID: chatID, loc: loc, logger: logger}
}

// BookingCreated tells the operator about a fresh reservation.
func (s *Service) BookingCreated(ctx context.Context, r *booking.Reservation) error {
	if s.chatID == 0 {
		s.logger.Debug("operator chat not configured, skipping booking notice")
		return nil
	}
	text := fmt.Sprintf("🔔 NEW BOOKING: %s — %s — %s (%s)",
		r.CustomerName,
		r.ServiceName,
		r.Start.In(s.loc).Format("02.01 15:04"),
		r.StaffName,
	)
	if err := s.sender.SendText(ctx, s.chatID, text); err != nil {
		return fmt.Errorf("notify: booking created: %w", err)
	}
	return nil
}

// BookingCancelled tells the operator a reservation was cancelled.
func (s *Service) BookingCancelled(ctx context.Context, start time.Time) error {
	if s.chatID == 0 {
		s.logger.Debug("operator chat not configured, skipping cancellation notice")
		return nil
	}
	text := fmt.Sprintf("⚠️ CANCELLED: %s", start.In(s.loc).Format("02.01 15:04"))
	if err := s.sender.SendText(ctx, s.chatID, text); err != nil {
		return fmt.Errorf("notify: booking cancelled: %w", err)
	}
	return nil
}
