package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/beryozskin/studio-bot/internal/booking"
	"github.com/beryozskin/studio-bot/internal/catalog"
	"github.com/beryozskin/studio-bot/internal/loyalty"
	"github.com/beryozskin/studio-bot/internal/observability/metrics"
	"github.com/beryozskin/studio-bot/internal/schedule"
	"github.com/beryozskin/studio-bot/pkg/logging"
)

const greeting = "✨ BERYOZSKIN Studio: the world of Montibello beauty"

// Handler turns inbound Telegram updates into state machine actions and
// renders the next screen of the flow.
type Handler struct {
	transport   Transport
	machine     *booking.Machine
	committer   *booking.Committer
	catalog     *catalog.Catalog
	loyalty     loyalty.Store
	loyaltyText string
	loc         *time.Location
	now         func() time.Time
	logger      *logging.Logger
	metrics     *metrics.BookingMetrics
}

// NewHandler wires the booking flow to the chat transport.
func NewHandler(transport Transport, machine *booking.Machine, committer *booking.Committer, cat *catalog.Catalog, loyaltyStore loyalty.Store, loyaltyText string, loc *time.Location, logger *logging.Logger, m *metrics.BookingMetrics) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		transport:   transport,
		machine:     machine,
		committer:   committer,
		catalog:     cat,
		loyalty:     loyaltyStore,
		loyaltyText: loyaltyText,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
		metrics:     m,
	}
}

// HandleUpdate processes one update. The caller serializes updates per user.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		h.handleCommand(ctx, update.Message)
	case update.Message != nil:
		h.handleText(ctx, update.Message)
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		if err := h.machine.Restart(ctx, userID); err != nil {
			h.logger.Error("restart on /start failed", "user_id", userID, "error", err)
		}
		h.sendMainMenu(ctx, chatID, userID)
	case "my_bookings":
		h.showBookings(ctx, chatID, userID)
	default:
		h.send(chatID, "Unknown command. Use /start or /my_bookings.", nil)
	}
}

func (h *Handler) handleText(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	session, err := h.machine.Session(ctx, userID)
	if err != nil {
		h.reportError(chatID, userID, err)
		return
	}

	switch session.State {
	case booking.StateAwaitingName:
		if _, err := h.machine.SetName(ctx, userID, msg.Text); err != nil {
			h.reportError(chatID, userID, err)
			return
		}
		h.send(chatID, "Your phone number?", nil)
	case booking.StateAwaitingPhone:
		session, err := h.machine.SetPhone(ctx, userID, msg.Text)
		if err != nil {
			h.reportError(chatID, userID, err)
			return
		}
		h.sendSummary(chatID, session)
	default:
		h.send(chatID, "Use the buttons below, or /start for the menu.", nil)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		_ = h.transport.AnswerCallback(cb.ID, "")
		return
	}
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	data := cb.Data

	if err := h.transport.AnswerCallback(cb.ID, ""); err != nil {
		h.logger.Debug("answer callback failed", "user_id", userID, "error", err)
	}

	switch {
	case data == cbNoop:
		return
	case data == cbMainMenu:
		if err := h.machine.Restart(ctx, userID); err != nil {
			h.reportError(chatID, userID, err)
			return
		}
		h.editMainMenu(ctx, chatID, messageID, userID)
	case data == cbPoints:
		h.showPoints(ctx, chatID, messageID, userID)
	case data == cbBookStart, data == cbRestart:
		h.startBooking(ctx, chatID, messageID, userID)
	case data == cbBack:
		h.goBack(ctx, chatID, messageID, userID)
	case data == cbConfirm:
		h.confirm(ctx, chatID, messageID, userID)
	case strings.HasPrefix(data, prefixService):
		h.selectService(ctx, chatID, messageID, userID, strings.TrimPrefix(data, prefixService))
	case strings.HasPrefix(data, prefixStaff):
		h.selectStaff(ctx, chatID, messageID, userID, strings.TrimPrefix(data, prefixStaff))
	case strings.HasPrefix(data, prefixMonth):
		h.showMonth(chatID, messageID, strings.TrimPrefix(data, prefixMonth))
	case strings.HasPrefix(data, prefixDay):
		h.selectDate(ctx, chatID, messageID, userID, strings.TrimPrefix(data, prefixDay))
	case strings.HasPrefix(data, prefixSlot):
		h.selectSlot(ctx, chatID, messageID, userID, strings.TrimPrefix(data, prefixSlot))
	case strings.HasPrefix(data, prefixCancel):
		h.cancelReservation(ctx, chatID, messageID, strings.TrimPrefix(data, prefixCancel))
	default:
		h.logger.Debug("unrecognized callback", "user_id", userID, "data", data)
	}
}

func (h *Handler) sendMainMenu(ctx context.Context, chatID, userID int64) {
	kb := mainMenuKeyboard(h.balance(ctx, userID))
	h.send(chatID, greeting, &kb)
}

func (h *Handler) editMainMenu(ctx context.Context, chatID int64, messageID int, userID int64) {
	kb := mainMenuKeyboard(h.balance(ctx, userID))
	h.edit(chatID, messageID, greeting, &kb)
}

func (h *Handler) balance(ctx context.Context, userID int64) int64 {
	if err := h.loyalty.Touch(ctx, userID); err != nil {
		h.logger.Error("loyalty touch failed", "user_id", userID, "error", err)
	}
	balance, err := h.loyalty.Balance(ctx, userID)
	if err != nil {
		h.logger.Error("loyalty balance read failed", "user_id", userID, "error", err)
		return 0
	}
	return balance
}

func (h *Handler) showPoints(ctx context.Context, chatID int64, messageID int, userID int64) {
	balance, err := h.loyalty.Balance(ctx, userID)
	if err != nil {
		h.logger.Error("loyalty balance read failed", "user_id", userID, "error", err)
	}
	text := fmt.Sprintf("💰 Your balance: %d points\n\n%s", balance, h.loyaltyText)
	kb := pointsKeyboard()
	h.edit(chatID, messageID, text, &kb)
}

func (h *Handler) startBooking(ctx context.Context, chatID int64, messageID int, userID int64) {
	session, err := h.machine.StartBooking(ctx, userID)
	if err != nil {
		h.reportError(chatID, userID, err)
		return
	}
	kb := servicesKeyboard(h.catalog.ServicesInCategory(session.Category))
	h.edit(chatID, messageID, "Choose a facial treatment:", &kb)
}

func (h *Handler) selectService(ctx context.Context, chatID int64, messageID int, userID int64, serviceID string) {
	session, err := h.machine.SelectService(ctx, userID, serviceID)
	if err != nil {
		h.reportError(chatID, userID, err)
		return
	}
	svc, _ := h.catalog.Service(session.Category, session.ServiceID)
	text := fmt.Sprintf("%s\n\n%s\n🕒 %d min | 💰 %d₽\n\nPick a staff member:",
		svc.Name, svc.Description, svc.DurationMin, svc.Price)
	kb := staffKeyboard(h.catalog.StaffList())
	h.edit(chatID, messageID, text, &kb)
}

func (h *Handler) selectStaff(ctx context.Context, chatID int64, messageID int, userID int64, staffID string) {
	if _, err := h.machine.SelectStaff(ctx, userID, staffID); err != nil {
		h.reportError(chatID, userID, err)
		return
	}
	now := h.now().In(h.loc)
	kb := monthKeyboard(now, now)
	h.edit(chatID, messageID, "Pick a date:", &kb)
}

func (h *Handler) showMonth(chatID int64, messageID int, yyyymm string) {
	month, err := time.ParseInLocation("2006-01", yyyymm, h.loc)
	if err != nil {
		h.logger.Debug("bad month payload", "data", yyyymm)
		return
	}
	kb := monthKeyboard(month, h.now().In(h.loc))
	h.edit(chatID, messageID, "Pick a date:", &kb)
}

func (h *Handler) selectDate(ctx context.Context, chatID int64, messageID int, userID int64, yyyymmdd string) {
	date, err := time.ParseInLocation("2006-01-02", yyyymmdd, h.loc)
	if err != nil {
		h.reportError(chatID, userID, &booking.ValidationError{Field: "date", Reason: "unparseable date"})
		return
	}

	started := h.now()
	session, slots, err := h.machine.SelectDate(ctx, userID, date)
	elapsed := h.now().Sub(started).Seconds()
	if err != nil {
		h.metrics.ObserveSlotQuery("error", elapsed)
		h.reportError(chatID, userID, err)
		return
	}
	if len(slots) == 0 {
		h.metrics.ObserveSlotQuery("empty", elapsed)
		now := h.now().In(h.loc)
		kb := monthKeyboard(date, now)
		h.edit(chatID, messageID, "No free times that day. Pick another date:", &kb)
		return
	}
	h.metrics.ObserveSlotQuery("ok", elapsed)

	kb := slotsKeyboard(session.OfferedSlots)
	h.edit(chatID, messageID, fmt.Sprintf("Free times on %s:", date.Format("02.01.2006")), &kb)
}

func (h *Handler) selectSlot(ctx context.Context, chatID int64, messageID int, userID int64, hhmm string) {
	if _, err := h.machine.SelectTime(ctx, userID, hhmm); err != nil {
		h.reportError(chatID, userID, err)
		return
	}
	h.edit(chatID, messageID, "What's your name?", nil)
}

func (h *Handler) sendSummary(chatID int64, session *booking.Session) {
	text := fmt.Sprintf("🌸 %s\n👩‍🎨 Staff: %s\n📅 %s at %s\n\nAll good?",
		session.ServiceName, session.StaffName, session.Date, session.Time)
	kb := confirmKeyboard()
	h.send(chatID, text, &kb)
}

func (h *Handler) goBack(ctx context.Context, chatID int64, messageID int, userID int64) {
	session, err := h.machine.Back(ctx, userID)
	if err != nil {
		h.reportError(chatID, userID, err)
		return
	}

	switch session.State {
	case booking.StateAwaitingService:
		kb := servicesKeyboard(h.catalog.ServicesInCategory(session.Category))
		h.edit(chatID, messageID, "Choose a facial treatment:", &kb)
	case booking.StateAwaitingStaff:
		kb := staffKeyboard(h.catalog.StaffList())
		h.edit(chatID, messageID, "Pick a staff member:", &kb)
	case booking.StateAwaitingDate:
		now := h.now().In(h.loc)
		kb := monthKeyboard(now, now)
		h.edit(chatID, messageID, "Pick a date:", &kb)
	}
}

func (h *Handler) confirm(ctx context.Context, chatID int64, messageID int, userID int64) {
	result, err := h.machine.Confirm(ctx, userID, h.committer)
	if err != nil {
		h.reportError(chatID, userID, err)
		return
	}
	if result.SecondaryErr != nil {
		// The reservation stands; the ledger or the operator notice is what
		// failed. Already logged by the committer with details.
		h.logger.Warn("commit finished with secondary failure", "user_id", userID, "error", result.SecondaryErr)
	}
	h.edit(chatID, messageID, "✨ You're booked! See you at the studio.", nil)
}

func (h *Handler) showBookings(ctx context.Context, chatID, userID int64) {
	reservations, err := h.committer.ListActive(ctx, userID)
	if err != nil {
		h.reportError(chatID, userID, err)
		return
	}
	if len(reservations) == 0 {
		h.send(chatID, "You have no active bookings.", nil)
		return
	}
	for _, r := range reservations {
		text := fmt.Sprintf("📅 %s\n🔹 %s — %s",
			r.Start.In(h.loc).Format("02.01 15:04"), r.StaffName, r.ServiceName)
		kb := cancelKeyboard(r)
		h.send(chatID, text, &kb)
	}
}

func (h *Handler) cancelReservation(ctx context.Context, chatID int64, messageID int, eventID string) {
	start, err := h.committer.Cancel(ctx, eventID)
	if err != nil {
		h.logger.Error("cancellation failed", "event_id", eventID, "error", err)
		h.edit(chatID, messageID, "Could not cancel this booking. It may have been removed already.", nil)
		return
	}
	h.edit(chatID, messageID, fmt.Sprintf("❌ Booking for %s cancelled.", start.In(h.loc).Format("02.01 15:04")), nil)
}

func (h *Handler) reportError(chatID, userID int64, err error) {
	h.logger.Warn("flow action rejected", "user_id", userID, "error", err)
	h.send(chatID, userMessage(err), nil)
}

func (h *Handler) send(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if err := h.transport.SendMessage(chatID, text, kb); err != nil {
		h.logger.Error("send failed", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) edit(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if err := h.transport.EditMessage(chatID, messageID, text, kb); err != nil {
		h.logger.Error("edit failed", "chat_id", chatID, "error", err)
	}
}

// userMessage maps flow errors to what the client reads. External failures
// never leak internals.
func userMessage(err error) string {
	var ve *booking.ValidationError
	var ce *booking.CommitError
	switch {
	case errors.Is(err, booking.ErrMissingPriorSelection):
		return "Something went out of order. Tap 📅 Book in /start to begin again."
	case errors.Is(err, schedule.ErrCalendarUnavailable):
		return "The schedule is temporarily unavailable. Please try again in a minute."
	case errors.As(err, &ce):
		return "We couldn't finish your booking. Please try confirming again."
	case errors.As(err, &ve):
		if ve.Field == "time" {
			return "That time is no longer offered. Please pick one of the listed slots."
		}
		return "That choice didn't go through. Please use the buttons."
	default:
		return "Something went wrong. Please try again."
	}
}
