package telegram

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/beryozskin/studio-bot/internal/booking"
	"github.com/beryozskin/studio-bot/internal/catalog"
)

// Callback data routing keys. Stable prefixes: the payload after ':' is
// re-validated by the state machine, never trusted as-is.
const (
	cbMainMenu  = "menu:main"
	cbPoints    = "menu:points"
	cbBookStart = "book:start"
	cbBack      = "nav:back"
	cbConfirm   = "booking:confirm"
	cbRestart   = "booking:restart"
	cbNoop      = "noop"

	prefixService = "svc:"
	prefixStaff   = "staff:"
	prefixMonth   = "cal:"
	prefixDay     = "day:"
	prefixSlot    = "slot:"
	prefixCancel  = "cancel:"
)

func mainMenuKeyboard(balance int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Book", cbBookStart),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🎁 My points: %d", balance), cbPoints),
		),
	)
}

func pointsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back to menu", cbMainMenu),
		),
	)
}

func servicesKeyboard(services []catalog.Service) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(services)+1)
	for _, svc := range services {
		label := fmt.Sprintf("%s (%d₽)", svc.Name, svc.Price)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, prefixService+svc.ID),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbMainMenu),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func staffKeyboard(staff []catalog.Staff) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
	for _, st := range staff {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(st.Name, prefixStaff+st.ID))
		if len(row) == 2 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 2)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back to services", cbBack),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// monthKeyboard renders a Monday-first month grid. Days before today are
// inert; slot resolution filters past times on the selected day itself.
func monthKeyboard(month, today time.Time) tgbotapi.InlineKeyboardMarkup {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	prev := first.AddDate(0, -1, 0)
	next := first.AddDate(0, 1, 0)
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, month.Location())

	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("«", prefixMonth+prev.Format("2006-01")),
			tgbotapi.NewInlineKeyboardButtonData(first.Format("Jan 2006"), cbNoop),
			tgbotapi.NewInlineKeyboardButtonData("»", prefixMonth+next.Format("2006-01")),
		},
	}

	header := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, wd := range []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"} {
		header = append(header, tgbotapi.NewInlineKeyboardButtonData(wd, cbNoop))
	}
	rows = append(rows, header)

	blank := tgbotapi.NewInlineKeyboardButtonData(" ", cbNoop)
	week := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for i := 0; i < mondayIndex(first.Weekday()); i++ {
		week = append(week, blank)
	}
	for day := first; day.Month() == first.Month(); day = day.AddDate(0, 0, 1) {
		btn := blank
		if !day.Before(todayDate) {
			btn = tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%d", day.Day()),
				prefixDay+day.Format("2006-01-02"),
			)
		}
		week = append(week, btn)
		if len(week) == 7 {
			rows = append(rows, week)
			week = make([]tgbotapi.InlineKeyboardButton, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, blank)
		}
		rows = append(rows, week)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back to staff", cbBack),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func slotsKeyboard(slots []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	row := make([]tgbotapi.InlineKeyboardButton, 0, 4)
	for _, slot := range slots {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(slot, prefixSlot+slot))
		if len(row) == 4 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 4)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Change date", cbBack),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", cbConfirm),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Start over", cbRestart),
		),
	)
}

func cancelKeyboard(r booking.Reservation) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", prefixCancel+r.EventID),
		),
	)
}

// mondayIndex maps time.Weekday to a Monday-first column index.
func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
