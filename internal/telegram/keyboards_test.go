package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beryozskin/studio-bot/internal/catalog"
)

func TestMonthKeyboardGrid(t *testing.T) {
	// September 2026 starts on a Tuesday and has 30 days.
	month := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	kb := monthKeyboard(month, today)
	rows := kb.InlineKeyboard

	// Nav row, weekday header, 5 week rows, back row.
	require.Len(t, rows, 8)

	assert.Equal(t, "Sep 2026", rows[0][1].Text)
	assert.Equal(t, prefixMonth+"2026-08", *rows[0][0].CallbackData)
	assert.Equal(t, prefixMonth+"2026-10", *rows[0][2].CallbackData)

	var dayButtons, blanks int
	for _, week := range rows[2 : len(rows)-1] {
		require.Len(t, week, 7)
		for _, btn := range week {
			if strings.HasPrefix(deref(btn.CallbackData), prefixDay) {
				dayButtons++
			} else {
				blanks++
			}
		}
	}
	assert.Equal(t, 30, dayButtons)

	// First selectable day is the 1st: offset by one blank for Monday.
	assert.Equal(t, " ", rows[2][0].Text)
	assert.Equal(t, prefixDay+"2026-09-01", deref(rows[2][1].CallbackData))
}

func TestMonthKeyboardDisablesPastDays(t *testing.T) {
	month := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2026, 9, 15, 9, 30, 0, 0, time.UTC)

	kb := monthKeyboard(month, today)

	var selectable []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			data := deref(btn.CallbackData)
			if strings.HasPrefix(data, prefixDay) {
				selectable = append(selectable, strings.TrimPrefix(data, prefixDay))
			}
		}
	}

	require.NotEmpty(t, selectable)
	assert.Equal(t, "2026-09-15", selectable[0], "today stays selectable")
	for _, day := range selectable {
		assert.GreaterOrEqual(t, day, "2026-09-15")
	}
}

func TestSlotsKeyboardRows(t *testing.T) {
	slots := []string{"10:00", "10:30", "11:00", "11:30", "12:00"}
	kb := slotsKeyboard(slots)
	rows := kb.InlineKeyboard

	// Four per row, remainder row, back row.
	require.Len(t, rows, 3)
	assert.Len(t, rows[0], 4)
	assert.Len(t, rows[1], 1)
	assert.Equal(t, prefixSlot+"10:00", deref(rows[0][0].CallbackData))
	assert.Equal(t, cbBack, deref(rows[2][0].CallbackData))
}

func TestServicesKeyboardShowsPrices(t *testing.T) {
	kb := servicesKeyboard(catalog.Default().ServicesInCategory("face"))
	rows := kb.InlineKeyboard

	require.GreaterOrEqual(t, len(rows), 2)
	var found bool
	for _, row := range rows {
		if strings.Contains(row[0].Text, "Cleansing (1500₽)") {
			found = true
			assert.Equal(t, prefixService+"cleansing", deref(row[0].CallbackData))
		}
	}
	assert.True(t, found, "cleansing with its price must be listed")
	assert.Equal(t, cbMainMenu, deref(rows[len(rows)-1][0].CallbackData))
}

func TestMainMenuKeyboard(t *testing.T) {
	kb := mainMenuKeyboard(350)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, cbBookStart, deref(kb.InlineKeyboard[0][0].CallbackData))
	assert.Contains(t, kb.InlineKeyboard[1][0].Text, "350")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
