package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.WorkdayStart != "10:00" || cfg.WorkdayEnd != "20:00" {
		t.Errorf("working window = %s-%s, want 10:00-20:00", cfg.WorkdayStart, cfg.WorkdayEnd)
	}
	if cfg.SlotGranularity != 30*time.Minute {
		t.Errorf("SlotGranularity = %s, want 30m", cfg.SlotGranularity)
	}
	if cfg.SlotBlockWidth != 60*time.Minute {
		t.Errorf("SlotBlockWidth = %s, want 1h", cfg.SlotBlockWidth)
	}
	if cfg.RevalidateOnCommit {
		t.Error("RevalidateOnCommit should default to false")
	}
	if cfg.ExternalCallTimeout <= 0 {
		t.Error("ExternalCallTimeout must be bounded")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SLOT_GRANULARITY", "15m")
	t.Setenv("OPERATOR_CHAT_ID", "-100200300")
	t.Setenv("REVALIDATE_ON_COMMIT", "true")
	t.Setenv("TIME_ZONE", "Europe/Berlin")

	cfg := Load()

	if cfg.SlotGranularity != 15*time.Minute {
		t.Errorf("SlotGranularity = %s, want 15m", cfg.SlotGranularity)
	}
	if cfg.OperatorChatID != -100200300 {
		t.Errorf("OperatorChatID = %d, want -100200300", cfg.OperatorChatID)
	}
	if !cfg.RevalidateOnCommit {
		t.Error("RevalidateOnCommit override not applied")
	}
	if cfg.TimeZone != "Europe/Berlin" {
		t.Errorf("TimeZone = %s, want Europe/Berlin", cfg.TimeZone)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SLOT_BLOCK_WIDTH", "not-a-duration")
	t.Setenv("OPERATOR_CHAT_ID", "abc")

	cfg := Load()

	if cfg.SlotBlockWidth != 60*time.Minute {
		t.Errorf("SlotBlockWidth = %s, want default 1h", cfg.SlotBlockWidth)
	}
	if cfg.OperatorChatID != 0 {
		t.Errorf("OperatorChatID = %d, want default 0", cfg.OperatorChatID)
	}
}
