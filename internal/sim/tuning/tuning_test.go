package tuning

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaults_Valid(t *testing.T) {
	d := Defaults()
	if err := d.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if d.Chat.MaxPendingChats != 4096 || d.Chat.LastSeenCapacity != 20 || d.Movement.MoveBudget != 100 {
		t.Fatalf("unexpected defaults: %+v", d)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	raw := []byte("tick_rate_hz: 10\nmovement:\n  move_budget: 150\nchat:\n  banned_words: [\"foo\", \"bar\"]\n  enforce_secure_chat: false\n")
	if err := os.WriteFile(p, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TickRateHz != 10 || got.Movement.MoveBudget != 150 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.Movement.GlideMoveBudget != 300 || got.Chat.MaxPendingChats != 4096 {
		t.Fatalf("defaults lost: %+v", got)
	}
	if len(got.Chat.BannedWords) != 2 || got.Chat.EnforceSecureChat {
		t.Fatalf("chat section: %+v", got.Chat)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(p, []byte("chat:\n  last_seen_capacity: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestLoad_ShippedConfigMatchesDefaults(t *testing.T) {
	got, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Defaults()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("configs/tuning.yaml drifted from Defaults:\n got=%+v\nwant=%+v", got, want)
	}
}
