package log

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"voxelsession.ai/internal/session"
)

func TestReadAudit_AcrossHoursWithFilter(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir, zaptest.NewLogger(t))
	now := time.Date(2026, 5, 1, 8, 58, 0, 0, time.UTC)
	l.w.now = func() time.Time { return now }

	l.RecordViolation(session.Violation{PlayerID: "p1", Kind: "speed", Tick: 1, At: now})
	l.RecordDisconnect(session.DisconnectRecord{PlayerID: "p2", Reason: "timeout", Tick: 2, At: now})
	now = now.Add(5 * time.Minute)
	l.RecordViolation(session.Violation{PlayerID: "p1", Kind: "wrong_move", Tick: 3, At: now})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	all, err := ReadAudit(dir, nil)
	if err != nil {
		t.Fatalf("ReadAudit: %v", err)
	}
	if len(all) != 3 || all[0].Tick != 1 || all[2].Tick != 3 {
		t.Fatalf("all=%+v", all)
	}
	p1, err := ReadAudit(dir, func(e AuditEntry) bool { return e.PlayerID == "p1" && e.Kind == KindViolation })
	if err != nil {
		t.Fatalf("ReadAudit filtered: %v", err)
	}
	if len(p1) != 2 || p1[1].Reason != "wrong_move" {
		t.Fatalf("p1=%+v", p1)
	}
	if _, err := ReadAudit(t.TempDir(), nil); err == nil {
		t.Fatalf("expected error for missing audit dir")
	}
}
