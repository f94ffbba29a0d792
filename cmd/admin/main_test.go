package main

import (
	"testing"

	persistlog "voxelsession.ai/internal/persistence/log"
)

func TestAuditFilter(t *testing.T) {
	e := persistlog.AuditEntry{Kind: persistlog.KindDisconnect, PlayerID: "p1", Reason: "timeout", Tick: 40}
	cases := []struct {
		player, kind, reason string
		since                uint64
		want                 bool
	}{
		{"", "", "", 0, true},
		{"p1", "DISCONNECT", "", 0, true},
		{"p2", "", "", 0, false},
		{"", "violation", "", 0, false},
		{"", "", "flying", 0, false},
		{"", "", "timeout", 41, false},
		{" p1 ", "", "timeout", 40, true},
	}
	for i, c := range cases {
		if got := auditFilter(c.player, c.kind, c.reason, c.since)(e); got != c.want {
			t.Fatalf("case %d: got %v want %v", i, got, c.want)
		}
	}
}
