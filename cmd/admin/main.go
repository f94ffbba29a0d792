package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	persistlog "voxelsession.ai/internal/persistence/log"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "state":
			stateCmd(os.Args[2:])
			return
		case "violations":
			violationsCmd(os.Args[2:])
			return
		case "disconnects":
			disconnectsCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		}
	}
	auditCmd(os.Args[1:])
}

// auditCmd prints audit entries from the compressed JSONL log.
func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	player := fs.String("player", "", "player id filter (optional)")
	kind := fs.String("kind", "", "entry kind: violation or disconnect (optional)")
	reason := fs.String("reason", "", "violation kind or disconnect reason filter (optional)")
	sinceTick := fs.Uint64("since_tick", 0, "only entries at or after this tick")
	_ = fs.Parse(args)

	entries, err := persistlog.ReadAudit(*dataDir, auditFilter(*player, *kind, *reason, *sinceTick))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Printf("%s tick=%d %-10s %-20s player=%s name=%s %s\n",
			time.UnixMilli(e.At).UTC().Format(time.RFC3339), e.Tick, e.Kind, e.Reason, e.PlayerID, e.Name, e.Detail)
	}
}

func auditFilter(player, kind, reason string, sinceTick uint64) func(persistlog.AuditEntry) bool {
	player = strings.TrimSpace(player)
	kind = strings.ToLower(strings.TrimSpace(kind))
	reason = strings.TrimSpace(reason)
	return func(e persistlog.AuditEntry) bool {
		if player != "" && e.PlayerID != player {
			return false
		}
		if kind != "" && e.Kind != kind {
			return false
		}
		if reason != "" && e.Reason != reason {
			return false
		}
		return e.Tick >= sinceTick
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
