package log

import (
	"path/filepath"

	"go.uber.org/zap"

	"voxelsession.ai/internal/session"
)

const (
	KindViolation  = "violation"
	KindDisconnect = "disconnect"
)

// AuditEntry is one line of the audit log.
type AuditEntry struct {
	Kind     string     `json:"kind"`
	At       int64      `json:"at_ms"`
	Tick     uint64     `json:"tick"`
	PlayerID string     `json:"player_id"`
	Name     string     `json:"name"`
	Reason   string     `json:"reason,omitempty"`
	Detail   string     `json:"detail,omitempty"`
	Pos      [3]float64 `json:"pos,omitempty"`
	Moved    float64    `json:"moved_sq,omitempty"`
}

// AuditLogger records violations and disconnects as compressed JSONL
// under <dir>/audit.
type AuditLogger struct {
	w   *JSONLZstdWriter
	log *zap.Logger
}

func NewAuditLogger(dir string, log *zap.Logger) *AuditLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(dir, "audit"), "audit"), log: log}
}

func (l *AuditLogger) RecordViolation(v session.Violation) {
	l.write(AuditEntry{
		Kind:     KindViolation,
		At:       v.At.UnixMilli(),
		Tick:     v.Tick,
		PlayerID: v.PlayerID,
		Name:     v.Name,
		Reason:   v.Kind,
		Pos:      v.Pos.ToArray(),
		Moved:    v.Moved,
	})
}

func (l *AuditLogger) RecordDisconnect(d session.DisconnectRecord) {
	l.write(AuditEntry{
		Kind:     KindDisconnect,
		At:       d.At.UnixMilli(),
		Tick:     d.Tick,
		PlayerID: d.PlayerID,
		Name:     d.Name,
		Reason:   d.Reason,
		Detail:   d.Detail,
	})
}

func (l *AuditLogger) write(e AuditEntry) {
	if err := l.w.Write(e); err != nil {
		l.log.Error("audit write failed", zap.String("kind", e.Kind), zap.Error(err))
	}
}

func (l *AuditLogger) Close() error { return l.w.Close() }
