package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"voxelsession.ai/internal/session"
)

// SQLiteIndex is a queryable read model of violations and disconnects.
// Writes are queued and applied in batches by one goroutine; the audit
// JSONL stays the source of truth when the queue overflows.
type SQLiteIndex struct {
	db  *sql.DB
	log *zap.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// sendMu orders queue sends against close(ch).
	sendMu sync.RWMutex
	closed atomic.Bool

	dropViolation  atomic.Uint64
	dropDisconnect atomic.Uint64
}

type reqKind int

const (
	reqViolation reqKind = iota + 1
	reqDisconnect
)

type req struct {
	kind       reqKind
	violation  session.Violation
	disconnect session.DisconnectRecord
}

type Stats struct {
	QueueDepth          int    `json:"queue_depth"`
	QueueCapacity       int    `json:"queue_capacity"`
	DropViolationTotal  uint64 `json:"drop_violation_total"`
	DropDisconnectTotal uint64 `json:"drop_disconnect_total"`
}

func OpenSQLite(path string, log *zap.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:  db,
		log: log,
		ch:  make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS violations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at_ms INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			player_id TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			moved_sq REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_violations_player ON violations(player_id, at_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_violations_kind ON violations(kind, at_ms);`,
		`CREATE TABLE IF NOT EXISTS disconnects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at_ms INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			player_id TEXT NOT NULL,
			name TEXT NOT NULL,
			reason TEXT NOT NULL,
			detail TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_disconnects_reason ON disconnects(reason, at_ms);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue, commits and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.sendMu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.sendMu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) RecordViolation(v session.Violation) {
	if s == nil {
		return
	}
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqViolation, violation: v}:
	default:
		s.dropViolation.Add(1)
	}
}

func (s *SQLiteIndex) RecordDisconnect(d session.DisconnectRecord) {
	if s == nil {
		return
	}
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqDisconnect, disconnect: d}:
	default:
		s.dropDisconnect.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:          len(s.ch),
		QueueCapacity:       cap(s.ch),
		DropViolationTotal:  s.dropViolation.Load(),
		DropDisconnectTotal: s.dropDisconnect.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertViolation, err := s.db.Prepare(`INSERT INTO violations(at_ms,tick,player_id,name,kind,x,y,z,moved_sq) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		s.log.Error("index prepare violations insert failed", zap.Error(err))
	}
	insertDisconnect, err := s.db.Prepare(`INSERT INTO disconnects(at_ms,tick,player_id,name,reason,detail) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		s.log.Error("index prepare disconnects insert failed", zap.Error(err))
	}
	defer func() {
		if insertViolation != nil {
			_ = insertViolation.Close()
		}
		if insertDisconnect != nil {
			_ = insertDisconnect.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.log.Warn("index begin failed", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.log.Warn("index commit failed", zap.Error(err))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.log.Warn("index write failed", zap.Error(err))
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqViolation:
			v := r.violation
			if insertViolation == nil {
				continue
			}
			if _, err := tx.Stmt(insertViolation).Exec(
				v.At.UnixMilli(),
				int64(v.Tick),
				v.PlayerID,
				v.Name,
				v.Kind,
				v.Pos.X, v.Pos.Y, v.Pos.Z,
				v.Moved,
			); err != nil {
				rollback(err)
				continue
			}
			opCount++

		case reqDisconnect:
			d := r.disconnect
			if insertDisconnect == nil {
				continue
			}
			if _, err := tx.Stmt(insertDisconnect).Exec(
				d.At.UnixMilli(),
				int64(d.Tick),
				d.PlayerID,
				d.Name,
				d.Reason,
				d.Detail,
			); err != nil {
				rollback(err)
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
