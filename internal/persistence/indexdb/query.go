package indexdb

import (
	"context"
	"time"
)

type ViolationRow struct {
	At       time.Time  `json:"at"`
	Tick     uint64     `json:"tick"`
	PlayerID string     `json:"player_id"`
	Name     string     `json:"name"`
	Kind     string     `json:"kind"`
	Pos      [3]float64 `json:"pos"`
	MovedSq  float64    `json:"moved_sq"`
}

// Violations returns the newest violations of one player, newest first.
func (s *SQLiteIndex) Violations(ctx context.Context, playerID string, limit int) ([]ViolationRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at_ms,tick,player_id,name,kind,x,y,z,moved_sq FROM violations
		 WHERE player_id = ? ORDER BY at_ms DESC, id DESC LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ViolationRow
	for rows.Next() {
		var r ViolationRow
		var at, tick int64
		if err := rows.Scan(&at, &tick, &r.PlayerID, &r.Name, &r.Kind, &r.Pos[0], &r.Pos[1], &r.Pos[2], &r.MovedSq); err != nil {
			return nil, err
		}
		r.At = time.UnixMilli(at).UTC()
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DisconnectCounts returns the number of disconnects per reason.
func (s *SQLiteIndex) DisconnectCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT reason, COUNT(*) FROM disconnects GROUP BY reason`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[reason] = n
	}
	return out, rows.Err()
}
