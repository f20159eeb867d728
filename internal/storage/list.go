package storage

import (
	"database/sql"
	"time"

	"github.com/codewithboateng/riskgate/internal/ir"
)

// ListScans returns a lightweight list of scans with counts.
func (db *DB) ListScans(limit, offset int) ([]ScanRow, error) {
	const q = `
		SELECT s.id, s.created_at, s.source, s.engine_version, s.blocked,
		       (SELECT COUNT(1) FROM findings f WHERE f.scan_id = s.id) AS findings
		  FROM scans s
		 ORDER BY s.created_at DESC, s.id DESC
		 LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScanRow
	for rows.Next() {
		var sr ScanRow
		var createdAtStr string
		var blocked int
		if err := rows.Scan(&sr.ID, &createdAtStr, &sr.Source, &sr.EngineVersion, &blocked, &sr.Findings); err != nil {
			return nil, err
		}
		sr.Blocked = blocked != 0
		// Parse RFC3339Nano first, fallback to RFC3339
		if t, err := time.Parse(time.RFC3339Nano, createdAtStr); err == nil {
			sr.CreatedAt = t
		} else if t2, err2 := time.Parse(time.RFC3339, createdAtStr); err2 == nil {
			sr.CreatedAt = t2
		} else {
			sr.CreatedAt = time.Time{}
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

// ListFindings returns one scan's findings, optionally only blocking ones,
// in the same deterministic order the gate decision uses.
func (db *DB) ListFindings(scanID string, blockingOnly bool) ([]ir.Finding, error) {
	q := `
		SELECT id, rule_id, class, category, file, start_line, end_line, level, state, confidence, message, evidence
		  FROM findings
		 WHERE scan_id = ?`
	args := []any{scanID}
	if blockingOnly {
		q += ` AND level = ? AND state = ?`
		args = append(args, ir.LevelBlocking, ir.StateActive)
	}
	q += ` ORDER BY file, start_line, rule_id, id`
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ir.Finding
	for rows.Next() {
		var f ir.Finding
		if err := rows.Scan(&f.ID, &f.RuleID, &f.Class, &f.Category, &f.File, &f.StartLine, &f.EndLine, &f.Level, &f.State, &f.Confidence, &f.Message, &f.Evidence); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// LoadLatestDecision returns the most recent gate decision.
func (db *DB) LoadLatestDecision() (ir.GateDecision, error) {
	rows, err := db.ListScans(1, 0)
	if err != nil {
		return ir.GateDecision{}, err
	}
	if len(rows) == 0 {
		return ir.GateDecision{}, sql.ErrNoRows
	}
	return db.LoadDecision(rows[0].ID)
}

// HasScan reports whether a scan id exists.
func (db *DB) HasScan(id string) (bool, error) {
	const q = `SELECT 1 FROM scans WHERE id = ? LIMIT 1`
	var one int
	err := db.conn.QueryRow(q, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}
