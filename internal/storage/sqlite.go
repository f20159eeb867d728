package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/codewithboateng/riskgate/internal/ir"
)

// DB is the concrete scan-history store backed by SQLite. Per-scan
// entities live and die inside the engine; only the terminal GateDecision
// is persisted here, for audit and cross-scan diffing.
type DB struct {
	conn *sql.DB
}

// OpenSQLite opens (and creates if missing) a SQLite DB at path.
func OpenSQLite(path string) (*DB, error) {
	// Pragmas via DSN keep it portable with the modernc driver.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	c, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{conn: c}, nil
}

func (db *DB) Close() error { return db.conn.Close() }

// CreateSchema ensures tables exist.
func (db *DB) CreateSchema() error {
	_, err := db.conn.Exec(`
CREATE TABLE IF NOT EXISTS scans (
  id             TEXT PRIMARY KEY,
  created_at     TEXT,          -- RFC3339
  source         TEXT,
  engine_version TEXT,
  corpus_version TEXT,
  blocked        INTEGER NOT NULL DEFAULT 0,
  decision_json  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS findings (
  id         TEXT,
  scan_id    TEXT NOT NULL,
  rule_id    TEXT,
  class      TEXT,
  category   TEXT,
  file       TEXT,
  start_line INTEGER,
  end_line   INTEGER,
  level      TEXT,
  state      TEXT,
  confidence REAL,
  message    TEXT,
  evidence   TEXT,
  PRIMARY KEY (id, scan_id),
  FOREIGN KEY(scan_id) REFERENCES scans(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_findings_scan ON findings(scan_id);
CREATE INDEX IF NOT EXISTS idx_findings_rule ON findings(rule_id);

CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT UNIQUE NOT NULL,
  pass_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'viewer',
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
  token TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL,
  expires_at TEXT NOT NULL,
  created_at TEXT NOT NULL,
  FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS audit (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts TEXT NOT NULL,
  username TEXT,
  action TEXT NOT NULL,
  resource TEXT,
  meta_json TEXT
);
`)
	return err
}

// SaveDecision upserts a gate decision and (re)writes its flattened
// findings rows, active and suppressed alike.
func (db *DB) SaveDecision(d *ir.GateDecision) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	ts := d.CreatedAt.UTC().Format(time.RFC3339Nano)

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	blocked := 0
	if d.Blocked {
		blocked = 1
	}
	if _, err := tx.Exec(
		`INSERT INTO scans (id, created_at, source, engine_version, corpus_version, blocked, decision_json)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET created_at=excluded.created_at, source=excluded.source,
           engine_version=excluded.engine_version, corpus_version=excluded.corpus_version,
           blocked=excluded.blocked, decision_json=excluded.decision_json`,
		d.ScanID, ts, d.Source, d.EngineVersion, d.CorpusVersion, blocked, string(b),
	); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM findings WHERE scan_id = ?`, d.ScanID); err != nil {
		return err
	}
	all := make([]ir.Finding, 0, len(d.Findings)+len(d.Suppressed))
	all = append(all, d.Findings...)
	all = append(all, d.Suppressed...)
	if len(all) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO findings
			(id, scan_id, rule_id, class, category, file, start_line, end_line, level, state, confidence, message, evidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, f := range all {
			if _, err := stmt.Exec(
				f.ID,
				d.ScanID,
				f.RuleID,
				f.Class,
				f.Category,
				f.File,
				f.StartLine,
				f.EndLine,
				f.Level,
				f.State,
				f.Confidence,
				f.Message,
				f.Evidence,
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// LoadDecision returns the full gate decision (from stored JSON).
func (db *DB) LoadDecision(id string) (ir.GateDecision, error) {
	var s string
	row := db.conn.QueryRow(`SELECT decision_json FROM scans WHERE id = ?`, id)
	if err := row.Scan(&s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.GateDecision{}, err
		}
		return ir.GateDecision{}, err
	}
	var d ir.GateDecision
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return ir.GateDecision{}, err
	}
	return d, nil
}
