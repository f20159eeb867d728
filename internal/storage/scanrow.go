package storage

import "time"

// ScanRow is a lightweight listing row for /scans.
type ScanRow struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Source        string    `json:"source,omitempty"`
	EngineVersion string    `json:"engine_version,omitempty"`
	Blocked       bool      `json:"blocked"`
	Findings      int       `json:"findings"`
}
