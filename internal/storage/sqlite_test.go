package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/riskgate/internal/ir"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.CreateSchema())
	return db
}

func decision(id string, at time.Time, blocked bool) *ir.GateDecision {
	return &ir.GateDecision{
		ScanID:        id,
		CreatedAt:     at,
		Source:        "pr-1",
		EngineVersion: ir.Version,
		CorpusVersion: "test",
		Blocked:       blocked,
		Findings: []ir.Finding{
			{ID: id + "-f1", RuleID: "A5", Class: "A", Category: "error-handling",
				File: "w.py", StartLine: 2, EndLine: 2, Level: ir.LevelBlocking,
				State: ir.StateActive, Confidence: 1, Message: "m", Evidence: "except:"},
		},
		Suppressed: []ir.Finding{
			{ID: id + "-f2", RuleID: "B1", Class: "B", Category: "magic-number",
				File: "w.py", StartLine: 5, EndLine: 5,
				State: ir.StateSuppressed, Confidence: 1, Message: "m"},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db := testDB(t)
	d := decision("scan-1", time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), true)
	require.NoError(t, db.SaveDecision(d))

	back, err := db.LoadDecision("scan-1")
	require.NoError(t, err)
	assert.Equal(t, d.ScanID, back.ScanID)
	assert.True(t, back.Blocked)
	require.Len(t, back.Findings, 1)
	assert.Equal(t, "A5", back.Findings[0].RuleID)
	require.Len(t, back.Suppressed, 1)
}

func TestSaveDecision_UpsertReplacesFindings(t *testing.T) {
	db := testDB(t)
	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveDecision(decision("scan-1", at, true)))

	d2 := decision("scan-1", at, false)
	d2.Findings = nil
	require.NoError(t, db.SaveDecision(d2))

	items, err := db.ListFindings("scan-1", false)
	require.NoError(t, err)
	assert.Len(t, items, 1, "only the suppressed row survives the rewrite")

	back, err := db.LoadDecision("scan-1")
	require.NoError(t, err)
	assert.False(t, back.Blocked)
}

func TestListScans_NewestFirst(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"scan-a", "scan-b", "scan-c"} {
		require.NoError(t, db.SaveDecision(decision(id, base.Add(time.Duration(i)*time.Minute), i%2 == 0)))
	}

	rows, err := db.ListScans(10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "scan-c", rows[0].ID)
	assert.Equal(t, "scan-a", rows[2].ID)
	assert.Equal(t, 2, rows[0].Findings, "count covers active and suppressed")

	rows, err = db.ListScans(1, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "scan-b", rows[0].ID)
}

func TestListFindings_BlockingOnly(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.SaveDecision(decision("scan-1", time.Now(), true)))

	all, err := db.ListFindings("scan-1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	blocking, err := db.ListFindings("scan-1", true)
	require.NoError(t, err)
	require.Len(t, blocking, 1)
	assert.Equal(t, "A5", blocking[0].RuleID)
}

func TestLoadLatestDecision(t *testing.T) {
	db := testDB(t)
	_, err := db.LoadLatestDecision()
	require.Error(t, err, "empty store has no latest")

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveDecision(decision("scan-old", base, false)))
	require.NoError(t, db.SaveDecision(decision("scan-new", base.Add(time.Hour), true)))

	d, err := db.LoadLatestDecision()
	require.NoError(t, err)
	assert.Equal(t, "scan-new", d.ScanID)
}

func TestHasScan(t *testing.T) {
	db := testDB(t)
	ok, err := db.HasScan("scan-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.SaveDecision(decision("scan-1", time.Now(), false)))
	ok, err = db.HasScan("scan-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUsersAndSessions(t *testing.T) {
	db := testDB(t)
	id, err := db.CreateUser("ops", "hash", "admin")
	require.NoError(t, err)

	u, hash, err := db.GetUserByUsername("ops")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "hash", hash)
	assert.Equal(t, "admin", u.Role)

	require.NoError(t, db.CreateSession(id, "tok", time.Now().Add(time.Hour)))
	su, err := db.GetSession("tok")
	require.NoError(t, err)
	assert.Equal(t, "ops", su.Username)

	require.NoError(t, db.DeleteSession("tok"))
	_, err = db.GetSession("tok")
	assert.Error(t, err)

	require.NoError(t, db.CreateSession(id, "stale", time.Now().Add(-time.Hour)))
	_, err = db.GetSession("stale")
	assert.Error(t, err, "expired sessions do not resolve")
}
