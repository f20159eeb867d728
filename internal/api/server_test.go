package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/riskgate/internal/corpus"
	"github.com/codewithboateng/riskgate/internal/detect"
	"github.com/codewithboateng/riskgate/internal/ir"
	"github.com/codewithboateng/riskgate/internal/policy"
	"github.com/codewithboateng/riskgate/internal/security"
	"github.com/codewithboateng/riskgate/internal/storage"
)

const testPack = `
version: "test"
rules:
  - id: A5
    class: A
    category: error-handling
    summary: no bare except
    message: bare except swallows every error
    languages: [python]
    blocking: always
    matchers:
      - kind: regex
        pattern: 'except\s*:'
`

const pyDiff = `--- a/svc/worker.py
+++ b/svc/worker.py
@@ -1,1 +1,3 @@
 import os
+except:
+    pass
`

func testServer(t *testing.T) (*Server, http.Handler, *storage.DB) {
	t.Helper()

	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.CreateSchema())

	c, err := corpus.Load([]byte(testPack))
	require.NoError(t, err)

	s := &Server{
		DB:        db,
		UserStore: db,
		Corpus:    corpus.NewStore(c),
		Policy: &policy.Config{
			Classes:    map[string]policy.Entry{"A": {Level: ir.LevelBlocking}},
			Categories: map[string]policy.Entry{"error-handling": {Level: ir.LevelBlocking}},
		},
		Detector:        detect.DefaultOptions(),
		Logger:          slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil)),
		AllowedOrigins:  []string{"*"},
		SessionDuration: time.Hour,
	}
	return s, s.Routes(), db
}

func login(t *testing.T, h http.Handler, db *storage.DB) *http.Cookie {
	t.Helper()
	hash, err := security.HashPassword("hunter2secret")
	require.NoError(t, err)
	_, err = db.CreateUser("ops", hash, "admin")
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"username": "ops", "password": "hunter2secret"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookie {
			return ck
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestHealth(t *testing.T) {
	_, h, _ := testServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRulesInventory(t *testing.T) {
	_, h, _ := testServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Count int `json:"count"`
		Items []struct {
			ID       string `json:"id"`
			Blocking string `json:"blocking"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "A5", out.Items[0].ID)
	assert.Equal(t, "always", out.Items[0].Blocking)
}

func TestLogin_BadCredentials(t *testing.T) {
	_, h, db := testServer(t)
	hash, err := security.HashPassword("hunter2secret")
	require.NoError(t, err)
	_, err = db.CreateUser("ops", hash, "admin")
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"username": "ops", "password": "wrong"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitScan_RequiresAuth(t *testing.T) {
	_, h, _ := testServer(t)
	body, _ := json.Marshal(map[string]string{"diff": pyDiff})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/scans", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitScan_RoundTrip(t *testing.T) {
	_, h, db := testServer(t)
	ck := login(t, h, db)

	body, _ := json.Marshal(map[string]string{"source": "pr-42", "diff": pyDiff})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", bytes.NewReader(body))
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var d ir.GateDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.True(t, d.Blocked)
	require.Len(t, d.Findings, 1)
	assert.Equal(t, "A5", d.Findings[0].RuleID)

	// persisted and readable without auth
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+d.ScanID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var back ir.GateDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &back))
	assert.Equal(t, d.ScanID, back.ScanID)
	assert.True(t, back.Blocked)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scans/latest", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+d.ScanID+"/findings?blocking=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var fl struct {
		Items []ir.Finding `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fl))
	require.Len(t, fl.Items, 1)
	assert.Equal(t, ir.LevelBlocking, fl.Items[0].Level)
}

func TestSubmitScan_MalformedDiff422(t *testing.T) {
	_, h, db := testServer(t)
	ck := login(t, h, db)

	body, _ := json.Marshal(map[string]string{"diff": "not a diff\n"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", bytes.NewReader(body))
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubmitScan_MissingDiff(t *testing.T) {
	_, h, db := testServer(t)
	ck := login(t, h, db)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", bytes.NewReader([]byte(`{}`)))
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanNotFound(t *testing.T) {
	_, h, _ := testServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scans/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListScans_Empty(t *testing.T) {
	_, h, _ := testServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scans?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 5, out.Limit)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	_, h, db := testServer(t)
	ck := login(t, h, db)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.AddCookie(ck)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
