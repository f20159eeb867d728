package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codewithboateng/riskgate/internal/corpus"
	"github.com/codewithboateng/riskgate/internal/detect"
	"github.com/codewithboateng/riskgate/internal/ir"
	"github.com/codewithboateng/riskgate/internal/policy"
	"github.com/codewithboateng/riskgate/internal/storage"
)

// Store is the minimal contract the API needs.
type Store interface {
	ListScans(limit, offset int) ([]storage.ScanRow, error)
	LoadDecision(id string) (ir.GateDecision, error)
	LoadLatestDecision() (ir.GateDecision, error)
	ListFindings(scanID string, blockingOnly bool) ([]ir.Finding, error)
	SaveDecision(d *ir.GateDecision) error
}

// UserStore is the auth/audit contract the API uses.
type UserStore interface {
	GetUserByUsername(string) (storage.User, string, error)
	CreateSession(int64, string, time.Time) error
	GetSession(string) (storage.User, error)
	DeleteSession(string) error
	LogAudit(username, action, resource string, meta map[string]any) error
}

type Server struct {
	DB              Store
	UserStore       UserStore
	Corpus          *corpus.Store
	Policy          *policy.Config
	Detector        detect.Options
	Logger          *slog.Logger
	AllowedOrigins  []string
	SessionDuration time.Duration
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	withCORS := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", s.pickCORSOrigin(r))
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS, POST")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			h(w, r)
		}
	}

	// Health
	mux.HandleFunc("GET /api/v1/health", withCORS(s.handleHealth))

	// Auth
	mux.HandleFunc("POST /api/v1/auth/login", withCORS(s.handleLogin))
	mux.HandleFunc("POST /api/v1/auth/logout", withCORS(withAuth(s, s.handleLogout, "auth:logout")))
	mux.HandleFunc("GET /api/v1/me", withCORS(withAuth(s, s.handleMe, "me")))

	// Scans
	mux.HandleFunc("GET /api/v1/scans", withCORS(s.handleListScans))
	mux.HandleFunc("GET /api/v1/scans/latest", withCORS(s.handleGetLatest))
	mux.HandleFunc("GET /api/v1/scans/{id}", withCORS(s.handleGetScan))
	mux.HandleFunc("GET /api/v1/scans/{id}/findings", withCORS(s.handleListFindings))
	mux.HandleFunc("POST /api/v1/scans", withCORS(withAuth(s, s.handleSubmitScan, "scans:submit")))

	// Rules inventory
	mux.HandleFunc("GET /api/v1/rules", withCORS(s.handleRules))

	// Fallback 404
	mux.HandleFunc("/", withCORS(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	return mux
}

func (s *Server) pickCORSOrigin(r *http.Request) string {
	if len(s.AllowedOrigins) == 0 {
		return "*"
	}
	origin := r.Header.Get("Origin")
	for _, ao := range s.AllowedOrigins {
		if ao == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(origin, ao) {
			return origin
		}
	}
	return ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := clamp(parseInt(q.Get("limit"), 20), 1, 200)
	offset := parseInt(q.Get("offset"), 0)

	rows, err := s.DB.ListScans(limit, offset)
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": rows, "limit": limit, "offset": offset,
	})
}

func (s *Server) handleGetLatest(w http.ResponseWriter, r *http.Request) {
	d, err := s.DB.LoadLatestDecision()
	if err != nil {
		s.err(w, http.StatusNotFound, "no scans")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := s.DB.LoadDecision(id)
	if err != nil {
		s.err(w, http.StatusNotFound, "scan not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	blocking := r.URL.Query().Get("blocking")
	only := blocking == "1" || blocking == "true" || blocking == "yes"
	items, err := s.DB.ListFindings(id, only)
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scan_id": id, "blocking_only": only, "items": items,
	})
}

// GET /api/v1/rules (ids + metadata; no auth needed for read-only)
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	type R struct {
		ID       string `json:"id"`
		Class    string `json:"class"`
		Category string `json:"category"`
		Summary  string `json:"summary"`
		Blocking string `json:"blocking"`
	}
	var out []R
	for _, rr := range s.Corpus.Snapshot().Rules() {
		out = append(out, R{ID: rr.ID, Class: rr.Class, Category: rr.Category, Summary: rr.Summary, Blocking: rr.Blocking})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "count": len(out)})
}

func (s *Server) err(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
