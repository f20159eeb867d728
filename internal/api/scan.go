package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/codewithboateng/riskgate/internal/corpus"
	"github.com/codewithboateng/riskgate/internal/diffseg"
	"github.com/codewithboateng/riskgate/internal/engine"
	"github.com/codewithboateng/riskgate/internal/policy"
)

type scanReq struct {
	Source string `json:"source,omitempty"`
	Diff   string `json:"diff"`
}

// POST /api/v1/scans — gate an already-extracted unified diff
// synchronously. The caller owns fetching the diff and posting the
// verdict anywhere; this endpoint only classifies and stores.
func (s *Server) handleSubmitScan(w http.ResponseWriter, r *http.Request) {
	var in scanReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.err(w, http.StatusBadRequest, "invalid json")
		return
	}
	if in.Diff == "" {
		s.err(w, http.StatusBadRequest, "diff required")
		return
	}

	d, err := engine.Scan(r.Context(), engine.Request{
		Source:   in.Source,
		DiffText: in.Diff,
		Snapshot: s.Corpus.Snapshot(),
		Policy:   s.Policy,
		Detector: s.Detector,
	})
	if err != nil {
		var dpe *diffseg.DiffParseError
		var rce *corpus.RuleCorpusError
		var cfe *policy.ConfigurationError
		switch {
		case errors.As(err, &dpe):
			s.err(w, http.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &rce), errors.As(err, &cfe):
			s.err(w, http.StatusInternalServerError, err.Error())
		default:
			s.err(w, http.StatusInternalServerError, "scan failed: "+err.Error())
		}
		return
	}

	if err := s.DB.SaveDecision(d); err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	if u, ok := userFromCtx(r.Context()); ok {
		_ = s.UserStore.LogAudit(u.Username, "scan:submit", "", map[string]any{
			"scan": d.ScanID, "blocked": d.Blocked, "findings": len(d.Findings),
		})
	}
	writeJSON(w, http.StatusCreated, d)
}
