package main

import (
	"log/slog"
	"time"

	"github.com/codewithboateng/riskgate/internal/api"
	"github.com/codewithboateng/riskgate/internal/corpus"
	"github.com/codewithboateng/riskgate/internal/detect"
	"github.com/codewithboateng/riskgate/internal/shared"
	"github.com/codewithboateng/riskgate/internal/storage"
)

func newServer(db *storage.DB, snap *corpus.Corpus, cfg shared.Config, logger *slog.Logger) *api.Server {
	return &api.Server{
		DB:              db,
		UserStore:       db,
		Corpus:          corpus.NewStore(snap),
		Policy:          &cfg.Policy,
		Detector:        detect.Options{Workers: cfg.Detector.Workers, CommentConfidence: cfg.Detector.CommentConfidence},
		Logger:          logger,
		AllowedOrigins:  cfg.API.AllowedOrigins,
		SessionDuration: time.Duration(cfg.API.SessionHours) * time.Hour,
	}
}
