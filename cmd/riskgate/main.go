package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/codewithboateng/riskgate/internal/corpus"
	"github.com/codewithboateng/riskgate/internal/detect"
	"github.com/codewithboateng/riskgate/internal/engine"
	"github.com/codewithboateng/riskgate/internal/ir"
	"github.com/codewithboateng/riskgate/internal/reporting"
	"github.com/codewithboateng/riskgate/internal/security"
	"github.com/codewithboateng/riskgate/internal/shared"
	"github.com/codewithboateng/riskgate/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "scan":
		scanCmd(os.Args[2:])
	case "serve":
		serveCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "diff":
		diffCmd(os.Args[2:])
	case "rules":
		rulesCmd(os.Args[2:])
	case "user-add":
		userAddCmd(os.Args[2:])
	case "version":
		fmt.Println("riskgate - risk classification & gating engine, IR:", ir.Version)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `riskgate - Risk Classification & Gating Engine

Usage:
  riskgate scan     --diff <file|-> [--rules <pack.yaml>] [--out <reports-dir>] [--db ./riskgate.db] [--source <label>] [--timeout 60s] [--config ./configs/riskgate.yaml]
  riskgate serve    [--addr :8085] [--config ./configs/riskgate.yaml]
  riskgate report   --scan <scan-id> --out <reports-dir> [--db ./riskgate.db] [--config ./configs/riskgate.yaml]
  riskgate diff     --base <scan-id> --head <scan-id> --out <reports-dir> [--db ./riskgate.db] [--config ./configs/riskgate.yaml]
  riskgate rules    [--rules <pack.yaml>] [--config ./configs/riskgate.yaml]
  riskgate user-add --username <name> --password <pw> [--role viewer|admin] [--db ./riskgate.db]
  riskgate version

Exit codes for scan: 0 = pass, 1 = fatal error, 3 = blocked.
`)
}

func scanCmd(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	diffPath := fs.String("diff", "", "Unified diff file, or - for stdin")
	rulesPath := fs.String("rules", "", "Rule pack YAML")
	outDir := fs.String("out", "", "Output directory for reports")
	dbPath := fs.String("db", "", "SQLite database path")
	source := fs.String("source", "", "Source label stored with the scan")
	timeout := fs.Duration("timeout", 0, "Abort the scan after this duration (0 = none)")
	_ = fs.Parse(args)

	cfg, err := shared.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "scan:", err)
		os.Exit(1)
	}
	shared.InitLogger(cfg.Logging.Format, cfg.Logging.Level)

	// precedence: flags > config > defaults
	if *rulesPath == "" {
		*rulesPath = cfg.Rules.Pack
	}
	if *outDir == "" {
		*outDir = cfg.Reporting.OutDir
	}
	if *dbPath == "" {
		*dbPath = cfg.Database.DSN
	}
	if *diffPath == "" {
		fmt.Fprintln(os.Stderr, "scan: --diff is required (file path or - for stdin)")
		os.Exit(2)
	}

	diffText, err := readDiff(*diffPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "scan: read diff:", err)
		os.Exit(1)
	}

	snap, err := corpus.LoadFile(*rulesPath)
	if err != nil {
		slog.Error("rule corpus error", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	d, err := engine.Scan(ctx, engine.Request{
		Source:   *source,
		DiffText: diffText,
		Snapshot: snap,
		Policy:   &cfg.Policy,
		Detector: detect.Options{Workers: cfg.Detector.Workers, CommentConfidence: cfg.Detector.CommentConfidence},
	})
	if err != nil {
		slog.Error("scan failed", "err", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		slog.Error("cannot create out dir", "err", err)
		os.Exit(1)
	}

	db, err := storage.OpenSQLite(*dbPath)
	if err != nil {
		slog.Error("db open error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.CreateSchema(); err != nil {
		slog.Error("db schema error", "err", err)
		os.Exit(1)
	}
	if err := db.SaveDecision(d); err != nil {
		slog.Error("db save scan error", "err", err)
		os.Exit(1)
	}

	jsonPath, _ := reporting.WriteJSON(d.ScanID, *outDir, d)
	htmlPath, _ := reporting.WriteHTML(d.ScanID, *outDir, d)
	slog.Info("scan complete",
		"scan", d.ScanID,
		"blocked", d.Blocked,
		"findings", len(d.Findings),
		"suppressed", len(d.Suppressed),
		"json", jsonPath,
		"html", htmlPath,
		"db", filepath.Clean(*dbPath),
	)
	verdict := "PASS"
	if d.Blocked {
		verdict = "BLOCKED"
	}
	fmt.Printf("Scan %s\n  Verdict: %s\n  Findings: %d active, %d suppressed\n  JSON: %s\n  HTML: %s\n",
		d.ScanID, verdict, len(d.Findings), len(d.Suppressed), jsonPath, htmlPath)
	if d.Blocked {
		os.Exit(3)
	}
}

func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	addr := fs.String("addr", "", "Listen address")
	_ = fs.Parse(args)

	cfg, err := shared.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "serve:", err)
		os.Exit(1)
	}
	logger := shared.InitLogger(cfg.Logging.Format, cfg.Logging.Level)
	if *addr == "" {
		*addr = cfg.API.Addr
	}

	snap, err := corpus.LoadFile(cfg.Rules.Pack)
	if err != nil {
		slog.Error("rule corpus error", "err", err)
		os.Exit(1)
	}
	if err := cfg.Policy.Validate(snap); err != nil {
		slog.Error("policy config error", "err", err)
		os.Exit(1)
	}

	db, err := storage.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		slog.Error("db open error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.CreateSchema(); err != nil {
		slog.Error("db schema error", "err", err)
		os.Exit(1)
	}

	srv := newServer(db, snap, cfg, logger)
	httpSrv := &http.Server{Addr: *addr, Handler: srv.Routes()}

	go func() {
		slog.Info("api listening", "addr", *addr, "rules", snap.Len())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("listen error", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop
	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	scanID := fs.String("scan", "", "Scan ID")
	outDir := fs.String("out", "", "Output directory")
	dbPath := fs.String("db", "", "SQLite database path")
	_ = fs.Parse(args)

	cfg, err := shared.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "report:", err)
		os.Exit(1)
	}
	shared.InitLogger(cfg.Logging.Format, cfg.Logging.Level)

	if *outDir == "" {
		*outDir = cfg.Reporting.OutDir
	}
	if *dbPath == "" {
		*dbPath = cfg.Database.DSN
	}
	if *scanID == "" {
		fmt.Fprintln(os.Stderr, "report: --scan is required")
		os.Exit(2)
	}

	db, err := storage.OpenSQLite(*dbPath)
	if err != nil {
		slog.Error("db open error", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	d, err := db.LoadDecision(*scanID)
	if err != nil {
		slog.Error("load scan error", "err", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		slog.Error("cannot create out dir", "err", err)
		os.Exit(1)
	}
	jsonPath, _ := reporting.WriteJSON(d.ScanID, *outDir, &d)
	htmlPath, _ := reporting.WriteHTML(d.ScanID, *outDir, &d)
	fmt.Printf("Report OK\n  Scan: %s\n  JSON: %s\n  HTML: %s\n", d.ScanID, jsonPath, htmlPath)
}

func diffCmd(args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	base := fs.String("base", "", "Base scan ID")
	head := fs.String("head", "", "Head scan ID")
	outDir := fs.String("out", "", "Output directory")
	dbPath := fs.String("db", "", "SQLite database path")
	_ = fs.Parse(args)

	cfg, err := shared.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "diff:", err)
		os.Exit(1)
	}
	shared.InitLogger(cfg.Logging.Format, cfg.Logging.Level)

	if *outDir == "" {
		*outDir = cfg.Reporting.OutDir
	}
	if *dbPath == "" {
		*dbPath = cfg.Database.DSN
	}
	if *base == "" || *head == "" {
		fmt.Fprintln(os.Stderr, "diff: --base and --head are required")
		os.Exit(2)
	}
	db, err := storage.OpenSQLite(*dbPath)
	if err != nil {
		slog.Error("db open error", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	bd, err := db.LoadDecision(*base)
	if err != nil {
		slog.Error("load base scan error", "err", err)
		os.Exit(1)
	}
	hd, err := db.LoadDecision(*head)
	if err != nil {
		slog.Error("load head scan error", "err", err)
		os.Exit(1)
	}
	path, err := reporting.WriteDiffJSON(*base, *head, *outDir, &bd, &hd)
	if err != nil {
		slog.Error("write diff error", "err", err)
		os.Exit(1)
	}
	fmt.Printf("Diff OK\n  %s\n", path)
}

func rulesCmd(args []string) {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	rulesPath := fs.String("rules", "", "Rule pack YAML")
	_ = fs.Parse(args)

	cfg, err := shared.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rules:", err)
		os.Exit(1)
	}
	if *rulesPath == "" {
		*rulesPath = cfg.Rules.Pack
	}
	snap, err := corpus.LoadFile(*rulesPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rules:", err)
		os.Exit(1)
	}
	fmt.Printf("Rule pack: %s (version %s, %d rules)\n", *rulesPath, snap.Version, snap.Len())
	for _, r := range snap.Rules() {
		langs := "any"
		if len(r.Languages) > 0 {
			langs = fmt.Sprintf("%v", r.Languages)
		}
		fmt.Printf("  %-4s [%s/%s] blocking=%-22s langs=%-14s %s\n",
			r.ID, r.Class, r.Category, r.Blocking, langs, r.Summary)
	}
}

func userAddCmd(args []string) {
	fs := flag.NewFlagSet("user-add", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	username := fs.String("username", "", "Username")
	password := fs.String("password", "", "Password")
	role := fs.String("role", "viewer", "Role (viewer|admin)")
	dbPath := fs.String("db", "", "SQLite database path")
	_ = fs.Parse(args)

	cfg, err := shared.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "user-add:", err)
		os.Exit(1)
	}
	if *dbPath == "" {
		*dbPath = cfg.Database.DSN
	}
	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "user-add: --username and --password are required")
		os.Exit(2)
	}
	hash, err := security.HashPassword(*password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "user-add:", err)
		os.Exit(1)
	}
	db, err := storage.OpenSQLite(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "user-add: db open:", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.CreateSchema(); err != nil {
		fmt.Fprintln(os.Stderr, "user-add: db schema:", err)
		os.Exit(1)
	}
	id, err := db.CreateUser(*username, hash, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, "user-add:", err)
		os.Exit(1)
	}
	fmt.Printf("User created: %s (id=%d, role=%s)\n", *username, id, *role)
}

func readDiff(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
