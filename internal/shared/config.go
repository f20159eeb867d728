package shared

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/codewithboateng/riskgate/internal/policy"
)

type Config struct {
	Database struct {
		Driver string `yaml:"driver" validate:"required,oneof=sqlite"`
		DSN    string `yaml:"dsn" validate:"required"`
	} `yaml:"database"`

	Rules struct {
		Pack string `yaml:"pack" validate:"required"` // path to YAML rule pack
	} `yaml:"rules"`

	// Policy holds the class/category blocking-level map. Exhaustiveness
	// against the loaded corpus is checked separately at corpus-load time.
	Policy policy.Config `yaml:"policy"`

	Detector struct {
		Workers           int     `yaml:"workers" validate:"gte=0,lte=64"`
		CommentConfidence float64 `yaml:"comment_confidence" validate:"gte=0,lte=1"`
	} `yaml:"detector"`

	Reporting struct {
		OutDir string `yaml:"out_dir" validate:"required"`
	} `yaml:"reporting"`

	API struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		SessionHours   int      `yaml:"session_hours" validate:"gte=0"`
	} `yaml:"api"`

	Logging struct {
		Format string `yaml:"format" validate:"oneof=json text"`
		Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	} `yaml:"logging"`
}

func DefaultConfig() Config {
	var c Config
	c.Database.Driver = "sqlite"
	c.Database.DSN = "./riskgate.db"
	c.Rules.Pack = "./rules/riskgate.yaml"
	c.Policy = policy.Config{
		Classes: map[string]policy.Entry{
			"A": {Level: "blocking"},
			"B": {Level: "advisory", AutoApply: true},
		},
		Categories: map[string]policy.Entry{},
	}
	c.Detector.Workers = 4
	c.Detector.CommentConfidence = 0.5
	c.Reporting.OutDir = "./reports"
	c.API.Addr = ":8085"
	c.API.SessionHours = 12
	c.Logging.Format = "json"
	c.Logging.Level = "info"
	return c
}

func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse config: %w", err)
		}
	}
	// Env overrides (simple, explicit)
	if v := os.Getenv("RISKGATE_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("RISKGATE_RULES_PACK"); v != "" {
		c.Rules.Pack = v
	}
	if v := os.Getenv("RISKGATE_OUT_DIR"); v != "" {
		c.Reporting.OutDir = v
	}
	if v := os.Getenv("RISKGATE_API_ADDR"); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv("RISKGATE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("RISKGATE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RISKGATE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Detector.Workers = n
		}
	}

	if err := validator.New().Struct(c); err != nil {
		return c, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}
