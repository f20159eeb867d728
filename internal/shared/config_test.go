package shared

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	_, err := LoadConfig("")
	require.NoError(t, err)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  driver: sqlite
  dsn: /var/lib/riskgate/gate.db
detector:
  workers: 8
logging:
  format: text
  level: debug
`), 0o644))

	c, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/riskgate/gate.db", c.Database.DSN)
	assert.Equal(t, 8, c.Detector.Workers)
	assert.Equal(t, "text", c.Logging.Format)
	assert.Equal(t, "./rules/riskgate.yaml", c.Rules.Pack, "untouched keys keep defaults")
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("RISKGATE_DB_DSN", "/tmp/env.db")
	t.Setenv("RISKGATE_WORKERS", "2")
	t.Setenv("RISKGATE_LOG_LEVEL", "warn")

	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", c.Database.DSN)
	assert.Equal(t, 2, c.Detector.Workers)
	assert.Equal(t, "warn", c.Logging.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad driver":       "database: {driver: postgres, dsn: x}",
		"bad log format":   "logging: {format: xml, level: info}",
		"workers too high": "detector: {workers: 1000}",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "cfg.yaml")
			require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
			_, err := LoadConfig(p)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/cfg.yaml")
	assert.Error(t, err)
}
