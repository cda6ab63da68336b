package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ASSISTANT_RATE_PER_MIN", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 6543, cfg.DBPort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 20, cfg.AssistantRatePerMin)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Contains(t, cfg.ConnString(), "port=6543")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nexus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_driver: sqlite3
db_name: /tmp/nexus.db
jwt_secret: from-file
session_ttl: 2h
timezone: UTC
log_format: text
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "/tmp/nexus.db", cfg.ConnString())
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "debug", cfg.LogLevel)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("JWT_SECRET", "s")
	_, err := Load()
	require.NoError(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")

	cfg.JWTSecret = "s"
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.DBDriver = "mysql"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Timezone = "Mars/Olympus"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.LogFormat = "xml"
	assert.Error(t, bad.Validate())
}

func TestConnString_DatabaseURLWins(t *testing.T) {
	cfg := Default()
	cfg.DatabaseURL = "postgres://u:p@db/nexus"
	assert.Equal(t, "postgres://u:p@db/nexus", cfg.ConnString())
}
