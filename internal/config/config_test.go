package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: test-secret\ndatabase:\n  dbname: rankfeed\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 20, cfg.Feed.DefaultPageSize)
	assert.Equal(t, 100, cfg.Feed.MaxPageSize)
	assert.Equal(t, 10*time.Minute, cfg.Feed.IdentityCacheTTL)
	assert.Equal(t, "feed-events", cfg.Kafka.Topics.FeedEvents)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Contains(t, cfg.Database.DSN(), "dbname=rankfeed")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: from-file\nfeed:\n  max_page_size: 50\n")
	t.Setenv("RANKFEED_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 50, cfg.Feed.MaxPageSize)
}

func TestLoad_RejectsMissingSecret(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \":9000\"\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
