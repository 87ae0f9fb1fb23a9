package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dcenergy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
store:
  backend: redis
  redis:
    addr: redis:6379
    db: 2
catalog:
  seed_file: /etc/dcenergy/catalog.yaml
history:
  retention: 48h
serve:
  reload_interval: 5s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, "dcenergy:", cfg.Store.Redis.KeyPrefix, "unset keys keep their default")
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "/etc/dcenergy/catalog.yaml", cfg.Catalog.SeedFile)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, 48*time.Hour, cfg.History.Retention)
	assert.Equal(t, 5*time.Second, cfg.Serve.ReloadInterval)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown backend": "store:\n  backend: postgres\n",
		"bad level":       "log:\n  level: loud\n",
		"redis no addr":   "store:\n  backend: redis\n  redis:\n    addr: \"\"\n",
		"malformed":       "log: [\n",
		"negative reload": "serve:\n  reload_interval: -1s\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}

func TestBuildLogger(t *testing.T) {
	logger, err := LogConfig{Level: "warn"}.BuildLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = LogConfig{Level: "debug", Development: true}.BuildLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = LogConfig{Level: "chatty"}.BuildLogger()
	assert.Error(t, err)
}
