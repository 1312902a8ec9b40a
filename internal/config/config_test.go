package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.EqualValues(t, 1, cfg.Server.WorkerID)
	assert.Equal(t, "canteen.purchase", cfg.Kafka.Topic.Purchase)
	assert.Equal(t, 10, cfg.Business.LiveSampleSize)
	assert.Equal(t, 3, cfg.Business.MaxConflictRetries)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  topic:
    purchase: bar.purchase
business:
  live_sample_size: 25
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "bar.purchase", cfg.Kafka.Topic.Purchase)
	assert.Equal(t, 25, cfg.Business.LiveSampleSize)
	// 未配置的项保留默认值
	assert.Equal(t, 30, cfg.Business.LockTTLSeconds)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CANTEEN_SERVER_PORT", "7070")
	t.Setenv("CANTEEN_MYSQL_HOST", "db.internal")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.MySQL.Host)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, `
business:
  live_sample_size: 0
`)
	_, err := Load(path)
	assert.Error(t, err)
}
