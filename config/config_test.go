package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  status_changed_topic_name: "repair.status_changed"
redis:
  host: "localhost"
  port: 6379
repairbox:
  http_addr: ":8080"
  storage_driver: "sqlite"
  sqlite_path: "/tmp/repairbox.db"
  tracking_tag: "FAG"
  tracking_cache_ttl_seconds: 300
  public_rate_limit_per_minute: 20
  notifier_consumer_group: "repair-notifier"
  notifier_rate_limit_per_hour: 3
  notifier_notify_corrections: true
  sms_account_sid: "AC123"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", cfg.Database.ConnString())
	require.Equal(t, "repair.status_changed", cfg.Kafka.StatusChangedTopicName)
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers())
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, ":8080", cfg.RepairBox.HTTPAddr)
	require.Equal(t, "sqlite", cfg.RepairBox.StorageDriver)
	require.Equal(t, 300, cfg.RepairBox.TrackingCacheTTLSeconds)
	require.Equal(t, 3, cfg.RepairBox.NotifierRateLimitPerHour)
	require.True(t, cfg.RepairBox.NotifierNotifyCorrections)
	require.Equal(t, "AC123", cfg.RepairBox.SMSAccountSID)
}

func TestLoadConfig_EmptyOptionalSections(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte("repairbox:\n  storage_driver: sqlite\n"), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Nil(t, cfg.Kafka.Brokers())
	require.Empty(t, cfg.Redis.Addr())
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("repairbox: [\n"), 0o600))
	_, err = LoadConfig(p)
	require.Error(t, err)
}
