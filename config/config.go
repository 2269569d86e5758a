package config

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	RepairBox RepairBoxConfig `yaml:"repairbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString собирает DSN для pgx; ssl_mode по умолчанию disable.
func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	StatusChangedTopicName string `yaml:"status_changed_topic_name"`
}

// Brokers is empty when no host is configured, which turns event publishing off.
func (k KafkaConfig) Brokers() []string {
	if k.Host == "" {
		return nil
	}
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type RepairBoxConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	StorageDriver string `yaml:"storage_driver"` // "postgres" | "sqlite"
	SQLitePath    string `yaml:"sqlite_path"`

	TrackingTag              string `yaml:"tracking_tag"`
	TrackingCodeMaxAttempts  int    `yaml:"tracking_code_max_attempts"`
	TrackingCacheTTLSeconds  int    `yaml:"tracking_cache_ttl_seconds"`
	PublicRateLimitPerMinute int    `yaml:"public_rate_limit_per_minute"`
	PublicTrackingBaseURL    string `yaml:"public_tracking_base_url"`

	NotifierHTTPAddr          string `yaml:"notifier_http_addr"`
	NotifierConsumerGroup     string `yaml:"notifier_consumer_group"`
	NotifierShopName          string `yaml:"notifier_shop_name"`
	NotifierRateLimitPerHour  int    `yaml:"notifier_rate_limit_per_hour"`
	NotifierNotifyCorrections bool   `yaml:"notifier_notify_corrections"`

	// Retry of one SMS; unset values fall back to 4 attempts, 1s/5s/15s.
	NotifierAttempts        int `yaml:"notifier_attempts"`
	NotifierBackoff1Seconds int `yaml:"notifier_backoff_1_seconds"`
	NotifierBackoff2Seconds int `yaml:"notifier_backoff_2_seconds"`
	NotifierBackoff3Seconds int `yaml:"notifier_backoff_3_seconds"`

	// Twilio-compatible gateway. Empty account SID means SMS go to the log only.
	SMSBaseURL    string `yaml:"sms_base_url"`
	SMSAccountSID string `yaml:"sms_account_sid"`
	SMSAuthToken  string `yaml:"sms_auth_token"`
	SMSFrom       string `yaml:"sms_from"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal YAML")
	}

	return &config, nil
}
