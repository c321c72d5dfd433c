package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/vladislavdragonenkov/serviceflow/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/serviceflow/internal/service/auth"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"

	envPrefix      = "SERVICEFLOW"
	configFileName = "serviceflow"
)

// Config описывает настройки запуска API-сервера.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	MemoryLatency       time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	KafkaBrokers       []string
	KafkaTopic         string
	KafkaDLQTopic      string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending: порог backlog, выше которого /healthz сообщает degraded.
	OutboxMaxPending int

	AuthRateLimitRPS   float64
	AuthRateLimitBurst int
	// RevocationCleanupInterval: период удаления истёкших отозванных токенов.
	RevocationCleanupInterval time.Duration

	LogLevel string
}

// DefaultConfig возвращает настройки для локального запуска на памяти.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                  ":3000",
		MetricsAddr:               ":9090",
		StorageDriver:             StorageDriverMemory,
		PostgresAutoMigrate:       true,
		TokenTTL:                  auth.DefaultTokenTTL,
		KafkaTopic:                kafka.TopicOrderEvents,
		KafkaDLQTopic:             kafka.TopicDeadLetterQueue,
		OutboxPollInterval:        time.Second,
		OutboxBatchSize:           100,
		OutboxMaxAttempts:         3,
		OutboxRetryDelay:          50 * time.Millisecond,
		OutboxMaxPending:          1000,
		AuthRateLimitRPS:          1,
		AuthRateLimitBurst:        5,
		RevocationCleanupInterval: 10 * time.Minute,
		LogLevel:                  "info",
	}
}

// LoadConfig читает переменные окружения SERVICEFLOW_* и необязательный
// serviceflow.yaml из текущего каталога поверх DefaultConfig.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	return loadConfig(v)
}

func loadConfig(v *viper.Viper) (Config, error) {
	def := DefaultConfig()

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", def.HTTPAddr)
	v.SetDefault("METRICS_ADDR", def.MetricsAddr)
	v.SetDefault("STORAGE_DRIVER", def.StorageDriver)
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("POSTGRES_AUTO_MIGRATE", def.PostgresAutoMigrate)
	v.SetDefault("MEMORY_LATENCY", def.MemoryLatency)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", def.TokenTTL)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", def.KafkaTopic)
	v.SetDefault("KAFKA_DLQ_TOPIC", def.KafkaDLQTopic)
	v.SetDefault("OUTBOX_POLL_INTERVAL", def.OutboxPollInterval)
	v.SetDefault("OUTBOX_BATCH_SIZE", def.OutboxBatchSize)
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", def.OutboxMaxAttempts)
	v.SetDefault("OUTBOX_RETRY_DELAY", def.OutboxRetryDelay)
	v.SetDefault("OUTBOX_MAX_PENDING", def.OutboxMaxPending)
	v.SetDefault("AUTH_RATE_LIMIT_RPS", def.AuthRateLimitRPS)
	v.SetDefault("AUTH_RATE_LIMIT_BURST", def.AuthRateLimitBurst)
	v.SetDefault("REVOCATION_CLEANUP_INTERVAL", def.RevocationCleanupInterval)
	v.SetDefault("LOG_LEVEL", def.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		HTTPAddr:                  v.GetString("HTTP_ADDR"),
		MetricsAddr:               v.GetString("METRICS_ADDR"),
		StorageDriver:             strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_DRIVER"))),
		PostgresDSN:               v.GetString("POSTGRES_DSN"),
		PostgresAutoMigrate:       v.GetBool("POSTGRES_AUTO_MIGRATE"),
		MemoryLatency:             v.GetDuration("MEMORY_LATENCY"),
		JWTSecret:                 v.GetString("JWT_SECRET"),
		TokenTTL:                  v.GetDuration("TOKEN_TTL"),
		KafkaBrokers:              splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:                v.GetString("KAFKA_TOPIC"),
		KafkaDLQTopic:             v.GetString("KAFKA_DLQ_TOPIC"),
		OutboxPollInterval:        v.GetDuration("OUTBOX_POLL_INTERVAL"),
		OutboxBatchSize:           v.GetInt("OUTBOX_BATCH_SIZE"),
		OutboxMaxAttempts:         v.GetInt("OUTBOX_MAX_ATTEMPTS"),
		OutboxRetryDelay:          v.GetDuration("OUTBOX_RETRY_DELAY"),
		OutboxMaxPending:          v.GetInt("OUTBOX_MAX_PENDING"),
		AuthRateLimitRPS:          v.GetFloat64("AUTH_RATE_LIMIT_RPS"),
		AuthRateLimitBurst:        v.GetInt("AUTH_RATE_LIMIT_BURST"),
		RevocationCleanupInterval: v.GetDuration("REVOCATION_CLEANUP_INTERVAL"),
		LogLevel:                  v.GetString("LOG_LEVEL"),
	}
	return cfg, cfg.Validate()
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q (want %s or %s)", c.StorageDriver, StorageDriverMemory, StorageDriverPostgres))
	}

	if len(c.JWTSecret) < auth.MinSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET: %w", auth.ErrWeakSecret))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.MemoryLatency < 0 {
		errs = append(errs, errors.New("MEMORY_LATENCY must not be negative"))
	}
	if c.RevocationCleanupInterval <= 0 {
		errs = append(errs, errors.New("REVOCATION_CLEANUP_INTERVAL must be positive"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
