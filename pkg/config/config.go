package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	Ingestion    IngestionConfig
	Extraction   ExtractionConfig
	Rescheduling ReschedulingConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// IngestionConfig drives the mailbox pipeline run by cmd/ingestor.
type IngestionConfig struct {
	IMAPHost        string
	IMAPPort        int
	IMAPTLS         bool
	Mailbox         string
	MarkSeen        bool
	BatchSize       int
	MaxSessions     int
	SessionTimeout  time.Duration
	BackendURL      string
	DeliveryTimeout time.Duration
	RunTimeout      time.Duration
	Schedule        string
}

// ExtractionConfig configures the text-completion service used to parse emails.
type ExtractionConfig struct {
	APIKey              string
	BaseURL             string
	Model               string
	RequestTimeout      time.Duration
	BreakerMaxFailures  uint32
	BreakerOpenInterval time.Duration
}

// ReschedulingConfig controls delivery serialization on the backend.
type ReschedulingConfig struct {
	SerializeDeliveries bool
	LockKey             string
	LockTTL             time.Duration
	LockWait            time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Ingestion = IngestionConfig{
		IMAPHost:        v.GetString("IMAP_HOST"),
		IMAPPort:        v.GetInt("IMAP_PORT"),
		IMAPTLS:         v.GetBool("IMAP_TLS"),
		Mailbox:         v.GetString("IMAP_MAILBOX"),
		MarkSeen:        v.GetBool("IMAP_MARK_SEEN"),
		BatchSize:       positiveOr(v.GetInt("INGEST_BATCH_SIZE"), 5),
		MaxSessions:     positiveOr(v.GetInt("INGEST_MAX_SESSIONS"), 10),
		SessionTimeout:  parseDuration(v.GetString("IMAP_SESSION_TIMEOUT"), time.Minute),
		BackendURL:      v.GetString("BACKEND_URL"),
		DeliveryTimeout: parseDuration(v.GetString("DELIVERY_TIMEOUT"), 30*time.Second),
		RunTimeout:      parseDuration(v.GetString("INGEST_RUN_TIMEOUT"), 15*time.Minute),
		Schedule:        v.GetString("INGEST_SCHEDULE"),
	}

	cfg.Extraction = ExtractionConfig{
		APIKey:              v.GetString("OPENAI_API_KEY"),
		BaseURL:             v.GetString("OPENAI_BASE_URL"),
		Model:               v.GetString("OPENAI_MODEL"),
		RequestTimeout:      parseDuration(v.GetString("EXTRACTION_TIMEOUT"), 30*time.Second),
		BreakerMaxFailures:  uint32(positiveOr(v.GetInt("EXTRACTION_BREAKER_MAX_FAILURES"), 5)),
		BreakerOpenInterval: parseDuration(v.GetString("EXTRACTION_BREAKER_OPEN_INTERVAL"), 30*time.Second),
	}

	cfg.Rescheduling = ReschedulingConfig{
		SerializeDeliveries: v.GetBool("RESCHEDULE_SERIALIZE_DELIVERIES"),
		LockKey:             v.GetString("RESCHEDULE_LOCK_KEY"),
		LockTTL:             parseDuration(v.GetString("RESCHEDULE_LOCK_TTL"), 2*time.Minute),
		LockWait:            parseDuration(v.GetString("RESCHEDULE_LOCK_WAIT"), 10*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "placement")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("IMAP_HOST", "imap.gmail.com")
	v.SetDefault("IMAP_PORT", 993)
	v.SetDefault("IMAP_TLS", true)
	v.SetDefault("IMAP_MAILBOX", "INBOX")
	v.SetDefault("IMAP_MARK_SEEN", true)
	v.SetDefault("IMAP_SESSION_TIMEOUT", "1m")
	v.SetDefault("INGEST_BATCH_SIZE", 5)
	v.SetDefault("INGEST_MAX_SESSIONS", 10)
	v.SetDefault("BACKEND_URL", "http://localhost:8080/update")
	v.SetDefault("DELIVERY_TIMEOUT", "30s")
	v.SetDefault("INGEST_RUN_TIMEOUT", "15m")
	v.SetDefault("INGEST_SCHEDULE", "")

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("OPENAI_MODEL", "gpt-3.5-turbo")
	v.SetDefault("EXTRACTION_TIMEOUT", "30s")
	v.SetDefault("EXTRACTION_BREAKER_MAX_FAILURES", 5)
	v.SetDefault("EXTRACTION_BREAKER_OPEN_INTERVAL", "30s")

	v.SetDefault("RESCHEDULE_SERIALIZE_DELIVERIES", false)
	v.SetDefault("RESCHEDULE_LOCK_KEY", "reschedule:delivery")
	v.SetDefault("RESCHEDULE_LOCK_TTL", "2m")
	v.SetDefault("RESCHEDULE_LOCK_WAIT", "10s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
