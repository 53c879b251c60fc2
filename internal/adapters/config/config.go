package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"alertbus/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	Voice         VoiceConfig
	Stats         StatsConfig
	Dispatch      DispatchConfig
	Routing       RoutingConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"alertbus"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type HTTPConfig struct {
	Addr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

type ClickHouseConfig struct {
	Enabled       bool          `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host          string        `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port          int           `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User          string        `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password      string        `envconfig:"CLICKHOUSE_PASSWORD"`
	Database      string        `envconfig:"CLICKHOUSE_DB" default:"alerts"`
	BatchSize     int           `envconfig:"CLICKHOUSE_BATCH_SIZE" default:"500"`
	FlushInterval time.Duration `envconfig:"CLICKHOUSE_FLUSH_INTERVAL" default:"5s"`
}

func (c ClickHouseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers     []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	GroupID     string   `envconfig:"KAFKA_GROUP_ID" default:"alertbus"`
	EventsTopic string   `envconfig:"KAFKA_EVENTS_TOPIC" default:"alerts.events"`
	SMSTopic    string   `envconfig:"KAFKA_SMS_TOPIC" default:"alerts.sms"`
	Consume     bool     `envconfig:"KAFKA_CONSUME" default:"true"`
}

type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	// Targets maps bot names and user ids to chat ids: "notification:123,analytics:456"
	Targets   map[string]int64 `envconfig:"TELEGRAM_TARGETS"`
	Broadcast []int64          `envconfig:"TELEGRAM_BROADCAST"`
	Groups    map[string]int64 `envconfig:"TELEGRAM_GROUPS"`
	RateLimit float64          `envconfig:"TELEGRAM_RATE_LIMIT" default:"30"`
	Retries   int              `envconfig:"TELEGRAM_RETRIES" default:"3"`
	Debug     bool             `envconfig:"TELEGRAM_DEBUG" default:"false"`
}

type VoiceConfig struct {
	Enabled       bool          `envconfig:"VOICE_ENABLED" default:"true"`
	Language      string        `envconfig:"VOICE_LANGUAGE" default:"en"`
	Speed         string        `envconfig:"VOICE_SPEED" default:"normal"`
	Volume        int           `envconfig:"VOICE_VOLUME" default:"100"`
	MaxTextLength int           `envconfig:"VOICE_MAX_TEXT_LENGTH" default:"200"`
	QueueEnabled  bool          `envconfig:"VOICE_QUEUE_ENABLED" default:"true"`
	MaxQueueSize  int           `envconfig:"VOICE_MAX_QUEUE_SIZE" default:"10"`
	Cooldown      time.Duration `envconfig:"VOICE_COOLDOWN" default:"2s"`
	// DisabledTriggers switches individual triggers off, e.g. "breakeven,partial_profit"
	DisabledTriggers []string `envconfig:"VOICE_DISABLED_TRIGGERS"`
	EnabledTriggers  []string `envconfig:"VOICE_ENABLED_TRIGGERS"`
	RedisChannel     string   `envconfig:"VOICE_REDIS_CHANNEL" default:"alertbus:voice"`
}

type StatsConfig struct {
	HistorySize             int     `envconfig:"STATS_HISTORY_SIZE" default:"10000"`
	DailyRetention          int     `envconfig:"STATS_DAILY_RETENTION" default:"90"`
	MinSampleSize           int64   `envconfig:"STATS_MIN_SAMPLE_SIZE" default:"100"`
	FailureRateThreshold    float64 `envconfig:"STATS_FAILURE_RATE_THRESHOLD" default:"10"`
	FailureRateHigh         float64 `envconfig:"STATS_FAILURE_RATE_HIGH" default:"20"`
	DeliveryTimeThresholdMs float64 `envconfig:"STATS_DELIVERY_TIME_THRESHOLD_MS" default:"5000"`
	SnapshotKey             string  `envconfig:"STATS_SNAPSHOT_KEY" default:"alertbus:stats:summary"`
}

type DispatchConfig struct {
	ChannelTimeout time.Duration `envconfig:"DISPATCH_CHANNEL_TIMEOUT" default:"10s"`
	SMSEnabled     bool          `envconfig:"DISPATCH_SMS_ENABLED" default:"true"`
	VoiceEnabled   bool          `envconfig:"DISPATCH_VOICE_ENABLED" default:"true"`
	LogSize        int           `envconfig:"DISPATCH_LOG_SIZE" default:"500"`
}

type RoutingConfig struct {
	// RulesFile is a JSON or YAML rule list; empty keeps the built-in defaults
	RulesFile string `envconfig:"ROUTING_RULES_FILE"`
	Replace   bool   `envconfig:"ROUTING_RULES_REPLACE" default:"true"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for background workers
type WorkerConfig struct {
	ThresholdCheckInterval time.Duration `envconfig:"WORKER_THRESHOLD_CHECK_INTERVAL" default:"1m"`
	StatsSnapshotInterval  time.Duration `envconfig:"WORKER_STATS_SNAPSHOT_INTERVAL" default:"30s"`
	// VoiceQueueInterval of zero uses a 100ms drain tick
	VoiceQueueInterval time.Duration `envconfig:"WORKER_VOICE_QUEUE_INTERVAL" default:"0s"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	var errs errors.MultiError
	if c.Voice.Volume < 0 || c.Voice.Volume > 100 {
		errs.Add(errors.NewValidationError("VOICE_VOLUME", "must be between 0 and 100", c.Voice.Volume))
	}
	if c.Voice.MaxQueueSize <= 0 {
		errs.Add(errors.NewValidationError("VOICE_MAX_QUEUE_SIZE", "must be positive", c.Voice.MaxQueueSize))
	}
	if c.Stats.FailureRateHigh < c.Stats.FailureRateThreshold {
		errs.Add(errors.NewValidationError("STATS_FAILURE_RATE_HIGH", "must not be below STATS_FAILURE_RATE_THRESHOLD", c.Stats.FailureRateHigh))
	}
	if c.Dispatch.ChannelTimeout <= 0 {
		errs.Add(errors.NewValidationError("DISPATCH_CHANNEL_TIMEOUT", "must be positive", c.Dispatch.ChannelTimeout))
	}
	if c.Routing.RulesFile != "" {
		if _, err := os.Stat(c.Routing.RulesFile); err != nil {
			errs.Add(errors.NewValidationError("ROUTING_RULES_FILE", err.Error(), c.Routing.RulesFile))
		}
	}
	return errs.ToError()
}

// IsProduction reports whether the app runs in production mode
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// ChatID resolves a configured chat id by name, falling back to a numeric literal
func (c TelegramConfig) ChatID(name string) (int64, bool) {
	if id, ok := c.Targets[name]; ok {
		return id, true
	}
	if id, err := strconv.ParseInt(name, 10, 64); err == nil {
		return id, true
	}
	return 0, false
}
