package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	chclient "alertbus/internal/adapters/clickhouse"
	"alertbus/internal/adapters/config"
	errnoop "alertbus/internal/adapters/errors/noop"
	"alertbus/internal/adapters/errors/sentry"
	"alertbus/internal/adapters/kafka"
	redisclient "alertbus/internal/adapters/redis"
	"alertbus/internal/adapters/sms"
	"alertbus/internal/adapters/telegram"
	voiceadapter "alertbus/internal/adapters/voice"
	"alertbus/internal/api"
	"alertbus/internal/api/health"
	"alertbus/internal/consumers"
	"alertbus/internal/dispatch"
	"alertbus/internal/metrics"
	chrepo "alertbus/internal/repository/clickhouse"
	"alertbus/internal/routing"
	"alertbus/internal/stats"
	"alertbus/internal/voice"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
	"alertbus/pkg/telegram/adapters/tgbotapi"
)

const connectTimeout = 10 * time.Second

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects Redis and, when enabled, ClickHouse
func (c *Container) MustInitInfrastructure() {
	ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
	defer cancel()

	var err error

	c.Log.Info("Connecting to Redis...")
	c.Redis, err = redisclient.NewClient(ctx, c.Config.Redis)
	if err != nil {
		c.Log.Fatalf("failed to connect redis: %v", err)
	}
	c.Log.Info("✓ Redis connected")

	if !c.Config.ClickHouse.Enabled {
		c.Log.Info("ClickHouse archive disabled")
		return
	}

	c.Log.Info("Connecting to ClickHouse...")
	c.CH, err = chclient.NewClient(ctx, c.Config.ClickHouse)
	if err != nil {
		c.Log.Fatalf("failed to connect clickhouse: %v", err)
	}
	c.Log.Info("✓ ClickHouse connected")
}

// ========================================
// Phase 3: External Adapters
// ========================================

// MustInitAdapters builds the delivery channels and Kafka plumbing
func (c *Container) MustInitAdapters() {
	cfg := c.Config

	if cfg.Dispatch.SMSEnabled {
		c.Adapters.KafkaProducer = provideKafkaProducer(cfg, c.Log)
	}
	if cfg.Kafka.Consume {
		c.Adapters.EventConsumer = provideKafkaConsumer(cfg, cfg.Kafka.EventsTopic, c.Log)
	}

	if chat := provideChatChannel(cfg, c.Log); chat != nil {
		c.Adapters.Chat = chat
	}

	if cfg.Dispatch.SMSEnabled {
		c.Adapters.SMS = sms.NewKafkaChannel(c.Adapters.KafkaProducer, cfg.Kafka.SMSTopic, c.Log)
		c.Log.Infow("✓ SMS channel initialized", "topic", cfg.Kafka.SMSTopic)
	}

	if cfg.Dispatch.VoiceEnabled {
		c.Adapters.Voice = voiceadapter.NewRedisSpeaker(c.Redis, cfg.Voice.RedisChannel, c.Log)
		c.Log.Infow("✓ Voice speaker initialized", "channel", cfg.Voice.RedisChannel)
	}
}

// ========================================
// Phase 4: Notification Core
// ========================================

// MustInitCore builds router, stats, voice pipeline and dispatcher
func (c *Container) MustInitCore() {
	cfg := c.Config

	router, err := provideRouter(cfg, c.Log)
	if err != nil {
		c.Log.Fatalf("failed to load routing rules: %v", err)
	}
	c.Core.Router = router

	var statsOpts []stats.Option
	if c.CH != nil {
		c.Core.Archive = chrepo.NewMetricArchive(c.CH.Conn(), chrepo.ArchiveConfig{
			BatchSize:     cfg.ClickHouse.BatchSize,
			FlushInterval: cfg.ClickHouse.FlushInterval,
		}, c.Log)

		ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
		err := c.Core.Archive.Migrate(ctx)
		cancel()
		if err != nil {
			c.Log.Fatalf("failed to migrate metric archive: %v", err)
		}
		statsOpts = append(statsOpts, stats.WithSink(c.Core.Archive))
	}
	c.Core.Stats = stats.New(provideStatsConfig(cfg), c.Log, statsOpts...)

	dispatchOpts := []dispatch.Option{}
	if c.Adapters.Chat != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithChat(c.Adapters.Chat))
	}
	if c.Adapters.SMS != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithSMS(c.Adapters.SMS))
	}
	if c.Adapters.Voice != nil {
		voiceCfg, err := provideVoiceConfig(cfg.Voice)
		if err != nil {
			c.Log.Fatalf("invalid voice configuration: %v", err)
		}
		c.Core.Voice, err = voice.NewPipeline(voiceCfg, c.Adapters.Voice, c.Log)
		if err != nil {
			c.Log.Fatalf("failed to create voice pipeline: %v", err)
		}
		dispatchOpts = append(dispatchOpts, dispatch.WithVoice(c.Core.Voice))
	}

	c.Core.Dispatcher = dispatch.New(c.Core.Router, c.Core.Stats, dispatch.Config{
		ChannelTimeout: cfg.Dispatch.ChannelTimeout,
		VoiceEnabled:   cfg.Dispatch.VoiceEnabled,
		SMSEnabled:     cfg.Dispatch.SMSEnabled,
		LogSize:        cfg.Dispatch.LogSize,
	}, c.Log, dispatchOpts...)

	metrics.Init()
	var queue metrics.QueueSource
	if c.Core.Voice != nil {
		queue = c.Core.Voice
	}
	prometheus.MustRegister(metrics.NewBusCollector(c.Core.Stats, queue))

	c.Log.Infow("✓ Notification core initialized",
		"rules", len(c.Core.Router.ListRules()),
		"chat", c.Adapters.Chat != nil,
		"sms", c.Adapters.SMS != nil,
		"voice", c.Core.Voice != nil,
		"archive", c.Core.Archive != nil,
	)
}

// ========================================
// Phase 5: Background Processing
// ========================================

// MustInitBackground builds workers and the event consumer
func (c *Container) MustInitBackground() {
	c.Background.WorkerScheduler = provideWorkers(c.Config, c.Core, c.Redis, c.ErrorTracker, c.Log)

	if c.Adapters.EventConsumer != nil {
		c.Background.EventSvc = consumers.NewEventConsumer(c.Core.Dispatcher, c.Config.Dispatch.ChannelTimeout*3, c.Log)
	}
}

// ========================================
// Phase 6: Application Layer
// ========================================

// MustInitApplication builds the HTTP surface
func (c *Container) MustInitApplication() {
	h := health.New(c.Log, c.Config.App.Name, c.Config.App.Version)
	h.Register("redis", c.Redis)
	if c.CH != nil {
		h.Register("clickhouse", c.CH)
	}
	c.Application.HealthHandler = h

	handlers := api.NewHandlers(
		c.Core.Stats,
		c.Core.Router,
		c.Core.Voice,
		c.Core.Dispatcher,
		c.Background.WorkerScheduler,
		c.Log,
	)

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Addr:        c.Config.HTTP.Addr,
		ServiceName: c.Config.App.Name,
		Version:     c.Config.App.Version,
	}, h, handlers, c.Log)
}

// ========================================
// Helper Provider Functions
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
	}, log)
	log.Info("✓ Kafka producer initialized")
	return producer
}

func provideKafkaConsumer(cfg *config.Config, topic string, log *logger.Logger) *kafka.Consumer {
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   topic,
	}, log)
	log.Infow("✓ Kafka consumer initialized", "topic", topic)
	return consumer
}

// provideChatChannel returns nil when no bot token is configured
func provideChatChannel(cfg *config.Config, log *logger.Logger) *telegram.ChatChannel {
	if cfg.Telegram.BotToken == "" {
		log.Warn("TELEGRAM_BOT_TOKEN not set, chat channel disabled")
		return nil
	}

	bot, err := tgbotapi.NewBot(tgbotapi.Config{
		Token:         cfg.Telegram.BotToken,
		Debug:         cfg.Telegram.Debug,
		RateLimitRate: cfg.Telegram.RateLimit,
	}, log)
	if err != nil {
		log.Fatalf("failed to create telegram bot: %v", err)
	}

	directory := telegram.Directory{
		Named:     cfg.Telegram.Targets,
		Groups:    cfg.Telegram.Groups,
		Broadcast: cfg.Telegram.Broadcast,
	}
	log.Infow("✓ Chat channel initialized",
		"bot", bot.Username(),
		"named_targets", len(directory.Named),
		"broadcast", len(directory.Broadcast),
	)
	return telegram.NewChatChannel(bot, directory, cfg.Telegram.Retries, log)
}

// provideRouter starts from the built-in rules and applies the rules file, if any.
// Files ending in .yaml or .yml are read as YAML.
func provideRouter(cfg *config.Config, log *logger.Logger) (*routing.AlertRouter, error) {
	router := routing.NewAlertRouter(log)
	if cfg.Routing.RulesFile == "" {
		return router, nil
	}

	data, err := os.ReadFile(cfg.Routing.RulesFile)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", cfg.Routing.RulesFile)
	}
	importRules := router.ImportJSON
	if ext := strings.ToLower(filepath.Ext(cfg.Routing.RulesFile)); ext == ".yaml" || ext == ".yml" {
		importRules = router.ImportYAML
	}
	n, err := importRules(data, cfg.Routing.Replace)
	if err != nil {
		return nil, errors.Wrapf(err, "import %s", cfg.Routing.RulesFile)
	}
	log.Infow("✓ Routing rules loaded", "file", cfg.Routing.RulesFile, "rules", n, "replace", cfg.Routing.Replace)
	return router, nil
}

func provideStatsConfig(cfg *config.Config) stats.Config {
	sc := stats.DefaultConfig()
	sc.HistorySize = cfg.Stats.HistorySize
	sc.DailyRetention = cfg.Stats.DailyRetention
	sc.MinSampleSize = cfg.Stats.MinSampleSize
	sc.FailureRateThreshold = cfg.Stats.FailureRateThreshold
	sc.FailureRateHigh = cfg.Stats.FailureRateHigh
	sc.DeliveryTimeThresholdMs = cfg.Stats.DeliveryTimeThresholdMs
	return sc
}

// provideVoiceConfig applies env overrides on top of the pipeline defaults
func provideVoiceConfig(vc config.VoiceConfig) (voice.Config, error) {
	out := voice.DefaultConfig()
	out.Enabled = vc.Enabled
	out.Volume = vc.Volume
	out.MaxTextLength = vc.MaxTextLength
	out.QueueEnabled = vc.QueueEnabled
	out.MaxQueueSize = vc.MaxQueueSize
	out.Cooldown = vc.Cooldown

	var err error
	if out.Language, err = voice.ParseLanguage(vc.Language); err != nil {
		return voice.Config{}, err
	}
	if out.Speed, err = voice.ParseSpeed(vc.Speed); err != nil {
		return voice.Config{}, err
	}

	for _, t := range vc.EnabledTriggers {
		out.Triggers[voice.Trigger(strings.TrimSpace(t))] = true
	}
	for _, t := range vc.DisabledTriggers {
		out.Triggers[voice.Trigger(strings.TrimSpace(t))] = false
	}
	return out, out.Validate()
}
