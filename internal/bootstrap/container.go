package bootstrap

import (
	"context"
	"sync"

	chclient "alertbus/internal/adapters/clickhouse"
	"alertbus/internal/adapters/config"
	"alertbus/internal/adapters/kafka"
	redisclient "alertbus/internal/adapters/redis"
	"alertbus/internal/api"
	"alertbus/internal/api/health"
	"alertbus/internal/consumers"
	"alertbus/internal/dispatch"
	chrepo "alertbus/internal/repository/clickhouse"
	"alertbus/internal/routing"
	"alertbus/internal/stats"
	"alertbus/internal/voice"
	"alertbus/internal/workers"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

// Container holds all application dependencies and their lifecycle.
// Components are organized in initialization order.
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (data stores); CH is nil when the archive is disabled
	CH    *chclient.Client
	Redis *redisclient.Client

	// External Adapters
	Adapters *Adapters

	// Notification core
	Core *Core

	// Application Layer
	Application *Application

	// Background Processing
	Background *Background

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Adapters groups all external adapters. Disabled channels stay nil.
type Adapters struct {
	KafkaProducer *kafka.Producer
	EventConsumer *kafka.Consumer

	Chat  dispatch.Sender
	SMS   dispatch.Sender
	Voice voice.Speaker
}

// Core groups the routing, delivery, voice and statistics components
type Core struct {
	Router     *routing.AlertRouter
	Stats      *stats.Aggregator
	Archive    *chrepo.MetricArchive
	Voice      *voice.Pipeline
	Dispatcher *dispatch.Dispatcher
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
}

// Background groups all background processing components
type Background struct {
	WorkerScheduler *workers.Scheduler
	EventSvc        *consumers.EventConsumer
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Adapters:    &Adapters{},
		Core:        &Core{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order.
// Panics on any initialization error (fail-fast at startup).
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitAdapters()
	c.MustInitCore()
	c.MustInitBackground()
	c.MustInitApplication()
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	if c.Core.Archive != nil {
		c.Core.Archive.Start(c.Context)
		c.Log.Info("✓ Metric archive started")
	}

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.startConsumers()

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// startConsumers starts Kafka consumers in background goroutines
func (c *Container) startConsumers() {
	if c.Background.EventSvc == nil || c.Adapters.EventConsumer == nil {
		c.Log.Info("Event consumer disabled")
		return
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Background.EventSvc.Start(c.Context, c.Adapters.EventConsumer); err != nil && c.Context.Err() == nil {
			c.Log.Errorw("Event consumer failed", "error", err)
		}
	}()

	c.Log.Infow("✓ Event consumer started", "topic", c.Config.Kafka.EventsTopic)
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// Cancel application context to signal all components to stop
	c.Cancel()

	c.Lifecycle.Shutdown(
		c.WG,
		c.Application.HTTPServer,
		c.Background.WorkerScheduler,
		c.Adapters.EventConsumer,
		c.Core.Archive,
		c.Adapters.KafkaProducer,
		c.CH,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}
