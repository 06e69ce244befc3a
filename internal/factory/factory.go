// Package factory wires configuration, clients, the attempt store, and the
// request pipeline together, and owns their shutdown order.
package factory

import (
	"context"
	"fmt"
	"sync"

	"authgate/internal/auth"
	"authgate/internal/client"
	"authgate/internal/config"
	"authgate/internal/events"
	"authgate/internal/handler"
	"authgate/internal/limiter"
	"authgate/internal/util"
)

type Factory struct {
	config *config.Config

	redisClient   *client.RedisClient
	kafkaProducer *client.KafkaProducer

	store         limiter.AttemptStore
	memoryStore   *limiter.MemoryStore
	gate          *limiter.Gate
	recorder      *limiter.Recorder
	authenticator auth.Authenticator
	publisher     events.Publisher
	loginHandler  *handler.LoginHandler

	closeOnce sync.Once
}

// NewFactory loads config and initializes every dependency the server needs.
func NewFactory() (*Factory, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{config: cfg}

	if err := f.initStore(); err != nil {
		return nil, err
	}
	if err := f.initPipeline(); err != nil {
		return nil, err
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("store", cfg.Limiter.Store),
		util.String("auth_mode", cfg.Auth.Mode),
		util.Bool("events_enabled", f.kafkaProducer != nil),
	)

	return f, nil
}

func (f *Factory) initStore() error {
	switch f.config.Limiter.Store {
	case "redis":
		redisClient, err := client.NewRedisClient(f.config, util.Get())
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		f.redisClient = redisClient
		f.store = limiter.NewRedisStore(redisClient, f.config.Limiter.Window)

	default:
		f.memoryStore = limiter.NewMemoryStore(f.config.Limiter.Window)
		f.store = f.memoryStore
	}
	return nil
}

func (f *Factory) initPipeline() error {
	cfg := f.config

	policy := limiter.Policy{
		MaxFailures: cfg.Limiter.MaxFailures,
		Window:      cfg.Limiter.Window,
		FailOpen:    cfg.Limiter.FailurePolicy == "open",
	}

	gate, err := limiter.NewGate(f.store, policy, util.Get())
	if err != nil {
		return fmt.Errorf("failed to create attempt gate: %w", err)
	}
	f.gate = gate
	f.recorder = limiter.NewRecorder(f.store, util.Get())

	switch cfg.Auth.Mode {
	case "static":
		f.authenticator = auth.NewStaticAuthenticator(cfg.Auth.StaticUsers, cfg.Auth.SessionTTL)
	default:
		f.authenticator = auth.NewPlatformClient(cfg.Auth.PlatformURL, cfg.Auth.AppID, cfg.Auth.SessionTTL, util.Get())
	}

	// Kafka is optional; the gateway works without the event pipeline.
	f.publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := client.NewKafkaProducer(cfg, util.Get())
		if err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without event publishing", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
			publisher, err := events.NewKafkaPublisher(producer, cfg.Kafka.Topic, util.Get())
			if err != nil {
				return fmt.Errorf("failed to create event publisher: %w", err)
			}
			f.publisher = publisher
		}
	}

	f.loginHandler = handler.NewLoginHandler(
		f.gate,
		f.recorder,
		f.authenticator,
		f.publisher,
		handler.LoginHandlerConfig{
			Strategy:    limiter.IdentityStrategy(cfg.Limiter.IdentityStrategy),
			MaxFailures: cfg.Limiter.MaxFailures,
			AuthTimeout: cfg.Auth.Timeout,
		},
		util.Get(),
	)

	return nil
}

// HealthCheck reports whether the attempt store backend is reachable. The
// in-memory store has nothing to check.
func (f *Factory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.HealthCheck(ctx)
	}
	return nil
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		util.Info("Shutting down factory...")

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		util.Sync()
	})
	return nil
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) LoginHandler() *handler.LoginHandler {
	return f.loginHandler
}

// MemoryStore returns the in-memory store when that backend is configured,
// so the caller can run the background sweep; nil otherwise.
func (f *Factory) MemoryStore() *limiter.MemoryStore {
	return f.memoryStore
}
