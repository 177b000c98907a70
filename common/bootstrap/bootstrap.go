package bootstrap

import (
	"context"
	"fmt"

	"github.com/duette-app/duette/common/cache"
	"github.com/duette-app/duette/common/config"
	"github.com/duette-app/duette/common/db"
	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/queue"
	"github.com/duette-app/duette/common/redis"
	"github.com/duette-app/duette/common/telemetry"
)

// Setup initializes all service components
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{}

	// 1. Configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg := components.Config

	// 2. Logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)
	}
	log := components.Logger

	log.Info("initializing service",
		"service", serviceName,
		"environment", cfg.Service.Environment,
	)

	// 3. Database, only used by the postgres catalog
	if cfg.Catalog.Backend == "postgres" {
		log.Info("connecting to database")
		components.DB, err = db.New(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		components.addCleanup(func() error {
			components.DB.Close()
			return nil
		})

		if options.dbInitHook != nil {
			log.Info("running database init hook")
			if err := options.dbInitHook(components.DB); err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("database init hook failed: %w", err)
			}
		}
	}

	// 4. Redis
	if cfg.Redis.Enabled {
		components.Redis, err = redis.Connect(ctx, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		components.addCleanup(func() error {
			log.Info("closing redis connection")
			return components.Redis.Close()
		})
	}

	// 5. Queue
	if !options.skipQueue {
		log.Info("initializing queue", "type", cfg.Queue.Type)

		switch cfg.Queue.Type {
		case "memory":
			components.Queue = queue.NewMemoryQueue(cfg.Queue.BufferSize, log)
		default:
			components.Shutdown(ctx)
			return nil, fmt.Errorf("unknown queue type: %s", cfg.Queue.Type)
		}

		components.addCleanup(func() error {
			log.Info("closing queue")
			return components.Queue.Close()
		})
	}

	// 6. Cache, Redis backed when available
	if cfg.Cache.Enabled {
		if components.Redis != nil {
			components.Cache = cache.NewRedisCache(components.Redis, log)
		} else {
			components.Cache = cache.NewMemoryCache(log)
		}
		log.Info("cache initialized", "redis", components.Redis != nil, "ttl", cfg.Cache.DefaultTTL)

		components.addCleanup(func() error {
			return components.Cache.Close()
		})
	}

	// 7. Telemetry
	if cfg.Telemetry.EnablePprof {
		components.Telemetry = telemetry.New(cfg.Telemetry.PprofPort, log)
		if err := components.Telemetry.Start(ctx); err != nil {
			// telemetry never blocks startup
			log.Warn("failed to start telemetry", "error", err)
		}

		components.addCleanup(func() error {
			return components.Telemetry.Stop(context.Background())
		})
	}

	log.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"redis", components.Redis != nil,
		"queue", components.Queue != nil,
		"cache", components.Cache != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

// MustSetup is like Setup but panics on error
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
