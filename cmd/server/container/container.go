package container

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/duette-app/duette/cmd/server/fanout"
	"github.com/duette-app/duette/cmd/server/repository"
	"github.com/duette-app/duette/cmd/server/service"
	"github.com/duette-app/duette/common/bootstrap"
	"github.com/duette-app/duette/common/objectstore"
	"github.com/duette-app/duette/common/ratelimit"
)

// Container holds all initialized services and repositories
type Container struct {
	Components *bootstrap.Components

	// Storage
	Store   objectstore.Store
	Videos  repository.VideoRepository
	Duettes repository.DuetteRepository

	// Services
	Catalog    *service.CatalogService
	Dispatcher *service.Dispatcher
	Hub        *fanout.Hub
	Relay      *fanout.Relay          // nil without Redis
	Limiter    *ratelimit.RateLimiter // nil without Redis
}

// NewContainer initializes all services and repositories once
func NewContainer(ctx context.Context, components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	store, err := objectstore.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}

	videos, duettes, err := newCatalogRepositories(ctx, components)
	if err != nil {
		return nil, err
	}

	filter, err := service.NewFilterEvaluator()
	if err != nil {
		return nil, err
	}

	catalog := service.NewCatalogService(
		videos,
		duettes,
		filter,
		components.Cache,
		components.Queue,
		cfg.Cache.DefaultTTL,
		log,
	)

	hub := fanout.NewHub(log)
	dispatcher := service.NewDispatcher(log,
		service.NewJanitor(store, log),
		service.NewNotifier(components.Redis, hub, log),
	)

	c := &Container{
		Components: components,
		Store:      store,
		Videos:     videos,
		Duettes:    duettes,
		Catalog:    catalog,
		Dispatcher: dispatcher,
		Hub:        hub,
	}

	if components.Redis != nil {
		c.Relay = fanout.NewRelay(components.Redis, hub, service.EventsChannel, log)
		c.Limiter = ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), log)
	}

	return c, nil
}

// Start runs the background workers until ctx is done
func (c *Container) Start(ctx context.Context) error {
	log := c.Components.Logger

	go c.Hub.Run(ctx)

	if c.Components.Queue != nil {
		if err := c.Dispatcher.Start(ctx, c.Components.Queue); err != nil {
			return fmt.Errorf("failed to start event dispatcher: %w", err)
		}
	}

	if c.Relay != nil {
		go func() {
			if err := c.Relay.Start(ctx); err != nil {
				log.Error("event relay stopped", "error", err)
			}
		}()
	}
	return nil
}

func newCatalogRepositories(ctx context.Context, components *bootstrap.Components) (repository.VideoRepository, repository.DuetteRepository, error) {
	cfg := components.Config

	switch cfg.Catalog.Backend {
	case "postgres":
		if components.DB == nil {
			return nil, nil, fmt.Errorf("postgres catalog requires a database connection")
		}
		return repository.NewVideoPostgresRepository(components.DB),
			repository.NewDuettePostgresRepository(components.DB),
			nil

	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("unable to load SDK config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.Catalog.DynamoDBEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Catalog.DynamoDBEndpoint)
			}
		})
		catalog := repository.NewDynamoCatalog(client, cfg.Catalog.VideosTable, cfg.Catalog.DuettesTable)
		components.Logger.Info("dynamodb catalog ready",
			"videos_table", cfg.Catalog.VideosTable,
			"duettes_table", cfg.Catalog.DuettesTable)
		return catalog.Videos(), catalog.Duettes(), nil

	case "memory":
		components.Logger.Warn("using in-memory catalog, videos are lost on restart")
		catalog := repository.NewMemoryCatalog()
		return catalog.Videos(), catalog.Duettes(), nil

	default:
		return nil, nil, fmt.Errorf("unknown catalog backend: %s", cfg.Catalog.Backend)
	}
}
