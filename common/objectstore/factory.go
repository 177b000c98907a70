package objectstore

import (
	"context"
	"fmt"

	"github.com/duette-app/duette/common/config"
	"github.com/duette-app/duette/common/logger"
)

// New builds the store selected by cfg.Backend
func New(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3StoreFromConfig(ctx, cfg, log)
	case "memory":
		log.Warn("using in-memory object store, objects are lost on restart")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown object store backend: %s", cfg.Backend)
	}
}
