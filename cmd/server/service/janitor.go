package service

import (
	"context"
	"errors"

	"github.com/duette-app/duette/cmd/server/models"
	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/objectkey"
	"github.com/duette-app/duette/common/objectstore"
)

// Janitor deletes duette objects whose records were removed. The reference
// video and thumbnail objects are removed by the client delete workflow.
type Janitor struct {
	store objectstore.Store
	log   *logger.Logger
}

// NewJanitor creates a janitor over store
func NewJanitor(store objectstore.Store, log *logger.Logger) *Janitor {
	return &Janitor{store: store, log: log}
}

func (j *Janitor) Name() string { return "janitor" }

// Handle deletes the objects of removed duettes, missing objects are fine
func (j *Janitor) Handle(ctx context.Context, event models.CatalogEvent) error {
	if event.Type != models.EventVideoDeleted && event.Type != models.EventDuetteDeleted {
		return nil
	}

	var errs []error
	for _, duetteID := range event.DuetteIDs {
		key := objectkey.Duette(event.VideoID.String(), duetteID.String())
		if err := j.store.Delete(ctx, key); err != nil && !objectstore.IsNotFound(err) {
			j.log.WithObjectKey(key).Warn("failed to delete duette object", "error", err)
			errs = append(errs, err)
			continue
		}
		j.log.WithObjectKey(key).Debug("duette object deleted")
	}
	return errors.Join(errs...)
}
