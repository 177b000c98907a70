package recording

import (
	"context"
	"fmt"
	"os"

	"github.com/duette-app/duette/common/clients"
	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/objectkey"
)

// DuetteCatalog is the catalog side of an upload
type DuetteCatalog interface {
	CreateDuette(ctx context.Context, videoID string) (*clients.Duette, error)
	DeleteDuette(ctx context.Context, videoID, duetteID string) error
}

// ObjectPutter is the object side of an upload
type ObjectPutter interface {
	Put(ctx context.Context, key string, body []byte) (*clients.PutResult, error)
}

// ClientUploader creates the duette record, then uploads the take under the
// record's object key. When the upload fails the record is removed again.
type ClientUploader struct {
	catalog DuetteCatalog
	objects ObjectPutter
	log     *logger.Logger
}

// NewClientUploader creates an uploader over the catalog and object clients
func NewClientUploader(catalog DuetteCatalog, objects ObjectPutter, log *logger.Logger) *ClientUploader {
	return &ClientUploader{catalog: catalog, objects: objects, log: log}
}

// Upload reads fileURI and stores it as a new duette of videoID
func (u *ClientUploader) Upload(ctx context.Context, videoID, fileURI string) (*clients.Duette, error) {
	if err := objectkey.Validate(videoID); err != nil {
		return nil, fmt.Errorf("upload take: %w", err)
	}
	body, err := os.ReadFile(fileURI)
	if err != nil {
		return nil, fmt.Errorf("read take: %w", err)
	}

	duette, err := u.catalog.CreateDuette(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("create duette: %w", err)
	}

	if _, err := u.objects.Put(ctx, duette.ObjectKey, body); err != nil {
		if delErr := u.catalog.DeleteDuette(ctx, videoID, duette.ID); delErr != nil {
			u.log.Warn("failed to remove duette after upload failure",
				"duette_id", duette.ID, "error", delErr)
		}
		return nil, fmt.Errorf("upload %s: %w", duette.ObjectKey, err)
	}

	u.log.WithObjectKey(duette.ObjectKey).Info("take uploaded", "bytes", len(body))
	return duette, nil
}
