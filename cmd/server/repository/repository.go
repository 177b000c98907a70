package repository

import (
	"context"
	"errors"

	"github.com/duette-app/duette/cmd/server/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a video or duette does not exist
var ErrNotFound = errors.New("not found")

// VideoRepository stores video metadata
type VideoRepository interface {
	Create(ctx context.Context, video *models.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	// List returns videos newest first. A non-empty search matches title,
	// composer or performer as a case-insensitive substring.
	List(ctx context.Context, search string) ([]*models.Video, error)
	Update(ctx context.Context, video *models.Video) error
	// Delete removes the video and its duette rows, returning the removed
	// duette ids. A failed delete may still return the ids of duettes that
	// were already removed.
	Delete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
}

// DuetteRepository stores duette records
type DuetteRepository interface {
	Create(ctx context.Context, duette *models.Duette) error
	ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*models.Duette, error)
	Delete(ctx context.Context, videoID, id uuid.UUID) error
}
