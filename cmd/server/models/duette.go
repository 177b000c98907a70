package models

import (
	"time"

	"github.com/duette-app/duette/common/objectkey"
	"github.com/google/uuid"
)

// Duette is one take recorded against a reference video.
// Maps to: duette table
type Duette struct {
	ID        uuid.UUID `db:"id" json:"id"`
	VideoID   uuid.UUID `db:"video_id" json:"video_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Where the take lives in the object store, derived from the ids
	ObjectKey string `db:"-" json:"object_key"`
}

// WithObjectKey fills ObjectKey and returns d
func (d *Duette) WithObjectKey() *Duette {
	d.ObjectKey = objectkey.Duette(d.VideoID.String(), d.ID.String())
	return d
}
