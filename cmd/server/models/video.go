package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxNotesLength is the longest accepted notes text, in characters
const MaxNotesLength = 250

// Video is a reference recording that duettes are performed against.
// Maps to: video table
type Video struct {
	ID uuid.UUID `db:"id" json:"id"`

	Title     string  `db:"title" json:"title"`
	Composer  *string `db:"composer" json:"composer,omitempty"`
	Key       *string `db:"music_key" json:"key,omitempty"` // musical key, e.g. "D minor"
	Performer string  `db:"performer" json:"performer"`
	Notes     *string `db:"notes" json:"notes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CreateVideoRequest is the POST /api/video body
type CreateVideoRequest struct {
	Title     string  `json:"title"`
	Composer  *string `json:"composer,omitempty"`
	Key       *string `json:"key,omitempty"`
	Performer string  `json:"performer"`
	Notes     *string `json:"notes,omitempty"`
}

// ToVideo builds an unsaved video from the request
func (r *CreateVideoRequest) ToVideo() *Video {
	return &Video{
		Title:     r.Title,
		Composer:  r.Composer,
		Key:       r.Key,
		Performer: r.Performer,
		Notes:     r.Notes,
	}
}

// Fields exposes the video to CEL filter expressions
func (v *Video) Fields() map[string]any {
	return map[string]any{
		"id":        v.ID.String(),
		"title":     v.Title,
		"composer":  deref(v.Composer),
		"key":       deref(v.Key),
		"performer": v.Performer,
		"notes":     deref(v.Notes),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
