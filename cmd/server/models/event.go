package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a catalog change
type EventType string

const (
	EventVideoCreated  EventType = "video.created"
	EventVideoUpdated  EventType = "video.updated"
	EventVideoDeleted  EventType = "video.deleted"
	EventDuetteCreated EventType = "duette.created"
	EventDuetteDeleted EventType = "duette.deleted"
)

// CatalogEvent is published after every committed catalog mutation
type CatalogEvent struct {
	Type      EventType   `json:"type"`
	VideoID   uuid.UUID   `json:"video_id"`
	DuetteIDs []uuid.UUID `json:"duette_ids,omitempty"`
	At        time.Time   `json:"at"`
}
