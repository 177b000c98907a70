package clients

import "time"

// Video is a reference video as returned by the catalog
type Video struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Composer  string    `json:"composer,omitempty"`
	Key       string    `json:"key,omitempty"`
	Performer string    `json:"performer"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VideoDetails is the payload for creating a video, empty optional fields are omitted
type VideoDetails struct {
	Title     string `json:"title"`
	Composer  string `json:"composer,omitempty"`
	Key       string `json:"key,omitempty"`
	Performer string `json:"performer"`
	Notes     string `json:"notes,omitempty"`
}

// Duette is a recorded take against a reference video
type Duette struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"video_id"`
	ObjectKey string    `json:"object_key"`
	CreatedAt time.Time `json:"created_at"`
}

// PatchOp is one RFC 6902 operation
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
	From  string `json:"from,omitempty"`
}

// Catalog event types
const (
	EventVideoCreated  = "video.created"
	EventVideoUpdated  = "video.updated"
	EventVideoDeleted  = "video.deleted"
	EventDuetteCreated = "duette.created"
	EventDuetteDeleted = "duette.deleted"
)

// CatalogEvent is a change notification pushed over /api/events
type CatalogEvent struct {
	Type      string    `json:"type"`
	VideoID   string    `json:"video_id"`
	DuetteIDs []string  `json:"duette_ids,omitempty"`
	At        time.Time `json:"at"`
}

// PutResult is the proxy's metadata for a stored object
type PutResult struct {
	Key       string `json:"Key"`
	ETag      string `json:"ETag,omitempty"`
	VersionID string `json:"VersionId,omitempty"`
	Size      int64  `json:"Size"`
}
