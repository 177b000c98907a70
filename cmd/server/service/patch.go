package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/duette-app/duette/cmd/server/models"
	jsonpatch "github.com/evanphx/json-patch/v5"
)

// editableVideo is the document a PATCH operates on. id and the timestamps
// are not part of it, so any operation touching them fails.
type editableVideo struct {
	Title     string  `json:"title"`
	Composer  *string `json:"composer,omitempty"`
	Key       *string `json:"key,omitempty"`
	Performer string  `json:"performer"`
	Notes     *string `json:"notes,omitempty"`
}

// ApplyVideoPatch applies an RFC 6902 patch to a copy of v
func ApplyVideoPatch(v *models.Video, patchJSON []byte) (*models.Video, error) {
	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	doc, err := json.Marshal(editableVideo{
		Title:     v.Title,
		Composer:  v.Composer,
		Key:       v.Key,
		Performer: v.Performer,
		Notes:     v.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal video: %w", err)
	}

	patched, err := patch.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	var edited editableVideo
	dec := json.NewDecoder(bytes.NewReader(patched))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&edited); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	out := *v
	out.Title = edited.Title
	out.Composer = edited.Composer
	out.Key = edited.Key
	out.Performer = edited.Performer
	out.Notes = edited.Notes
	return &out, nil
}
