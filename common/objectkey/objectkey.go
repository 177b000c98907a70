// Package objectkey builds the object store keys used for Duette media.
package objectkey

import (
	"errors"
	"strings"
)

// Ext is appended to every media key
const Ext = ".mov"

const thumbnailSuffix = "thumbnail"

// ErrEmptyID is returned when a key would be built from an empty id
var ErrEmptyID = errors.New("empty id")

// Video is the key of a reference video
func Video(videoID string) string {
	return videoID + Ext
}

// Thumbnail is the key of a reference video's thumbnail clip
func Thumbnail(videoID string) string {
	return videoID + thumbnailSuffix + Ext
}

// Combined concatenates the reference video id and the duette id
func Combined(videoID, duetteID string) string {
	return videoID + duetteID
}

// Duette is the key of a recorded duette take
func Duette(videoID, duetteID string) string {
	return Combined(videoID, duetteID) + Ext
}

// Validate rejects ids that would produce ambiguous keys
func Validate(ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return ErrEmptyID
		}
	}
	return nil
}
