package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/duette-app/duette/cmd/server/models"
)

// ValidateVideo checks the editable fields of v
func ValidateVideo(v *models.Video) error {
	if strings.TrimSpace(v.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(v.Performer) == "" {
		return fmt.Errorf("%w: performer is required", ErrValidation)
	}
	if v.Composer != nil && strings.TrimSpace(*v.Composer) == "" {
		return fmt.Errorf("%w: composer must not be empty when present", ErrValidation)
	}
	if v.Key != nil && strings.TrimSpace(*v.Key) == "" {
		return fmt.Errorf("%w: key must not be empty when present", ErrValidation)
	}
	if v.Notes != nil && utf8.RuneCountInString(*v.Notes) > models.MaxNotesLength {
		return fmt.Errorf("%w: notes must be at most %d characters", ErrValidation, models.MaxNotesLength)
	}
	return nil
}
