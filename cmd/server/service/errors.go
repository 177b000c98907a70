package service

import "errors"

var (
	// ErrValidation wraps every rejected video or duette input
	ErrValidation = errors.New("validation failed")
	// ErrInvalidFilter is returned for CEL filters that do not compile to a bool
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidPatch is returned for malformed or disallowed JSON Patch documents
	ErrInvalidPatch = errors.New("invalid patch")
)
