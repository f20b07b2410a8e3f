package domain

import "errors"

var (
	// ErrAlreadyRequested is returned when a visit was already requested for a listing
	ErrAlreadyRequested = errors.New("visit already requested")
	// ErrUnknownProperty is returned for ids not present in the current record set
	ErrUnknownProperty = errors.New("unknown property")
	// ErrInvalidFilter wraps malformed filter assignments
	ErrInvalidFilter = errors.New("invalid filter")
)
