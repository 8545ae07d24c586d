package app

import "errors"

var (
	// ErrMissingInput is returned when neither or both input modalities are
	// present. Messages here are shown to end users as-is.
	ErrMissingInput = errors.New("exactly one of text or file input is required")

	// ErrInvalidRatio rejects summary ratios outside (0, 1].
	ErrInvalidRatio = errors.New("ratio must be greater than 0 and at most 1")

	// ErrMissingRequiredField rejects record creation without owner or content.
	ErrMissingRequiredField = errors.New("missing required summary data")

	// ErrInvalidInputMedium rejects input medium values whose tag does not
	// match the populated fields.
	ErrInvalidInputMedium = errors.New("input medium tag does not match its payload")

	// ErrInvalidRating rejects feedback ratings outside 1..5.
	ErrInvalidRating = errors.New("valid rating (1-5) is required")

	// ErrNotFound indicates the record id resolves to nothing.
	ErrNotFound = errors.New("summary not found")
)
