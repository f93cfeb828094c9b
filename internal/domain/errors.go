package domain

import "errors"

var (
	// ErrMalformed marks an upstream response that could not be normalized.
	// The affected record is dropped and counted; the run continues.
	ErrMalformed = errors.New("malformed upstream response")

	// ErrNotFound marks a scrape or lookup that completed but did not
	// contain the expected row or field.
	ErrNotFound = errors.New("not found in upstream response")
)
