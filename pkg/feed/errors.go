package feed

import (
	"errors"
)

var (
	// ErrTransport is returned when the feed could not be reached, timed out
	// or answered with an unexpected status.
	ErrTransport = errors.New("transport error")

	// ErrParse is returned when the response body is not valid JSON or does
	// not have the expected types.
	ErrParse = errors.New("parse error")

	// ErrMissingField is returned when the response is valid JSON but lacks
	// an expected key, for example when the feed returned an error payload.
	ErrMissingField = errors.New("missing field")
)
