package ai

import "errors"

var (
	// ErrMalformedOutput is returned when a model answer cannot be parsed
	// into the expected shape after all attempts.
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrUnsupportedDialect is returned by translators asked for a query
	// language they cannot produce.
	ErrUnsupportedDialect = errors.New("unsupported query dialect")
)
