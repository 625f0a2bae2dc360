package billing

import "errors"

// The engine distinguishes two failure classes: bad input (unparseable
// dates, malformed energy values, unknown periods) and empty result sets.
// Callers map them to 400 and 404 respectively. They are never collapsed
// into one generic failure.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)
