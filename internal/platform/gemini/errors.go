package gemini

import "errors"

// ErrInvalidCount is returned when the requested question count is out of range.
var ErrInvalidCount = errors.New("question count out of range")
