package service

import "errors"

var (
	// ErrNoSources rejects generation requests with nothing to ground on.
	ErrNoSources = errors.New("at least one source is required")

	ErrNoMessages  = errors.New("messages are required")
	ErrInvalidKind = errors.New("unknown content kind")

	// ErrModelOutput means the model answered but not in the expected shape.
	ErrModelOutput = errors.New("model returned an unusable response")
)
