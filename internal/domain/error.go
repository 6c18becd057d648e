package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrQueueUnavailable   = errors.New("job queue unavailable")
	ErrUnsupportedFormat  = errors.New("unsupported drawing format")
	ErrConverterNotFound  = errors.New("drawing converter not found")
	ErrConversionFailed   = errors.New("drawing conversion failed")
	ErrOutputNotReady     = errors.New("job output not ready")
	ErrJobAlreadyClaimed  = errors.New("job already claimed by another worker")
	ErrInvalidExecContext = errors.New("invalid query execution context")
)
