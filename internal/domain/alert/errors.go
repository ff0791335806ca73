package alert

import "errors"

// Sentinel kinds for alert dispatch.
var (
	ErrHandlerPanic     = errors.New("alert handler panicked")
	ErrDuplicateHandler = errors.New("alert handler already registered")
)
