package model

import "errors"

// Sentinel kinds shared by every component constructor and the ingestion boundary.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrUnknownNode   = errors.New("unknown node")
	ErrInvalidState  = errors.New("invalid state")
)
