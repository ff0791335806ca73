package udp

import "errors"

// Sentinel kinds for datagram decoding and commands.
var (
	ErrMalformed       = errors.New("malformed datagram")
	ErrMissingNode     = errors.New("datagram has no node id")
	ErrMissingDistance = errors.New("datagram has no distance")
	ErrNoTarget        = errors.New("door node address unknown")
)
