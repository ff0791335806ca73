package simulation

import "errors"

var (
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrNoTarget        = errors.New("no target address")
	ErrNoNodes         = errors.New("no nodes to simulate")
)
