package notify

import "errors"

var (
	// ErrNoURL means a NATS publisher was built without a server URL.
	ErrNoURL = errors.New("notify: nats url is empty")
	// ErrNoBrokers means a Kafka publisher was built without brokers.
	ErrNoBrokers = errors.New("notify: kafka brokers are empty")
	// ErrClosed is returned by Handle after Close.
	ErrClosed = errors.New("notify: publisher closed")
)
