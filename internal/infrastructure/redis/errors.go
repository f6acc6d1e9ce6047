package redis

import "errors"

var (
	// ErrDisabled indicates Redis is disabled in configuration.
	ErrDisabled = errors.New("redis: disabled in configuration")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("redis: connection failed")

	// ErrNotConnected is returned after Close.
	ErrNotConnected = errors.New("redis: not connected")
)
