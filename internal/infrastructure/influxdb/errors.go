package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled")

	// ErrConnectionFailed means the server could not be reached or is unhealthy.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by calls made after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps async write errors passed to the OnError hook.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
