package vpn

import "errors"

var (
	// ErrBridgeClosed is returned when closing an already closed status bridge.
	ErrBridgeClosed = errors.New("status bridge is closed")

	// ErrAlreadyServing is returned when Run is called on a controller that
	// is already serving.
	ErrAlreadyServing = errors.New("controller is already serving")
)
