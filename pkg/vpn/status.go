// Package vpn implements the connectivity-driven lifecycle core of the
// tunfence service: the controller owning the tunnel's lifecycle status,
// the monitor reducing raw network events into semantic signals, and the
// bridge carrying worker status reports between execution contexts.
package vpn

// Status is the user-visible lifecycle status of the tunnel service.
type Status int

const (
	// StatusStopped represents a tunnel the user has stopped.
	StatusStopped Status = iota

	// StatusStarting is set while the worker establishes the tunnel.
	StatusStarting

	// StatusRunning is set when the tunnel is passing traffic.
	StatusRunning

	// StatusWaitingForNetwork is set when connectivity is lost while the
	// user wants the tunnel started.
	StatusWaitingForNetwork

	// StatusReconnecting is set while the tunnel restarts after a network
	// change.
	StatusReconnecting
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "Stopped"
	case StatusStarting:
		return "Starting"
	case StatusRunning:
		return "Running"
	case StatusWaitingForNetwork:
		return "Waiting for network"
	case StatusReconnecting:
		return "Reconnecting"
	default:
		return "Unknown"
	}
}

// Code returns the small integer tag used when a status crosses an
// execution-context or process boundary.
func (s Status) Code() int {
	return int(s)
}

// StatusFromCode is the inverse of Code. Unknown codes yield
// (StatusStopped, false).
func StatusFromCode(code int) (Status, bool) {
	s := Status(code)
	switch s {
	case StatusStopped, StatusStarting, StatusRunning, StatusWaitingForNetwork, StatusReconnecting:
		return s, true
	default:
		return StatusStopped, false
	}
}

// IsStarted reports whether the status describes a tunnel the user has
// started, whether or not it is currently passing traffic.
func (s Status) IsStarted() bool {
	return s != StatusStopped
}
