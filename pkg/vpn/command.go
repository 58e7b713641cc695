package vpn

// Command is a service command delivered as an opaque message from the
// command surface. Values are stable wire tags.
type Command int

const (
	// CommandStart asks the controller to start the tunnel.
	CommandStart Command = 1

	// CommandStop asks the controller to stop the tunnel.
	CommandStop Command = 2
)

// String implements fmt.Stringer.
func (c Command) String() string {
	switch c {
	case CommandStart:
		return "START"
	case CommandStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}
