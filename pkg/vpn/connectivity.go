package vpn

import (
	"context"
	"fmt"
)

// Network identifies a platform network as seen by the connectivity
// subsystem. On Linux this is the link carrying the default route.
type Network struct {
	Index int
	Name  string
}

// String implements fmt.Stringer.
func (n Network) String() string {
	return fmt.Sprintf("%s(%d)", n.Name, n.Index)
}

// Capabilities describe what the connectivity subsystem knows about a
// network.
type Capabilities struct {
	// Tunnel is set when the network is carried by the tunnel's own
	// transport.
	Tunnel bool
	// Internet is set when the network provides a default route.
	Internet bool
	// Validated is set when the network's link is operationally up.
	Validated bool
}

// EventKind enumerates the raw connectivity events delivered about the
// device's default network.
type EventKind int

const (
	// NetworkAvailable reports that a default network is (newly) selected.
	NetworkAvailable EventKind = iota

	// NetworkLost reports that the default network went away.
	NetworkLost

	// NetworkCapabilitiesChanged reports a capability change of the
	// current default network.
	NetworkCapabilitiesChanged
)

// NetworkEvent is a raw default-network event.
type NetworkEvent struct {
	Kind    EventKind
	Network Network
}

// CapabilitySource resolves the capabilities of a network. The boolean
// result is false when the platform has no capability information for it.
type CapabilitySource interface {
	Capabilities(n Network) (Capabilities, bool)
}

// Connectivity is the platform connectivity subsystem observed by the
// controller.
//
// Register delivers raw events about the device's default network on the
// returned channel until ctx is cancelled, after which the channel is
// closed. The channel is consumed from the controller's single evaluation
// context; implementations must deliver values into it rather than execute
// observer logic on their own callback context.
type Connectivity interface {
	CapabilitySource

	Register(ctx context.Context) (<-chan NetworkEvent, error)
}
