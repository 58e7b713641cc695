package vpn

import (
	"github.com/sirupsen/logrus"

	"github.com/skycoin/skywire-utilities/pkg/logging"
)

// Signal is the semantic reduction of a raw connectivity event. Each event
// yields at most one signal.
type Signal int

const (
	// SignalNone suppresses the event.
	SignalNone Signal = iota

	// SignalRegained reports a genuine external connectivity change.
	SignalRegained

	// SignalLost reports loss of the default network.
	SignalLost
)

// NetworkMonitor reduces the raw default-network event stream into
// semantic signals, suppressing the registration-time snapshot and the
// synthetic change caused by the tunnel's own interface becoming the
// default network. Without these suppressions, enabling the tunnel would
// be observed as a new default network, triggering a reconnect that
// toggles the tunnel interface again, looping forever.
//
// Observe and Reset run only on the controller's evaluation context; the
// monitor's state is deliberately unsynchronized.
type NetworkMonitor struct {
	log  logrus.FieldLogger
	caps CapabilitySource

	initialStateNotified bool
	wasVpnTransport      bool
}

// NewNetworkMonitor instantiates a NetworkMonitor.
func NewNetworkMonitor(log logrus.FieldLogger, caps CapabilitySource) *NetworkMonitor {
	if log == nil {
		log = logging.MustGetLogger("network_monitor")
	}
	m := &NetworkMonitor{
		log:  log,
		caps: caps,
	}
	m.Reset()
	return m
}

// Reset clears the observation state. It is called on every
// (re)registration with the connectivity subsystem, so the next available
// network is treated as a snapshot, not a change.
func (m *NetworkMonitor) Reset() {
	m.initialStateNotified = false
	m.wasVpnTransport = false
}

// Observe reduces one raw event into a signal.
func (m *NetworkMonitor) Observe(ev NetworkEvent) Signal {
	switch ev.Kind {
	case NetworkAvailable:
		return m.observeAvailable(ev.Network)
	case NetworkLost:
		m.log.Debug("Connectivity changed to no connectivity.")
		return SignalLost
	case NetworkCapabilitiesChanged:
		if caps, ok := m.caps.Capabilities(ev.Network); ok {
			m.log.WithField("tunnel", caps.Tunnel).
				WithField("internet", caps.Internet).
				WithField("validated", caps.Validated).
				Debugf("Network %s capabilities changed.", ev.Network)
		}
		return SignalNone
	default:
		return SignalNone
	}
}

func (m *NetworkMonitor) observeAvailable(n Network) Signal {
	// Unknown capabilities leave the transport assessment unchanged, so
	// incomplete platform data cannot fake a transport flip either way.
	isVpnTransport := m.wasVpnTransport
	if caps, ok := m.caps.Capabilities(n); ok {
		isVpnTransport = caps.Tunnel
	}

	initialNotification := !m.initialStateNotified
	vpnTransportJustEnabled := !m.wasVpnTransport && isVpnTransport

	// State updates happen before the suppression checks so a duplicate
	// callback never re-triggers the same suppression.
	m.initialStateNotified = true
	m.wasVpnTransport = isVpnTransport

	if initialNotification {
		m.log.Debug("Skipping initial network notification.")
		return SignalNone
	}
	if vpnTransportJustEnabled {
		m.log.Debug("Skipping tunnel transport activation notification.")
		return SignalNone
	}

	m.log.Infof("Network changed to %s.", n)
	return SignalRegained
}
