package vpn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capsMap map[Network]Capabilities

func (m capsMap) Capabilities(n Network) (Capabilities, bool) {
	c, ok := m[n]
	return c, ok
}

var (
	ethNet  = Network{Index: 2, Name: "eth0"}
	wifiNet = Network{Index: 3, Name: "wlan0"}
	tunNet  = Network{Index: 7, Name: "tfence0"}
)

func testCaps() capsMap {
	return capsMap{
		ethNet:  {Internet: true, Validated: true},
		wifiNet: {Internet: true},
		tunNet:  {Tunnel: true, Internet: true},
	}
}

func available(n Network) NetworkEvent {
	return NetworkEvent{Kind: NetworkAvailable, Network: n}
}

func TestNetworkMonitor_InitialNotificationSuppressed(t *testing.T) {
	// The first available network after (re)registration is a snapshot of
	// the current state, not a change, whatever its capabilities are.
	cases := []struct {
		name    string
		network Network
	}{
		{name: "plain_network", network: ethNet},
		{name: "tunnel_transport", network: tunNet},
		{name: "unknown_capabilities", network: Network{Index: 9, Name: "ppp0"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewNetworkMonitor(nil, testCaps())
			assert.Equal(t, SignalNone, m.Observe(available(tc.network)))
		})
	}
}

func TestNetworkMonitor_SelfActivationSuppressed(t *testing.T) {
	// The tunnel's own interface appearing as the default network is a
	// self-caused transition and must not be reported as a change.
	m := NewNetworkMonitor(nil, testCaps())

	require.Equal(t, SignalNone, m.Observe(available(ethNet)))
	assert.Equal(t, SignalNone, m.Observe(available(tunNet)))
}

func TestNetworkMonitor_RealChangeSignalsRegained(t *testing.T) {
	m := NewNetworkMonitor(nil, testCaps())

	require.Equal(t, SignalNone, m.Observe(available(ethNet)))
	assert.Equal(t, SignalRegained, m.Observe(available(wifiNet)))
}

func TestNetworkMonitor_SuppressionNotRetriggered(t *testing.T) {
	// The suppression state is updated before the checks, so a duplicate
	// tunnel-transport callback is only suppressed once.
	m := NewNetworkMonitor(nil, testCaps())

	require.Equal(t, SignalNone, m.Observe(available(ethNet)))
	require.Equal(t, SignalNone, m.Observe(available(tunNet)))
	assert.Equal(t, SignalRegained, m.Observe(available(tunNet)))
}

func TestNetworkMonitor_LostAlwaysSignals(t *testing.T) {
	// DesiredState filtering belongs to the controller, not the monitor.
	m := NewNetworkMonitor(nil, testCaps())
	assert.Equal(t, SignalLost, m.Observe(NetworkEvent{Kind: NetworkLost, Network: ethNet}))
}

func TestNetworkMonitor_CapabilitiesChangedIsDiagnosticOnly(t *testing.T) {
	m := NewNetworkMonitor(nil, testCaps())
	assert.Equal(t, SignalNone, m.Observe(NetworkEvent{Kind: NetworkCapabilitiesChanged, Network: ethNet}))
}

func TestNetworkMonitor_UnknownCapabilitiesTreatedAsUnchanged(t *testing.T) {
	// A network without capability information keeps the previous
	// transport assessment, so a tunnel transport cannot be "entered" by
	// incomplete platform data.
	unknown := Network{Index: 11, Name: "usb0"}
	m := NewNetworkMonitor(nil, testCaps())

	require.Equal(t, SignalNone, m.Observe(available(ethNet)))
	assert.Equal(t, SignalRegained, m.Observe(available(unknown)))

	// The assessment carried over: a tunnel network afterwards is still a
	// fresh transport flip and is suppressed.
	assert.Equal(t, SignalNone, m.Observe(available(tunNet)))
}

func TestNetworkMonitor_ResetRestoresSnapshotSuppression(t *testing.T) {
	m := NewNetworkMonitor(nil, testCaps())

	require.Equal(t, SignalNone, m.Observe(available(ethNet)))
	require.Equal(t, SignalRegained, m.Observe(available(wifiNet)))

	m.Reset()
	assert.Equal(t, SignalNone, m.Observe(available(wifiNet)))
}
