// Package netwatch implements the connectivity subsystem over netlink:
// it observes the kernel's default route and reports the device's default
// network to the lifecycle core.
package netwatch

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/skycoin/skywire-utilities/pkg/logging"

	"github.com/tunfence/tunfence/pkg/vpn"
)

const (
	// rawChanSize buffers kernel updates ahead of translation.
	rawChanSize = 64
	// eventChanSize buffers translated events ahead of the controller.
	eventChanSize = 16
)

// Watcher translates netlink route and link updates into default-network
// events. Implements vpn.Connectivity.
type Watcher struct {
	log     *logging.Logger
	tunName string

	mx         sync.Mutex
	defaultNet vpn.Network // zero Index means no default network
}

// New instantiates a Watcher. tunName is the name of the tunnel's own
// interface, reported as the tunnel transport.
func New(log *logging.Logger, tunName string) *Watcher {
	if log == nil {
		log = logging.MustGetLogger("netwatch")
	}
	return &Watcher{
		log:     log,
		tunName: tunName,
	}
}

// Register implements vpn.Connectivity. The registration-time default
// network, if any, is delivered first as a snapshot event.
func (w *Watcher) Register(ctx context.Context) (<-chan vpn.NetworkEvent, error) {
	routeCh := make(chan netlink.RouteUpdate, rawChanSize)
	linkCh := make(chan netlink.LinkUpdate, rawChanSize)
	done := make(chan struct{})

	if err := netlink.RouteSubscribe(routeCh, done); err != nil {
		close(done)
		return nil, fmt.Errorf("failed to subscribe to route updates: %w", err)
	}
	if err := netlink.LinkSubscribe(linkCh, done); err != nil {
		close(done)
		return nil, fmt.Errorf("failed to subscribe to link updates: %w", err)
	}

	events := make(chan vpn.NetworkEvent, eventChanSize)

	if n, ok := w.lookupDefaultNetwork(); ok {
		w.setDefault(n)
		events <- vpn.NetworkEvent{Kind: vpn.NetworkAvailable, Network: n}
	}

	go w.translate(ctx, done, routeCh, linkCh, events)

	return events, nil
}

// Capabilities implements vpn.CapabilitySource. The boolean result is
// false when the link is gone or cannot be inspected.
func (w *Watcher) Capabilities(n vpn.Network) (vpn.Capabilities, bool) {
	link, err := netlink.LinkByIndex(n.Index)
	if err != nil {
		return vpn.Capabilities{}, false
	}

	attrs := link.Attrs()
	return vpn.Capabilities{
		Tunnel:    w.isTunnelLink(link),
		Internet:  attrs.Flags&net.FlagUp != 0,
		Validated: attrs.OperState == netlink.OperUp,
	}, true
}

func (w *Watcher) translate(ctx context.Context, done chan struct{},
	routeCh chan netlink.RouteUpdate, linkCh chan netlink.LinkUpdate, events chan<- vpn.NetworkEvent) {
	defer close(events)
	defer close(done)

	send := func(ev vpn.NetworkEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case u, ok := <-routeCh:
			if !ok {
				return
			}
			if !isDefaultRoute(u.Route) {
				continue
			}
			switch u.Type {
			case unix.RTM_NEWROUTE:
				w.onDefaultRoute(u.Route, send)
			case unix.RTM_DELROUTE:
				w.onDefaultRouteGone(send)
			}

		case u, ok := <-linkCh:
			if !ok {
				return
			}
			w.onLinkUpdate(u, send)
		}
	}
}

func (w *Watcher) onDefaultRoute(r netlink.Route, send func(vpn.NetworkEvent)) {
	n := w.network(r.LinkIndex)
	if w.currentDefault().Index == n.Index {
		return
	}
	w.setDefault(n)
	w.log.Debugf("Default network is now %s.", n)
	send(vpn.NetworkEvent{Kind: vpn.NetworkAvailable, Network: n})
}

func (w *Watcher) onDefaultRouteGone(send func(vpn.NetworkEvent)) {
	// Another default route may remain after a metric failover, so
	// recompute before reporting loss.
	if n, ok := w.lookupDefaultNetwork(); ok {
		if w.currentDefault().Index != n.Index {
			w.setDefault(n)
			w.log.Debugf("Default network is now %s.", n)
			send(vpn.NetworkEvent{Kind: vpn.NetworkAvailable, Network: n})
		}
		return
	}

	prev := w.currentDefault()
	if prev.Index == 0 {
		return
	}
	w.setDefault(vpn.Network{})
	w.log.Debugf("Default network %s lost.", prev)
	send(vpn.NetworkEvent{Kind: vpn.NetworkLost, Network: prev})
}

func (w *Watcher) onLinkUpdate(u netlink.LinkUpdate, send func(vpn.NetworkEvent)) {
	attrs := u.Link.Attrs()
	cur := w.currentDefault()
	if cur.Index == 0 || attrs.Index != cur.Index {
		return
	}
	send(vpn.NetworkEvent{Kind: vpn.NetworkCapabilitiesChanged, Network: cur})
}

// lookupDefaultNetwork scans the main routing table for a default route.
func (w *Watcher) lookupDefaultNetwork() (vpn.Network, bool) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		w.log.WithError(err).Warn("Failed to list routes.")
		return vpn.Network{}, false
	}

	for _, r := range routes {
		if isDefaultRoute(r) {
			return w.network(r.LinkIndex), true
		}
	}
	return vpn.Network{}, false
}

func (w *Watcher) network(index int) vpn.Network {
	name := fmt.Sprintf("if%d", index)
	if link, err := netlink.LinkByIndex(index); err == nil {
		name = link.Attrs().Name
	}
	return vpn.Network{Index: index, Name: name}
}

func (w *Watcher) isTunnelLink(link netlink.Link) bool {
	if link.Attrs().Name == w.tunName {
		return true
	}
	switch link.Type() {
	case "tun", "tuntap", "wireguard":
		return true
	default:
		return false
	}
}

func (w *Watcher) currentDefault() vpn.Network {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.defaultNet
}

func (w *Watcher) setDefault(n vpn.Network) {
	w.mx.Lock()
	defer w.mx.Unlock()
	w.defaultNet = n
}

// isDefaultRoute reports whether r matches all destinations.
func isDefaultRoute(r netlink.Route) bool {
	if r.Dst == nil {
		return true
	}
	ones, _ := r.Dst.Mask.Size()
	return ones == 0
}
