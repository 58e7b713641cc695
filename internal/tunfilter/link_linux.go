package tunfilter

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// setupLink assigns addr to the named link, sets its MTU and brings it up.
func setupLink(name, addr string, mtu int) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("error getting link %s: %w", name, err)
	}

	if addr != "" {
		a, err := netlink.ParseAddr(addr)
		if err != nil {
			return fmt.Errorf("error parsing address %s: %w", addr, err)
		}
		if err := netlink.AddrAdd(link, a); err != nil {
			return fmt.Errorf("error assigning address %s to %s: %w", addr, name, err)
		}
	}

	if err := netlink.LinkSetMTU(link, mtu); err != nil {
		return fmt.Errorf("error setting MTU on %s: %w", name, err)
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("error bringing %s up: %w", name, err)
	}

	return nil
}
