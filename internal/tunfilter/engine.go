// Package tunfilter implements the tunnel engine on a user-space TUN
// device: it opens and configures the interface and pumps packets to the
// filtering collaborator for as long as the session lives.
package tunfilter

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/songgao/water"

	"github.com/skycoin/skywire-utilities/pkg/logging"
)

const defaultMTU = 1500

// Config describes the tunnel interface.
type Config struct {
	// Name is the TUN interface name, e.g. "tfence0".
	Name string
	// Addr is the CIDR assigned to the interface.
	Addr string
	// MTU defaults to 1500.
	MTU int
}

// PacketHandler consumes frames read from the tunnel device. The
// filtering policy behind it is a collaborator, not part of the engine.
type PacketHandler func(packet []byte)

// TUNDevice is a wrapper for a TUN interface.
type TUNDevice interface {
	io.ReadWriteCloser
	Name() string
}

// Engine opens the TUN device and serves its packet loop. Implements
// tunworker.Engine.
type Engine struct {
	log     *logging.Logger
	cfg     Config
	handler PacketHandler

	// openTUN and configureLink are swappable in tests.
	openTUN       func(name string) (TUNDevice, error)
	configureLink func(name, addr string, mtu int) error
}

// New instantiates an Engine.
func New(log *logging.Logger, cfg Config, handler PacketHandler) *Engine {
	if log == nil {
		log = logging.MustGetLogger("tunnel_engine")
	}
	if cfg.MTU == 0 {
		cfg.MTU = defaultMTU
	}
	return &Engine{
		log:           log,
		cfg:           cfg,
		handler:       handler,
		openTUN:       newTUNDevice,
		configureLink: setupLink,
	}
}

// Serve implements tunworker.Engine. It opens and configures the tunnel
// interface, invokes ready, and pumps packets until ctx is cancelled.
func (e *Engine) Serve(ctx context.Context, ready func()) error {
	tun, err := e.openTUN(e.cfg.Name)
	if err != nil {
		return fmt.Errorf("error allocating TUN interface: %w", err)
	}

	stop := make(chan struct{})
	closeDone := make(chan struct{})
	defer func() {
		close(stop)
		<-closeDone
	}()

	// Closing the device unblocks the read loop.
	go func() {
		defer close(closeDone)
		select {
		case <-ctx.Done():
		case <-stop:
		}
		if err := tun.Close(); err != nil {
			e.log.WithError(err).Warn("Failed to close TUN device.")
		}
	}()

	if err := e.configureLink(tun.Name(), e.cfg.Addr, e.cfg.MTU); err != nil {
		return fmt.Errorf("error setting up TUN link %s: %w", tun.Name(), err)
	}

	e.log.WithField("tun", tun.Name()).Info("Tunnel interface up.")
	ready()

	return e.packetLoop(ctx, tun)
}

func (e *Engine) packetLoop(ctx context.Context, tun TUNDevice) error {
	buf := make([]byte, e.cfg.MTU)
	for {
		n, err := tun.Read(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("error reading from TUN %s: %w", tun.Name(), err)
		}
		if e.handler != nil && n > 0 {
			e.handler(buf[:n])
		}
	}
}

func newTUNDevice(name string) (TUNDevice, error) {
	cfg := water.Config{DeviceType: water.TUN}
	cfg.Name = name
	return water.New(cfg)
}
