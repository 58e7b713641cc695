package vpn

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/skycoin/skywire-utilities/pkg/logging"
)

// commandChanSize bounds commands queued ahead of the controller context.
const commandChanSize = 8

// Worker is the tunnel worker collaborator. Start and Stop are
// fire-and-forget signals into the worker's own run loop and must not
// block the caller. A stop is authoritative over an in-flight start.
type Worker interface {
	Start()
	Stop()
}

// PreferenceStore persists the user's last explicit intent, independently
// of the transient lifecycle status. It outlives a controller instance.
type PreferenceStore interface {
	DesiredState() bool
	SetDesiredState(started bool) error
}

// Notifier presents the user-visible notification for a status. Release
// withdraws the foreground notification when the service stops.
type Notifier interface {
	Notify(status Status)
	Release()
}

// Publisher emits each published status for any external observer.
type Publisher interface {
	Publish(status Status)
}

// Controller is the single authority for the tunnel's lifecycle status.
// It interprets commands, network signals and worker status reports, and
// it alone starts or stops the worker and publishes the resulting status.
type Controller struct {
	log *logging.Logger

	worker    Worker
	prefs     PreferenceStore
	notifier  Notifier
	publisher Publisher
	conn      Connectivity

	monitor *NetworkMonitor
	bridge  *StatusBridge

	cmdCh  chan Command
	doneCh chan struct{}

	serving int32
}

// NewController constructs a Controller around its collaborators.
func NewController(log *logging.Logger, worker Worker, prefs PreferenceStore,
	notifier Notifier, publisher Publisher, conn Connectivity) *Controller {
	if log == nil {
		log = logging.MustGetLogger("vpn_controller")
	}
	return &Controller{
		log:       log,
		worker:    worker,
		prefs:     prefs,
		notifier:  notifier,
		publisher: publisher,
		conn:      conn,
		monitor:   NewNetworkMonitor(log, conn),
		bridge:    NewStatusBridge(log),
		cmdCh:     make(chan Command, commandChanSize),
		doneCh:    make(chan struct{}),
	}
}

// Bridge returns the status bridge whose sending side is handed to the
// tunnel worker. It is intentionally the only channel by which the worker
// may influence the controller's state.
func (c *Controller) Bridge() *StatusBridge {
	return c.bridge
}

// HandleCommand queues a command for the controller's evaluation context.
// Safe to call from any goroutine; commands arriving after the controller
// stopped serving are dropped.
func (c *Controller) HandleCommand(cmd Command) {
	select {
	case c.cmdCh <- cmd:
	case <-c.doneCh:
	}
}

// Run owns the controller's single evaluation context until ctx is
// cancelled. It fails fast when the connectivity observer cannot be
// registered; that is fatal to serving but not to the process.
func (c *Controller) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.serving, 0, 1) {
		return ErrAlreadyServing
	}

	c.monitor.Reset()
	events, err := c.conn.Register(ctx)
	if err != nil {
		atomic.StoreInt32(&c.serving, 0)
		return fmt.Errorf("failed to register network observer: %w", err)
	}

	defer close(c.doneCh)
	defer func() {
		if err := c.bridge.Close(); err != nil {
			c.log.WithError(err).Debug("Status bridge closed early.")
		}
	}()

	c.log.Debug("Controller serving.")

	if c.prefs.DesiredState() {
		// The user left the tunnel started; resume it like a sticky
		// service restart.
		c.log.Info("Desired state is started, resuming tunnel.")
		c.startTunnel()
	}

	reports := c.bridge.Reports()
	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Controller stopped serving.")
			return nil

		case cmd := <-c.cmdCh:
			c.handleCommand(cmd)

		case status, ok := <-reports:
			if !ok {
				reports = nil
				continue
			}
			c.onWorkerStatus(status)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch c.monitor.Observe(ev) {
			case SignalRegained:
				c.onNetworkRegained()
			case SignalLost:
				c.onNetworkLost()
			}
		}
	}
}

func (c *Controller) handleCommand(cmd Command) {
	switch cmd {
	case CommandStart:
		c.startTunnel()
	case CommandStop:
		c.stopTunnel()
	default:
		c.log.WithField("command", int(cmd)).Warn("Ignoring unknown command.")
	}
}

// startTunnel records the user's intent and (re)starts the worker. START
// while already started restarts the worker and republishes Starting.
func (c *Controller) startTunnel() {
	c.log.Debug("Starting tunnel...")
	if err := c.prefs.SetDesiredState(true); err != nil {
		c.log.WithError(err).Warn("Failed to persist desired state.")
	}
	c.publish(StatusStarting)
	c.worker.Start()
	c.log.Info("Tunnel start requested.")
}

// stopTunnel always succeeds: stopping an already stopped tunnel is a
// worker-level no-op but still republishes Stopped.
func (c *Controller) stopTunnel() {
	c.log.Debug("Stopping tunnel...")
	if err := c.prefs.SetDesiredState(false); err != nil {
		c.log.WithError(err).Warn("Failed to persist desired state.")
	}
	c.worker.Stop()
	c.notifier.Release()
	c.publish(StatusStopped)
	c.log.Info("Tunnel stopped.")
}

// onWorkerStatus publishes a status reported through the bridge. The
// worker is trusted to report monotonic progress; no transition logic
// happens here beyond publication.
func (c *Controller) onWorkerStatus(status Status) {
	c.publish(status)
}

func (c *Controller) onNetworkRegained() {
	if !c.prefs.DesiredState() {
		c.log.Debug("Skipping network notification while tunnel is paused.")
		return
	}
	c.log.Info("Network regained, reconnecting...")
	c.publish(StatusReconnecting)
	c.worker.Stop()
	c.worker.Start()
}

func (c *Controller) onNetworkLost() {
	if !c.prefs.DesiredState() {
		c.log.Debug("Skipping no-network notification while tunnel is paused.")
		return
	}
	c.log.Info("Network lost, waiting for network connection.")
	c.worker.Stop()
	c.publish(StatusWaitingForNetwork)
}

// publish mirrors status to the notifier and the status broadcaster,
// which retains it as the current snapshot. Controller context only; any
// other context reaches here through the status bridge.
func (c *Controller) publish(status Status) {
	c.notifier.Notify(status)
	c.publisher.Publish(status)
}
