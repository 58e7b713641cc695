// Package tunworker runs the tunnel worker: the collaborator that
// establishes and operates the tunnel session on its own execution
// context and reports lifecycle progress through the status bridge.
package tunworker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/skycoin/skywire-utilities/pkg/logging"
	"github.com/skycoin/skywire-utilities/pkg/netutil"

	"github.com/tunfence/tunfence/pkg/vpn"
)

// Engine establishes and operates one tunnel session until ctx is
// cancelled. ready is invoked once the session is passing traffic.
type Engine interface {
	Serve(ctx context.Context, ready func()) error
}

// Reporter is the sending side of the controller's status bridge.
type Reporter interface {
	Send(status vpn.Status)
}

// Config tunes the session retry backoff. Zero values fall back to the
// netutil defaults.
type Config struct {
	InitBackoff time.Duration
	MaxBackoff  time.Duration
	Factor      float64
}

// Worker owns the tunnel session lifecycle. Start and Stop are
// fire-and-forget signals safe to call from any goroutine; the run loop
// reads the latest desired state, so a stop is authoritative over an
// in-flight start whatever the interleaving.
type Worker struct {
	log     *logging.Logger
	cfg     Config
	engine  Engine
	reports Reporter

	desired atomic.Bool
	poke    chan struct{}
}

// New constructs a Worker around an engine and the bridge's sending side.
func New(log *logging.Logger, cfg Config, engine Engine, reports Reporter) *Worker {
	if log == nil {
		log = logging.MustGetLogger("tunnel_worker")
	}
	if cfg.InitBackoff == 0 {
		cfg.InitBackoff = netutil.DefaultInitBackoff
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = netutil.DefaultMaxBackoff
	}
	if cfg.Factor == 0 {
		cfg.Factor = netutil.DefaultFactor
	}
	return &Worker{
		log:     log,
		cfg:     cfg,
		engine:  engine,
		reports: reports,
		poke:    make(chan struct{}, 1),
	}
}

// Start signals the run loop to (re)establish the tunnel session.
func (w *Worker) Start() {
	w.desired.Store(true)
	w.wake()
}

// Stop signals the run loop to tear the tunnel session down.
func (w *Worker) Stop() {
	w.desired.Store(false)
	w.wake()
}

func (w *Worker) wake() {
	select {
	case w.poke <- struct{}{}:
	default:
		// A wakeup is already pending; the loop reads the latest desired
		// state when it gets to it.
	}
}

// Run is the worker's own execution context. It returns once ctx is
// cancelled and the session, if any, has wound down.
func (w *Worker) Run(ctx context.Context) {
	var (
		sessCancel context.CancelFunc
		sessDone   chan struct{}
	)

	stopSession := func() {
		if sessCancel == nil {
			return
		}
		sessCancel()
		<-sessDone
		sessCancel = nil
		sessDone = nil
	}
	defer stopSession()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.poke:
			stopSession()
			if !w.desired.Load() {
				continue
			}

			sessCtx, cancel := context.WithCancel(ctx)
			sessCancel = cancel
			sessDone = make(chan struct{})
			go w.runSession(sessCtx, sessDone)
		}
	}
}

// runSession drives one tunnel session, reconnecting with backoff until
// it is cancelled. Establishment retries belong here, never to the
// lifecycle core: reconnection visible to the user is a controller
// transition, not a hidden loop.
func (w *Worker) runSession(ctx context.Context, done chan struct{}) {
	defer close(done)

	w.reports.Send(vpn.StatusStarting)

	r := netutil.NewRetrier(w.log, w.cfg.InitBackoff, w.cfg.MaxBackoff, 0, w.cfg.Factor)
	err := r.Do(ctx, func() error {
		if ctx.Err() != nil {
			return nil
		}

		err := w.engine.Serve(ctx, func() { w.reports.Send(vpn.StatusRunning) })
		if err != nil && ctx.Err() == nil {
			w.log.WithError(err).Warn("Tunnel session broke, reconnecting...")
			w.reports.Send(vpn.StatusReconnecting)
			return fmt.Errorf("failed to serve tunnel session: %w", err)
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		w.log.WithError(err).Error("Tunnel session ended.")
	}
}
