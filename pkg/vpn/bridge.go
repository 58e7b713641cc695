package vpn

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/skycoin/skywire-utilities/pkg/logging"
)

// bridgeChanSize is used so that queued status reports are kept in order.
const bridgeChanSize = 16

// StatusBridge carries status reports from the worker's execution context
// into the controller's, preserving order. Sends never block the worker,
// and the sending side holds no ownership of the controller: once the
// controller closes the bridge, further sends are dropped silently.
type StatusBridge struct {
	log logrus.FieldLogger

	ch     chan Status
	mx     sync.Mutex
	closed bool
}

// NewStatusBridge instantiates a StatusBridge.
func NewStatusBridge(log logrus.FieldLogger) *StatusBridge {
	if log == nil {
		log = logging.MustGetLogger("status_bridge")
	}
	return &StatusBridge{
		log: log,
		ch:  make(chan Status, bridgeChanSize),
	}
}

// Send queues a status report for the controller context. It never blocks:
// reports sent after the bridge is closed are dropped silently, and if the
// controller has fallen bridgeChanSize reports behind, the newest report
// is dropped with a log.
func (b *StatusBridge) Send(status Status) {
	b.mx.Lock()
	defer b.mx.Unlock()

	if b.closed {
		return
	}

	select {
	case b.ch <- status:
	default:
		b.log.WithField("status", status).Debug("Dropped status report: bridge buffer full.")
	}
}

// Reports returns the receive side of the bridge, consumed only by the
// controller's evaluation context. The channel is closed when the bridge
// is closed.
func (b *StatusBridge) Reports() <-chan Status {
	return b.ch
}

// Close implements io.Closer. After Close, sends become no-ops.
func (b *StatusBridge) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()

	if b.closed {
		return ErrBridgeClosed
	}
	b.closed = true
	close(b.ch)

	return nil
}
