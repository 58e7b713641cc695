// Package statuspub fans published lifecycle statuses out to any external
// observer. The core works with zero subscribers; whether anyone consumes
// the broadcast is the observer's business.
package statuspub

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/skycoin/skywire-utilities/pkg/logging"

	"github.com/tunfence/tunfence/pkg/vpn"
)

// subChanSize is used so that delivered statuses are kept in order per
// subscriber.
const subChanSize = 16

// ErrClosed is returned when operating on a closed Broadcaster.
var ErrClosed = errors.New("status broadcaster is closed")

// Broadcaster distributes each published status to all subscribers and
// retains the latest one as a snapshot.
type Broadcaster struct {
	log logrus.FieldLogger

	mx      sync.Mutex
	subs    map[uuid.UUID]chan vpn.Status
	current vpn.Status
	closed  bool
}

// NewBroadcaster instantiates a Broadcaster.
func NewBroadcaster(log logrus.FieldLogger) *Broadcaster {
	if log == nil {
		log = logging.MustGetLogger("status_broadcaster")
	}
	return &Broadcaster{
		log:  log,
		subs: make(map[uuid.UUID]chan vpn.Status),
	}
}

// Publish implements vpn.Publisher. It never blocks the publishing
// context: a subscriber that has fallen subChanSize statuses behind loses
// the update.
func (b *Broadcaster) Publish(status vpn.Status) {
	b.mx.Lock()
	defer b.mx.Unlock()

	if b.closed {
		return
	}
	b.current = status

	for id, ch := range b.subs {
		select {
		case ch <- status:
		default:
			b.log.WithField("subscriber", id).
				WithField("status", status).
				Warn("Dropped status update: subscriber not keeping up.")
		}
	}
}

// Current returns the latest published status.
func (b *Broadcaster) Current() vpn.Status {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.current
}

// Subscribe registers a new subscriber and returns its handle and channel.
// The channel is closed on Unsubscribe or Close.
func (b *Broadcaster) Subscribe() (uuid.UUID, <-chan vpn.Status, error) {
	b.mx.Lock()
	defer b.mx.Unlock()

	if b.closed {
		return uuid.Nil, nil, ErrClosed
	}

	id := uuid.New()
	ch := make(chan vpn.Status, subChanSize)
	b.subs[id] = ch
	return id, ch, nil
}

// Unsubscribe removes a subscriber. Unknown handles are a no-op.
func (b *Broadcaster) Unsubscribe(id uuid.UUID) {
	b.mx.Lock()
	defer b.mx.Unlock()

	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}

// Close implements io.Closer.
func (b *Broadcaster) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.closed = true

	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	return nil
}
