// Package notify maps lifecycle statuses onto the two user-visible
// notification identities and delivers them to pluggable presenters.
package notify

import (
	"github.com/sirupsen/logrus"

	"github.com/skycoin/skywire-utilities/pkg/logging"

	"github.com/tunfence/tunfence/pkg/vpn"
)

// Kind identifies one of the two notification identities.
type Kind int

const (
	// KindRunning is the foreground-bound "tunnel active" notification.
	KindRunning Kind = iota

	// KindResume is the dismissible "resume available" notification.
	KindResume
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == KindRunning {
		return "running"
	}
	return "resume"
}

// Actionable hints carried by a notification.
const (
	ActionPause  = "pause"
	ActionResume = "resume"
)

// Notification is the presentable form of a lifecycle status.
type Notification struct {
	Kind       Kind
	Foreground bool
	Status     vpn.Status
	Title      string
	Action     string
}

// ForStatus returns the notification for a status. The mapping is total
// over the status enumeration: Starting and Running map to the foreground
// running identity, every other status to the resume identity.
func ForStatus(status vpn.Status) Notification {
	n := Notification{
		Kind:   KindResume,
		Status: status,
		Title:  "Tunnel " + status.String(),
		Action: ActionResume,
	}
	switch status {
	case vpn.StatusStarting, vpn.StatusRunning:
		n.Kind = KindRunning
		n.Foreground = true
		n.Action = ActionPause
	case vpn.StatusStopped, vpn.StatusWaitingForNetwork, vpn.StatusReconnecting:
	}
	return n
}

// Presenter shows and cancels the two notification identities.
type Presenter interface {
	Show(n Notification)
	Cancel(k Kind)
}

// Notifier drives presenters according to the fixed status mapping.
// Showing one identity cancels the other, so at most one notification is
// visible per presenter. Implements vpn.Notifier.
type Notifier struct {
	log        logrus.FieldLogger
	presenters []Presenter
}

// NewNotifier instantiates a Notifier over the given presenters.
func NewNotifier(log logrus.FieldLogger, presenters ...Presenter) *Notifier {
	if log == nil {
		log = logging.MustGetLogger("notifier")
	}
	return &Notifier{
		log:        log,
		presenters: presenters,
	}
}

// Notify presents the notification mapped from status.
func (n *Notifier) Notify(status vpn.Status) {
	note := ForStatus(status)

	other := KindResume
	if note.Kind == KindResume {
		other = KindRunning
	}

	for _, p := range n.presenters {
		p.Cancel(other)
		p.Show(note)
	}
}

// Release withdraws the foreground notification on service stop.
func (n *Notifier) Release() {
	for _, p := range n.presenters {
		p.Cancel(KindRunning)
	}
}
