package notify

import (
	"github.com/sirupsen/logrus"

	"github.com/skycoin/skywire-utilities/pkg/logging"
)

// LogPresenter renders notifications into the daemon log, the headless
// equivalent of a notification area.
type LogPresenter struct {
	log logrus.FieldLogger
}

// NewLogPresenter instantiates a LogPresenter.
func NewLogPresenter(log logrus.FieldLogger) *LogPresenter {
	if log == nil {
		log = logging.MustGetLogger("notification")
	}
	return &LogPresenter{log: log}
}

// Show implements Presenter.
func (p *LogPresenter) Show(n Notification) {
	p.log.WithField("kind", n.Kind.String()).
		WithField("foreground", n.Foreground).
		WithField("action", n.Action).
		Info(n.Title)
}

// Cancel implements Presenter.
func (p *LogPresenter) Cancel(k Kind) {
	p.log.WithField("kind", k.String()).Debug("Notification cancelled.")
}
