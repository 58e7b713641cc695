package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skycoin/skywire-utilities/pkg/logging"
)

const (
	// webhookTimeout bounds a single webhook delivery.
	webhookTimeout = 10 * time.Second

	// webhookQueueSize buffers deliveries ahead of the sender goroutine.
	webhookQueueSize = 64
)

// WebhookPresenter forwards notification events to an HTTP endpoint as
// JSON, one POST per show or cancel. Show and Cancel only enqueue; a
// presenter-owned goroutine performs the POSTs, so the calling context
// never blocks on delivery I/O. Deliveries are serialized to keep the
// show/cancel order intact. Best-effort: failures are logged, never
// surfaced.
type WebhookPresenter struct {
	log    logrus.FieldLogger
	url    string
	client *http.Client
	queue  chan webhookPayload
}

type webhookPayload struct {
	Event      string    `json:"event"` // "show" or "cancel"
	Kind       string    `json:"kind"`
	Status     string    `json:"status,omitempty"`
	Title      string    `json:"title,omitempty"`
	Action     string    `json:"action,omitempty"`
	Foreground bool      `json:"foreground,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewWebhookPresenter instantiates a WebhookPresenter for url.
func NewWebhookPresenter(log logrus.FieldLogger, url string) *WebhookPresenter {
	if log == nil {
		log = logging.MustGetLogger("notification_webhook")
	}
	p := &WebhookPresenter{
		log: log,
		url: url,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		queue: make(chan webhookPayload, webhookQueueSize),
	}
	go p.run()
	return p
}

func (p *WebhookPresenter) run() {
	for payload := range p.queue {
		p.post(payload)
	}
}

func (p *WebhookPresenter) enqueue(payload webhookPayload) {
	select {
	case p.queue <- payload:
	default:
		p.log.WithField("event", payload.Event).
			Warn("Dropped webhook notification: delivery queue is full.")
	}
}

// Show implements Presenter.
func (p *WebhookPresenter) Show(n Notification) {
	p.enqueue(webhookPayload{
		Event:      "show",
		Kind:       n.Kind.String(),
		Status:     n.Status.String(),
		Title:      n.Title,
		Action:     n.Action,
		Foreground: n.Foreground,
		Timestamp:  time.Now().UTC(),
	})
}

// Cancel implements Presenter.
func (p *WebhookPresenter) Cancel(k Kind) {
	p.enqueue(webhookPayload{
		Event:     "cancel",
		Kind:      k.String(),
		Timestamp: time.Now().UTC(),
	})
}

func (p *WebhookPresenter) post(payload webhookPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.log.WithError(err).Warn("Failed to encode webhook payload.")
		return
	}

	resp, err := p.client.Post(p.url, "application/json", bytes.NewReader(body))
	if err != nil {
		p.log.WithError(err).Warn("Failed to deliver notification webhook.")
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			p.log.WithError(err).Debug("Failed to close webhook response body.")
		}
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		p.log.WithField("status_code", resp.StatusCode).Warn("Notification webhook rejected.")
	}
}
