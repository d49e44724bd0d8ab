package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/herbarium-review/internal/resilience"
)

// Notification is the webhook payload: every alert from one check.
type Notification struct {
	Source      string    `json:"source"`
	CollectedAt time.Time `json:"collected_at"`
	Records     int       `json:"records"`
	Alerts      []Alert   `json:"alerts"`
}

// Notifier posts notifications to a webhook, retrying transient failures.
type Notifier struct {
	url     string
	client  *http.Client
	backoff resilience.Backoff
}

// NewNotifier returns a Notifier for url. An empty url disables delivery.
func NewNotifier(url string) *Notifier {
	return &Notifier{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		backoff: resilience.DefaultBackoff(),
	}
}

// Enabled reports whether a webhook is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.url != ""
}

// Notify delivers alerts in a single POST. Nothing is sent when there are
// no alerts or no webhook.
func (n *Notifier) Notify(ctx context.Context, snap *BacklogSnapshot, alerts []Alert) error {
	if !n.Enabled() || len(alerts) == 0 {
		return nil
	}
	payload, err := json.Marshal(Notification{
		Source:      "herbarium-review",
		CollectedAt: snap.CollectedAt,
		Records:     snap.Total,
		Alerts:      alerts,
	})
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal notification")
	}

	_, err = resilience.Retry(ctx, n.backoff, "webhook", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, n.post(ctx, payload)
	})
	return err
}

func (n *Notifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return &resilience.UpstreamError{Service: "webhook", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return &resilience.UpstreamError{
			Service:    "webhook",
			StatusCode: resp.StatusCode,
			Err:        eris.New("webhook rejected notification"),
		}
	}
	return nil
}
