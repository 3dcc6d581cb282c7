package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/procflow/internal/sla"
)

// AlertPayload is the JSON body posted to the alert receiver for each
// request approaching or past its SLA.
type AlertPayload struct {
	RequestID     string         `json:"request_id"`
	RequestNumber int            `json:"request_number"`
	Requester     string         `json:"requester"`
	Department    string         `json:"department"`
	Level         sla.AlertLevel `json:"level"`
	ElapsedDays   int            `json:"elapsed_days"`
	SLADays       int            `json:"sla_days"`
	Deadline      time.Time      `json:"deadline"`
}

// WebhookClient delivers SLA alerts to an external HTTP receiver.
// Dispatching beyond this single POST (email, chat fan-out) is the
// receiver's business.
type WebhookClient struct {
	url    string
	client *http.Client
}

// NewWebhookClient constructs a client targeting the provided URL.
func NewWebhookClient(url string) *WebhookClient {
	return &WebhookClient{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// SendAlert posts the alert payload as JSON.
func (c *WebhookClient) SendAlert(ctx context.Context, alert AlertPayload) error {
	if c == nil || c.url == "" {
		return nil
	}
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned %s", resp.Status)
	}
	return nil
}
