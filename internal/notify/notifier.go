package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	NotifyInviteCreated(ctx context.Context, e InviteCreatedEvent) error
	NotifyRequirementStatusChanged(ctx context.Context, e RequirementStatusChangedEvent) error
	NotifyBatchGenerationCompleted(ctx context.Context, e BatchGenerationCompletedEvent) error
}

// NoopNotifier is used when no webhook is configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyInviteCreated(context.Context, InviteCreatedEvent) error { return nil }
func (NoopNotifier) NotifyRequirementStatusChanged(context.Context, RequirementStatusChangedEvent) error {
	return nil
}
func (NoopNotifier) NotifyBatchGenerationCompleted(context.Context, BatchGenerationCompletedEvent) error {
	return nil
}

// envelope is the body posted to the webhook.
type envelope struct {
	Event      string      `json:"event"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// WebhookNotifier POSTs every event as JSON to a single URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (n *WebhookNotifier) NotifyInviteCreated(ctx context.Context, e InviteCreatedEvent) error {
	return n.post(ctx, "invite.created", e)
}

func (n *WebhookNotifier) NotifyRequirementStatusChanged(ctx context.Context, e RequirementStatusChangedEvent) error {
	return n.post(ctx, "requirement.status_changed", e)
}

func (n *WebhookNotifier) NotifyBatchGenerationCompleted(ctx context.Context, e BatchGenerationCompletedEvent) error {
	return n.post(ctx, "acceptance_criteria.batch_completed", e)
}

func (n *WebhookNotifier) post(ctx context.Context, event string, data interface{}) error {
	body, err := json.Marshal(envelope{Event: event, OccurredAt: time.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", event, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: status %d", event, resp.StatusCode)
	}
	return nil
}

// Async delivers in the background and only logs failures.
func Async(fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			zap.L().Warn("notification failed", zap.Error(err))
		}
	}()
}
