package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type webhookService struct {
	endpoint string
	client   *http.Client
}

func (w *webhookService) NotifyProgress(ctx context.Context, event ProgressEvent) error {
	// n8n expects a JSON array of items.
	return w.post(ctx, []webhookPayload{newWebhookPayload(event)})
}

func (w *webhookService) TestNotification(ctx context.Context) error {
	payload := newWebhookPayload(ProgressEvent{Project: "backlog", Timestamp: time.Now()})
	payload.Event = "test_notification"
	return w.post(ctx, []webhookPayload{payload})
}

func (w *webhookService) post(ctx context.Context, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook notification: %w", err)
	}
	return checkResponse("webhook", resp)
}
