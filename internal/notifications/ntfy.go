package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type ntfyService struct {
	endpoint string
	project  string
	client   *http.Client
}

type ntfyMessageData struct {
	title    string
	message  string
	tags     []string
	priority string
}

func (n *ntfyService) NotifyProgress(ctx context.Context, event ProgressEvent) error {
	project := event.Project
	if project == "" {
		project = n.project
	}
	data := ntfyMessageData{
		title:   fmt.Sprintf("%s - Progress", project),
		message: ntfyMessage(event),
		tags:    []string{"backlog", "progress"},
	}
	if event.Total > 0 && event.Passing == event.Total {
		data.tags = append(data.tags, "complete")
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, ntfyMessageData{
		title:    "backlog - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"backlog", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data ntfyMessageData) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	return checkResponse("ntfy", resp)
}

// checkResponse drains and closes resp, turning non-2xx statuses into errors
// that carry a bounded slice of the body.
func checkResponse(sink string, resp *http.Response) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s returned %d: %s", sink, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
