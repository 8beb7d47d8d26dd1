// Package notify posts formatted operational messages to a chat webhook.
// Callers on the ingest path treat notification failures as non-fatal.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     *zap.Logger
}

func NewSlackNotifier(webhookURL string, logger *zap.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Notify posts text as a chat message. With no webhook URL configured it is
// a no-op, so deployments without chat integration still work.
func (n *SlackNotifier) Notify(ctx context.Context, text string) error {
	if n.webhookURL == "" {
		n.logger.Debug("Chat webhook not configured, dropping notification")
		return nil
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notification rejected: status %d", resp.StatusCode)
	}
	return nil
}
