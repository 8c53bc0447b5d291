package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/BaSui01/skillflow/skills"
)

const maxWebhookBody = 4 << 10

// Webhook 把参数作为 JSON POST 到 url（Zapier catch hook 等）
func Webhook(client *http.Client, url string) skills.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		return postJSON(ctx, client, url, args)
	}
}

// SlackMessage 通过 Slack incoming webhook 发送消息
func SlackMessage(client *http.Client, url, defaultChannel string) skills.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		text, _ := args["message"].(string)
		if text == "" {
			return nil, fmt.Errorf("message must not be empty")
		}
		payload := map[string]any{"text": text}
		channel, _ := args["channel"].(string)
		if channel == "" {
			channel = defaultChannel
		}
		if channel != "" {
			payload["channel"] = channel
		}
		return postJSON(ctx, client, url, payload)
	}
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) (any, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url is not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call webhook: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxWebhookBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}
	return map[string]any{"status": resp.StatusCode, "response": string(bytes.TrimSpace(respBody))}, nil
}
