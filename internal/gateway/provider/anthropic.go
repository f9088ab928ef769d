package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"forexjoey/internal/logger"
)

// AnthropicClient Messages API 客户端。
type AnthropicClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	MaxRetries   int
	ExtraHeaders map[string]string
}

func (c *AnthropicClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	ctx = ensureCtx(ctx)
	body := buildAnthropicBodyBytes(c.Model, payload)
	logger.LogLLMPayload(c.Model, string(body))
	return postChat(ctx, c.Timeout, c.messagesURL(), c.headers(), body, normalizeRetries(c.MaxRetries), decodeAnthropicContent)
}

func (c *AnthropicClient) messagesURL() string {
	url := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if url == "" {
		url = "https://api.anthropic.com/v1"
	}
	url = strings.TrimSuffix(url, "/messages")
	return url + "/messages"
}

func buildAnthropicBodyBytes(model string, payload ChatPayload) []byte {
	maxTokens := payload.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body := map[string]any{
		"model": model,
		"messages": []map[string]any{{
			"role":    "user",
			"content": buildAnthropicContent(payload),
		}},
		"temperature": 0.4,
		"max_tokens":  maxTokens,
	}
	if strings.TrimSpace(payload.System) != "" {
		body["system"] = payload.System
	}
	b, _ := json.Marshal(body)
	return b
}

func buildAnthropicContent(payload ChatPayload) []map[string]any {
	blocks := make([]map[string]any, 0, len(payload.Images)*2+1)
	blocks = append(blocks, map[string]any{"type": "text", "text": payload.User})
	for _, img := range payload.Images {
		mediaType, data, ok := parseDataURI(img.DataURI)
		if !ok {
			logger.Warnf("[AI] Anthropic: invalid image data uri, skipping")
			continue
		}
		blocks = append(blocks, map[string]any{
			"type": "image",
			"source": map[string]any{
				"type":       "base64",
				"media_type": mediaType,
				"data":       data,
			},
		})
		if desc := strings.TrimSpace(img.Description); desc != "" {
			blocks = append(blocks, map[string]any{"type": "text", "text": desc})
		}
	}
	return blocks
}

func decodeAnthropicContent(resp *http.Response) (string, error) {
	defer closeBody(resp)
	var r struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Content) == 0 {
		return "", fmt.Errorf("empty content")
	}
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" && block.Text != "" {
			b.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("empty text content")
	}
	return out, nil
}

func (c *AnthropicClient) headers() map[string]string {
	out := map[string]string{"Content-Type": "application/json"}
	if c.APIKey != "" && !headerKeyExists(c.ExtraHeaders, "x-api-key") {
		out["x-api-key"] = c.APIKey
	}
	if !headerKeyExists(c.ExtraHeaders, "anthropic-version") {
		out["anthropic-version"] = "2023-06-01"
	}
	for k, v := range c.ExtraHeaders {
		out[k] = v
	}
	return out
}
