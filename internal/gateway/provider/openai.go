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

// OpenAIChatClient 兼容 OpenAI Chat Completions 协议的客户端。
// DeepSeek、Qwen 等聚合网关同样走这条路径。
type OpenAIChatClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	MaxRetries   int
	ExtraHeaders map[string]string
}

func (c *OpenAIChatClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	ctx = ensureCtx(ctx)
	body := buildOpenAIBodyBytes(c.Model, payload)
	logger.LogLLMPayload(c.Model, string(body))
	return postChat(ctx, c.Timeout, c.completionsURL(), c.headers(), body, normalizeRetries(c.MaxRetries), decodeOpenAIContent)
}

func (c *OpenAIChatClient) completionsURL() string {
	url := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func buildOpenAIBodyBytes(model string, payload ChatPayload) []byte {
	msgs := make([]map[string]any, 0, 2)
	if strings.TrimSpace(payload.System) != "" {
		msgs = append(msgs, map[string]any{"role": "system", "content": payload.System})
	}
	msgs = append(msgs, map[string]any{"role": "user", "content": buildOpenAIUserContent(payload)})
	maxTokens := payload.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body := map[string]any{
		"model":       model,
		"messages":    msgs,
		"temperature": 0.4,
		"max_tokens":  maxTokens,
	}
	if payload.ExpectJSON {
		body["response_format"] = map[string]any{"type": "json_object"}
	}
	b, _ := json.Marshal(body)
	return b
}

// buildOpenAIUserContent 无图片时返回纯字符串，有图片时返回多模态分块。
func buildOpenAIUserContent(payload ChatPayload) any {
	if len(payload.Images) == 0 {
		return payload.User
	}
	blocks := make([]map[string]any, 0, len(payload.Images)*2+1)
	blocks = append(blocks, map[string]any{"type": "text", "text": payload.User})
	for _, img := range payload.Images {
		if strings.TrimSpace(img.DataURI) == "" {
			continue
		}
		blocks = append(blocks, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": img.DataURI},
		})
		if desc := strings.TrimSpace(img.Description); desc != "" {
			blocks = append(blocks, map[string]any{"type": "text", "text": desc})
		}
	}
	return blocks
}

func decodeOpenAIContent(resp *http.Response) (string, error) {
	defer closeBody(resp)
	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	out := strings.TrimSpace(r.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("empty text content")
	}
	return out, nil
}

func (c *OpenAIChatClient) headers() map[string]string {
	out := map[string]string{"Content-Type": "application/json"}
	if c.APIKey != "" && !headerKeyExists(c.ExtraHeaders, "Authorization") {
		out["Authorization"] = "Bearer " + c.APIKey
	}
	for k, v := range c.ExtraHeaders {
		out[k] = v
	}
	return out
}
