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

// GeminiClient generateContent API 客户端。
type GeminiClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	MaxRetries   int
	ExtraHeaders map[string]string
}

func (c *GeminiClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	ctx = ensureCtx(ctx)
	body := buildGeminiBodyBytes(payload)
	logger.LogLLMPayload(c.Model, string(body))
	return postChat(ctx, c.Timeout, c.generateContentURL(), c.headers(), body, normalizeRetries(c.MaxRetries), decodeGeminiContent)
}

// generateContentURL 兼容用户把 BaseURL 写到不同深度的情况。
func (c *GeminiClient) generateContentURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = "https://generativelanguage.googleapis.com/v1beta"
	}
	lower := strings.ToLower(base)
	switch {
	case strings.Contains(lower, ":generatecontent"):
		return base
	case strings.HasSuffix(lower, "/models"):
		return base + "/" + c.Model + ":generateContent"
	case strings.Contains(lower, "/models/"):
		return base + ":generateContent"
	case strings.HasSuffix(lower, "/v1beta"):
		return base + "/models/" + c.Model + ":generateContent"
	default:
		return base + "/v1beta/models/" + c.Model + ":generateContent"
	}
}

func buildGeminiBodyBytes(payload ChatPayload) []byte {
	maxTokens := payload.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	genCfg := map[string]any{
		"temperature":     0.4,
		"maxOutputTokens": maxTokens,
	}
	if payload.ExpectJSON {
		genCfg["responseMimeType"] = "application/json"
	}
	body := map[string]any{
		"contents": []any{map[string]any{
			"role":  "user",
			"parts": buildGeminiParts(payload),
		}},
		"generationConfig": genCfg,
	}
	if strings.TrimSpace(payload.System) != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []any{map[string]any{"text": payload.System}},
		}
	}
	b, _ := json.Marshal(body)
	return b
}

func buildGeminiParts(payload ChatPayload) []map[string]any {
	parts := make([]map[string]any, 0, len(payload.Images)*2+1)
	parts = append(parts, map[string]any{"text": payload.User})
	for _, img := range payload.Images {
		mediaType, data, ok := parseDataURI(img.DataURI)
		if !ok {
			logger.Warnf("[AI] Gemini: invalid image data uri, skipping")
			continue
		}
		parts = append(parts, map[string]any{
			"inlineData": map[string]any{
				"mimeType": mediaType,
				"data":     data,
			},
		})
		if desc := strings.TrimSpace(img.Description); desc != "" {
			parts = append(parts, map[string]any{"text": desc})
		}
	}
	return parts
}

func decodeGeminiContent(resp *http.Response) (string, error) {
	defer closeBody(resp)
	var r struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Candidates) == 0 {
		return "", fmt.Errorf("empty candidates")
	}
	var b strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		if strings.TrimSpace(part.Text) != "" {
			b.WriteString(part.Text)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("empty text content")
	}
	return out, nil
}

func (c *GeminiClient) headers() map[string]string {
	out := map[string]string{"Content-Type": "application/json"}
	if c.APIKey != "" && !headerKeyExists(c.ExtraHeaders, "x-goog-api-key") {
		out["x-goog-api-key"] = c.APIKey
	}
	for k, v := range c.ExtraHeaders {
		out[k] = v
	}
	return out
}
