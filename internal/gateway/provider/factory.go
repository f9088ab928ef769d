package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"forexjoey/internal/logger"
)

// 配置驱动的 Provider 工厂（不使用环境变量）。
// 按 provider 字段选择协议，未显式提供 id 时自动生成稳定 ID，避免日志为空。

type chatClient interface {
	Call(ctx context.Context, payload ChatPayload) (string, error)
}

// Model 统一的 ModelProvider 实现，包装任一协议客户端。
type Model struct {
	id             string
	enabled        bool
	supportsVision bool
	expectJSON     bool
	client         chatClient
}

func NewModel(id string, enabled, supportsVision, expectJSON bool, client chatClient) *Model {
	return &Model{
		id:             id,
		enabled:        enabled,
		supportsVision: supportsVision,
		expectJSON:     expectJSON,
		client:         client,
	}
}

func (p *Model) ID() string           { return p.id }
func (p *Model) Enabled() bool        { return p.enabled }
func (p *Model) SupportsVision() bool { return p.supportsVision }
func (p *Model) ExpectsJSON() bool    { return p.expectJSON }
func (p *Model) Call(ctx context.Context, payload ChatPayload) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("provider %s: no client", p.id)
	}
	return p.client.Call(ctx, payload)
}

// ModelCfg 配置文件中的单个模型条目。
type ModelCfg struct {
	ID, Provider, APIURL, APIKey, Model string
	Enabled                             bool
	SupportsVision                      bool
	ExpectJSON                          bool
	Headers                             map[string]string // 额外请求头（如 X-API-Key / Organization）
}

// BuildProvidersFromConfig 根据配置文件的模型条目构造 Provider 列表。
func BuildProvidersFromConfig(models []ModelCfg, timeout time.Duration) []ModelProvider {
	out := make([]ModelProvider, 0, len(models))
	for _, m := range models {
		if !m.Enabled {
			continue
		}
		id := strings.TrimSpace(m.ID)
		if id == "" {
			base := strings.TrimSpace(m.Provider)
			if base == "" {
				base = "provider"
			}
			if model := strings.TrimSpace(m.Model); model != "" {
				id = fmt.Sprintf("%s:%s", base, model)
			} else {
				id = base
			}
			logger.Warnf("未配置 ai.models.id，已为 %q 生成 ID: %s", m.Provider, id)
		}
		client := buildClient(m, timeout)
		out = append(out, NewModel(id, true, m.SupportsVision, m.ExpectJSON, client))
	}
	return out
}

func buildClient(m ModelCfg, timeout time.Duration) chatClient {
	switch strings.ToLower(strings.TrimSpace(m.Provider)) {
	case "anthropic", "claude":
		return &AnthropicClient{BaseURL: m.APIURL, APIKey: m.APIKey, Model: m.Model, Timeout: timeout, ExtraHeaders: m.Headers}
	case "gemini", "google":
		return &GeminiClient{BaseURL: m.APIURL, APIKey: m.APIKey, Model: m.Model, Timeout: timeout, ExtraHeaders: m.Headers}
	default:
		// openai / deepseek / qwen 以及各类聚合网关均走 Chat Completions 协议
		return &OpenAIChatClient{BaseURL: m.APIURL, APIKey: m.APIKey, Model: m.Model, Timeout: timeout, ExtraHeaders: m.Headers}
	}
}

// FirstEnabled 返回首个可用 Provider，供只需要单模型的调用方使用。
func FirstEnabled(providers []ModelProvider) (ModelProvider, bool) {
	for _, p := range providers {
		if p != nil && p.Enabled() {
			return p, true
		}
	}
	return nil, false
}
