package provider

import (
	"context"
	"time"
)

// 中文说明：
// 推理服务（LLM）网关。融合与复盘都把外部推理当作黑盒：单次调用、有界超时，
// 失败由调用方落到确定性兜底路径，这里不做无界重试。

// ImageAttachment 附加给支持视觉的模型的图片（data URI）。
type ImageAttachment struct {
	DataURI     string
	Description string
}

// ChatPayload 单次推理请求。
type ChatPayload struct {
	System     string
	User       string
	Images     []ImageAttachment
	MaxTokens  int
	ExpectJSON bool
}

// ModelProvider 单个模型提供方。
type ModelProvider interface {
	ID() string
	Enabled() bool
	SupportsVision() bool
	ExpectsJSON() bool
	Call(ctx context.Context, payload ChatPayload) (string, error)
}

const defaultTimeout = 60 * time.Second

func ensureCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
