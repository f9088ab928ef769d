package logger

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// 中文说明：
// 全局日志封装，基于 zerolog 的 ConsoleWriter 输出。
// LLM 请求体默认不落日志，需显式开启（payload 可能很大且含敏感上下文）。

var (
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	llmPayloadEnabled atomic.Bool
)

// Init 按配置设置日志级别与 LLM payload 开关。
func Init(level string, logLLMPayload bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		log = log.Level(zerolog.DebugLevel)
	case "warn":
		log = log.Level(zerolog.WarnLevel)
	case "error":
		log = log.Level(zerolog.ErrorLevel)
	default:
		log = log.Level(zerolog.InfoLevel)
	}
	llmPayloadEnabled.Store(logLLMPayload)
}

func Debugf(format string, args ...any) { log.Debug().Msg(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { log.Info().Msg(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { log.Warn().Msg(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { log.Error().Msg(fmt.Sprintf(format, args...)) }

// LogLLMPayload 仅在开启时输出完整的模型请求体。
func LogLLMPayload(model, payload string) {
	if !llmPayloadEnabled.Load() {
		return
	}
	log.Debug().Str("model", model).Msg("[AI] payload: " + payload)
}
