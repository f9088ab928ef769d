package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"forexjoey/internal/logger"
)

// 三家客户端共用的请求管线：构造 body 由各家完成，发送/重试/解码在这里统一处理。

const maxRetryCap = 5

func normalizeRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n == 0 {
		return 2
	}
	if n > maxRetryCap {
		return maxRetryCap
	}
	return n
}

// shouldRetry 只对限流与服务端错误重试。
func shouldRetry(status int) bool {
	return status == http.StatusTooManyRequests || status/100 == 5
}

// parseRetryAfter 优先遵循 Retry-After（秒），否则按尝试次数指数退避，封顶 10s。
func parseRetryAfter(header string, attempt int) time.Duration {
	if s := strings.TrimSpace(header); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	wait := time.Duration(1<<uint(attempt)) * time.Second
	if wait > 10*time.Second {
		wait = 10 * time.Second
	}
	return wait
}

// redactHeaders 脱敏含密钥的请求头，仅保留末四位。
func redactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "auth") || strings.Contains(lk, "key") || strings.Contains(lk, "token") {
			if len(v) > 4 {
				out[k] = "****" + v[len(v)-4:]
			} else {
				out[k] = "****"
			}
			continue
		}
		out[k] = v
	}
	return out
}

func headerKeyExists(headers map[string]string, key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for k := range headers {
		if strings.ToLower(strings.TrimSpace(k)) == key {
			return true
		}
	}
	return false
}

// parseDataURI 拆解 base64 data URI，返回媒体类型与数据部分。
func parseDataURI(raw string) (mediaType, data string, ok bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "data:") {
		return "", "", false
	}
	comma := strings.Index(raw, ",")
	if comma < 0 {
		return "", "", false
	}
	meta := strings.TrimSpace(raw[len("data:"):comma])
	data = strings.TrimSpace(raw[comma+1:])
	if data == "" {
		return "", "", false
	}
	parts := strings.Split(meta, ";")
	mediaType = strings.TrimSpace(parts[0])
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	for _, part := range parts[1:] {
		if strings.EqualFold(strings.TrimSpace(part), "base64") {
			return mediaType, data, true
		}
	}
	return "", "", false
}

func closeBody(resp *http.Response) {
	if cerr := resp.Body.Close(); cerr != nil {
		logger.Debugf("[AI] response body close failed: %v", cerr)
	}
}

// parseAPIError 三家错误体都采用 {"error":{"message":...}} 形态，统一解析。
func parseAPIError(resp *http.Response) string {
	defer closeBody(resp)
	var eresp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&eresp); err == nil && strings.TrimSpace(eresp.Error.Message) != "" {
		return eresp.Error.Message
	}
	return resp.Status
}

// postChat 发送请求并在可重试错误上按 Retry-After 等待，成功时交给 decode 提取文本。
func postChat(ctx context.Context, timeout time.Duration, url string, headers map[string]string, body []byte, maxRetries int, decode func(*http.Response) (string, error)) (string, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpc := &http.Client{Timeout: timeout}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt == 0 {
			logger.Debugf("[AI] 请求: POST %s headers=%v body=%s", url, redactHeaders(headers), string(body))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := httpc.Do(req)
		if err != nil {
			lastErr = err
			break
		}
		if resp.StatusCode/100 == 2 {
			content, err := decode(resp)
			if err != nil {
				lastErr = err
				break
			}
			return content, nil
		}
		msg := parseAPIError(resp)
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
		if shouldRetry(resp.StatusCode) && attempt < maxRetries {
			if err := sleepCtx(ctx, parseRetryAfter(resp.Header.Get("Retry-After"), attempt)); err != nil {
				return "", err
			}
			continue
		}
		break
	}
	return "", lastErr
}

// sleepCtx 等待退避间隔，上游取消时立即返回，不白白占着退避等待。
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
