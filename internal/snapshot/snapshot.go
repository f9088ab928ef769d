package snapshot

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"forexjoey/internal/gateway/provider"
	"forexjoey/internal/logger"
	"forexjoey/internal/market"
	"forexjoey/internal/report"
)

// 中文说明：
// 图表截图：把 K 线页离线渲染成 HTML，用无头浏览器截成 PNG，
// 以 data URI 附给支持视觉的推理模型。默认关闭，配置打开后才实例化。

type Capturer struct {
	Timeout time.Duration
}

func New(timeout time.Duration) *Capturer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Capturer{Timeout: timeout}
}

// CaptureCandleChart 渲染并截图 K 线页，返回 image/png 的 data URI 附件。
func (c *Capturer) CaptureCandleChart(ctx context.Context, pair market.Pair, timeframe string, candles []market.Candle) (provider.ImageAttachment, error) {
	htmlPath, cleanup, err := renderToTempHTML(pair, timeframe, candles)
	if err != nil {
		return provider.ImageAttachment{}, err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	browserCtx, browserCancel := chromedp.NewContext(ctx)
	defer browserCancel()

	var png []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("file://"+htmlPath),
		// echarts 前端渲染需要一点时间
		chromedp.Sleep(800*time.Millisecond),
		chromedp.FullScreenshot(&png, 90),
	)
	if err != nil {
		return provider.ImageAttachment{}, fmt.Errorf("截图失败: %w", err)
	}
	if len(png) == 0 {
		return provider.ImageAttachment{}, fmt.Errorf("截图为空")
	}

	return provider.ImageAttachment{
		DataURI:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		Description: fmt.Sprintf("%s %s candlestick chart, most recent %d periods", pair.String(), timeframe, len(candles)),
	}, nil
}

func renderToTempHTML(pair market.Pair, timeframe string, candles []market.Candle) (string, func(), error) {
	dir, err := os.MkdirTemp("", "forexjoey-chart-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Debugf("清理临时图表目录失败: %v", err)
		}
	}
	path := filepath.Join(dir, "chart.html")
	f, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if err := report.RenderCandleChart(f, pair, timeframe, candles); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}
