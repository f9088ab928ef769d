package market

import "context"

// Source 统一对接外部行情供应商。生产环境由券商网关实现；
// 开发环境可用 gateway/binance 的代理实现。
type Source interface {
	// FetchCandles 拉取最近 limit 根 K 线并按时间升序返回。
	FetchCandles(ctx context.Context, pair Pair, timeframe string, limit int) ([]Candle, error)
	// LatestQuote 返回当前买卖双边报价。
	LatestQuote(ctx context.Context, pair Pair) (PriceQuote, error)
}
