package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"forexjoey/internal/analysis"
	"forexjoey/internal/logger"
	"forexjoey/internal/market"
)

// 中文说明：
// 开发环境行情源：用 Binance 现货的法币代理交易对（如 EURUSDT）模拟
// 外汇报价，实现 market.Source。生产接入真实外汇行情时替换本包即可，
// 流水线其余部分不感知来源。

const maxKlineLimit = 1000

// Config 行情源配置。Symbols 把货币对映射到交易所符号。
type Config struct {
	APIKey    string
	APISecret string
	CacheMax  int
	Symbols   map[string]string
}

// defaultSymbols 常用货币对的现货代理。USDT 视作 USD 的近似。
var defaultSymbols = map[string]string{
	"EUR/USD": "EURUSDT",
	"GBP/USD": "GBPUSDT",
	"AUD/USD": "AUDUSDT",
}

func (c Config) withDefaults() Config {
	if c.CacheMax <= 0 {
		c.CacheMax = 500
	}
	if c.Symbols == nil {
		c.Symbols = make(map[string]string, len(defaultSymbols))
	}
	for k, v := range defaultSymbols {
		if _, ok := c.Symbols[k]; !ok {
			c.Symbols[k] = v
		}
	}
	return c
}

// Source 实现 market.Source。
type Source struct {
	cfg    Config
	client *binance.Client
	cache  *market.CandleCache
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	return &Source{
		cfg:    final,
		client: binance.NewClient(final.APIKey, final.APISecret),
		cache:  market.NewCandleCache(),
	}
}

func (s *Source) symbolFor(pair market.Pair) (string, error) {
	if sym, ok := s.cfg.Symbols[pair.String()]; ok && sym != "" {
		return sym, nil
	}
	return "", analysis.WrapSourceErr("market",
		fmt.Errorf("no exchange symbol mapped for %s", pair.String()))
}

// FetchCandles 拉取最近 limit 根 K 线并写入缓存。
func (s *Source) FetchCandles(ctx context.Context, pair market.Pair, timeframe string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	sym, err := s.symbolFor(pair)
	if err != nil {
		return nil, err
	}
	interval, ok := market.TimeframeInterval(timeframe)
	if !ok {
		return nil, analysis.WrapSourceErr("market", fmt.Errorf("unknown timeframe %q", timeframe))
	}

	logger.Debugf("[market] klines %s %s limit=%d", sym, interval, limit)
	raw, err := s.client.NewKlinesService().Symbol(sym).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, analysis.WrapSourceErr("market", err)
	}

	out := make([]market.Candle, 0, len(raw))
	for _, k := range raw {
		out = append(out, market.Candle{
			OpenTime:  k.OpenTime,
			CloseTime: k.CloseTime,
			Open:      parsePrice(k.Open),
			High:      parsePrice(k.High),
			Low:       parsePrice(k.Low),
			Close:     parsePrice(k.Close),
			Volume:    parsePrice(k.Volume),
		})
	}
	if err := s.cache.Put(pair, timeframe, out, s.cfg.CacheMax); err != nil {
		logger.Warnf("[market] 写入 K 线缓存失败: %v", err)
	}
	return out, nil
}

// CachedCandles 读取缓存，供上一次拉取后的复用。
func (s *Source) CachedCandles(pair market.Pair, timeframe string, limit int) []market.Candle {
	return s.cache.Get(pair, timeframe, limit)
}

// LatestQuote 取盘口最优买卖价。
func (s *Source) LatestQuote(ctx context.Context, pair market.Pair) (market.PriceQuote, error) {
	sym, err := s.symbolFor(pair)
	if err != nil {
		return market.PriceQuote{}, err
	}
	tickers, err := s.client.NewListBookTickersService().Symbol(sym).Do(ctx)
	if err != nil {
		return market.PriceQuote{}, analysis.WrapSourceErr("market", err)
	}
	if len(tickers) == 0 {
		return market.PriceQuote{}, analysis.WrapSourceErr("market", fmt.Errorf("empty book ticker for %s", sym))
	}
	t := tickers[0]
	return market.PriceQuote{
		Pair:      pair.String(),
		Bid:       parsePrice(t.BidPrice),
		Ask:       parsePrice(t.AskPrice),
		UpdatedAt: time.Now(),
	}, nil
}

func parsePrice(v string) float64 {
	f, _ := strconv.ParseFloat(v, 64)
	return f
}
