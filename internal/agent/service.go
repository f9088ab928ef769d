package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"forexjoey/internal/analysis"
	"forexjoey/internal/analysis/economic"
	"forexjoey/internal/analysis/fundamental"
	"forexjoey/internal/analysis/sentiment"
	"forexjoey/internal/analysis/technical"
	"forexjoey/internal/decision"
	"forexjoey/internal/gateway/provider"
	"forexjoey/internal/logger"
	"forexjoey/internal/market"
	"forexjoey/internal/reflection"
	"forexjoey/internal/signal"
)

// 中文说明：
// 编排服务：一次分析请求的完整流水线。四路分析并发执行并在融合前汇合，
// 任一路失败只降级自己的观点；货币对格式非法是唯一直接报错的输入。
// 新闻/日历/宏观数据由调用方预先采集后随请求传入，本服务不做采集。

// SignalStore 信号持久化边界。
type SignalStore interface {
	InsertSignal(ctx context.Context, s *signal.Signal) error
	AppendOutcome(ctx context.Context, o signal.Outcome) error
	GetSignal(ctx context.Context, id string) (*signal.Signal, *signal.Outcome, error)
	ListSignals(ctx context.Context, pair string, limit int) ([]*signal.Signal, error)
}

// Broadcaster 信号事件推送边界（WebSocket hub）。
type Broadcaster interface {
	BroadcastSignal(s *signal.Signal)
	BroadcastOutcome(o signal.Outcome)
}

// Snapshotter 生成随融合请求附带的图表截图。失败只记日志不阻塞。
type Snapshotter interface {
	CaptureCandleChart(ctx context.Context, pair market.Pair, timeframe string, candles []market.Candle) (provider.ImageAttachment, error)
}

type Service struct {
	Market      market.Source
	Fusion      *decision.Engine
	Reflector   *reflection.Engine
	Model       *reflection.Model
	Store       SignalStore
	Hub         Broadcaster
	Snapshot    Snapshotter
	Economic    *economic.Analyzer
	CandleLimit int

	TechnicalCfg technical.Config
	SentimentCfg sentiment.Config
}

// AnalyzeRequest 一次分析请求及其预采集的外部数据。
type AnalyzeRequest struct {
	Pair        string               `json:"currency_pair"`
	Timeframe   string               `json:"timeframe"`
	News        []sentiment.NewsItem `json:"news,omitempty"`
	Events      []economic.Event     `json:"economic_events,omitempty"`
	Fundamental fundamental.Snapshot `json:"fundamental,omitempty"`
}

// AnalyzeResult 分析产出：决策必有，信号视门槛而定。
type AnalyzeResult struct {
	Decision decision.CombinedDecision `json:"decision"`
	Result   signal.Result             `json:"signal_result"`
}

// Analyze 跑完整条融合流水线。仅货币对非法或周期未知时返回错误。
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error) {
	pair, err := market.ParsePair(req.Pair)
	if err != nil {
		return AnalyzeResult{}, err
	}
	timeframe := market.NormalizeTimeframe(req.Timeframe)
	if _, ok := market.TimeframeInterval(timeframe); !ok {
		return AnalyzeResult{}, fmt.Errorf("不支持的周期 %q", req.Timeframe)
	}

	limit := s.CandleLimit
	if limit <= 0 {
		limit = 200
	}

	var candles []market.Candle
	if s.Market != nil {
		candles, err = s.Market.FetchCandles(ctx, pair, timeframe, limit)
		if err != nil {
			logger.Warnf("拉取 K 线失败(%s %s)，技术分析将降级: %v", pair.String(), timeframe, err)
		}
	}

	sources := s.runSources(ctx, pair, candles, req)

	images := s.captureImages(ctx, pair, timeframe, candles)
	d := s.Fusion.Combine(ctx, pair.String(), timeframe, sources, images)

	quote, quoteErr := s.latestQuote(ctx, pair)
	var result signal.Result
	if quoteErr != nil {
		result = signal.Result{Generated: false, Reason: fmt.Sprintf("no executable quote: %v", quoteErr)}
	} else {
		result = signal.Build(d, quote, time.Now())
	}

	if result.Generated && result.Signal != nil {
		if s.Store != nil {
			if err := s.Store.InsertSignal(ctx, result.Signal); err != nil {
				return AnalyzeResult{}, fmt.Errorf("信号落库失败: %w", err)
			}
		}
		if s.Hub != nil {
			s.Hub.BroadcastSignal(result.Signal)
		}
		logger.Infof("生成 %s 信号 %s %s conf=%.2f rr=%.2f",
			result.Signal.Direction, pair.String(), timeframe, result.Signal.Confidence, result.Signal.RiskReward)
	} else {
		logger.Infof("信号被抑制 %s %s: %s", pair.String(), timeframe, result.Reason)
	}

	return AnalyzeResult{Decision: d, Result: result}, nil
}

// runSources 并发执行四路分析。goroutine 内部自行降级，从不向 join 返回错误。
func (s *Service) runSources(ctx context.Context, pair market.Pair, candles []market.Candle, req AnalyzeRequest) decision.SourceSet {
	var set decision.SourceSet
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		op, err := technical.Analyze(candles, s.TechnicalCfg)
		if err != nil {
			logger.Warnf("技术分析降级(%s): %v", pair.String(), err)
		}
		set.Technical = op
		return nil
	})
	g.Go(func() error {
		set.Fundamental = guardOpinion(analysis.SourceFundamental, func() analysis.Opinion {
			return fundamental.Analyze(pair, req.Fundamental)
		})
		return nil
	})
	g.Go(func() error {
		set.Sentiment = guardOpinion(analysis.SourceSentiment, func() analysis.Opinion {
			return sentiment.Analyze(pair, req.News, s.SentimentCfg)
		})
		return nil
	})
	g.Go(func() error {
		if s.Economic == nil {
			set.Economic = (&economic.Analyzer{}).Analyze(gctx, pair, req.Events, time.Now())
			return nil
		}
		set.Economic = s.Economic.Analyze(gctx, pair, req.Events, time.Now())
		return nil
	})

	_ = g.Wait()
	return set
}

// guardOpinion 兜住单路分析的 panic，折算为降级观点。
func guardOpinion(source string, fn func() analysis.Opinion) (op analysis.Opinion) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("%s 分析 panic: %v", source, r)
			op = analysis.DegradedOpinion(source, fmt.Errorf("panic: %v", r))
		}
	}()
	return fn()
}

func (s *Service) captureImages(ctx context.Context, pair market.Pair, timeframe string, candles []market.Candle) []provider.ImageAttachment {
	if s.Snapshot == nil || len(candles) == 0 {
		return nil
	}
	img, err := s.Snapshot.CaptureCandleChart(ctx, pair, timeframe, candles)
	if err != nil {
		logger.Warnf("图表截图失败(%s %s): %v", pair.String(), timeframe, err)
		return nil
	}
	return []provider.ImageAttachment{img}
}

func (s *Service) latestQuote(ctx context.Context, pair market.Pair) (market.PriceQuote, error) {
	if s.Market == nil {
		return market.PriceQuote{}, errors.New("no market source configured")
	}
	return s.Market.LatestQuote(ctx, pair)
}

// CloseResult 平仓产出。
type CloseResult struct {
	Outcome signal.Outcome                `json:"outcome"`
	Report  reflection.Report             `json:"report"`
	Bucket  *reflection.PerformanceBucket `json:"bucket"`
}

// CloseSignal 以给定出场价关闭信号：追加结果、复盘归因、更新绩效桶。
func (s *Service) CloseSignal(ctx context.Context, id string, exitPrice float64) (CloseResult, error) {
	if s.Store == nil {
		return CloseResult{}, errors.New("no signal store configured")
	}
	sig, existing, err := s.Store.GetSignal(ctx, id)
	if err != nil {
		return CloseResult{}, err
	}
	if existing != nil {
		return CloseResult{}, fmt.Errorf("信号 %s: %w", id, signal.ErrAlreadyClosed)
	}

	outcome, err := signal.CloseOutcome(sig, exitPrice, time.Now())
	if err != nil {
		return CloseResult{}, err
	}
	if err := s.Store.AppendOutcome(ctx, outcome); err != nil {
		return CloseResult{}, err
	}

	report, bucket, err := s.Reflector.Reflect(ctx, sig, outcome)
	if err != nil {
		return CloseResult{}, err
	}

	if s.Hub != nil {
		s.Hub.BroadcastOutcome(outcome)
	}
	return CloseResult{Outcome: outcome, Report: report, Bucket: bucket}, nil
}

// Performance 读取绩效桶快照；无历史时返回默认桶。
func (s *Service) Performance(pair, timeframe string) (*reflection.PerformanceBucket, error) {
	p, err := market.ParsePair(pair)
	if err != nil {
		return nil, err
	}
	return s.Model.Bucket(p.String(), market.NormalizeTimeframe(timeframe))
}
