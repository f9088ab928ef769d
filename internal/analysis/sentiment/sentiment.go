package sentiment

import (
	"fmt"
	"math"
	"sort"
	"time"

	"forexjoey/internal/analysis"
	"forexjoey/internal/market"
)

// 中文说明：
// 新闻情绪聚合器。输入是上游已逐篇打分的新闻列表（打分属外部采集职责，
// 本包不抓取也不调模型），输出统一的 Opinion。
// 聚合权重 = 单篇置信度 × 相关度；情绪本身不足以单独驱动交易，
// 因此最终置信度封顶 MaxWeight。

// NewsItem 单篇已打分的新闻。Score ∈ [-1,1]，正值看多基础货币。
type NewsItem struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Score       float64   `json:"sentiment_score"`
	Confidence  float64   `json:"confidence"`
	Relevance   float64   `json:"relevance"`
	Explanation string    `json:"explanation"`
}

type Config struct {
	DirectionThreshold float64 // 方向判定阈值，默认 0.2
	MaxWeight          float64 // 置信度上限，默认 0.7
	NewsCap            int     // 新闻数量饱和点，默认 10
	TopArticles        int     // 证据因子保留的头部文章数，默认 3
}

func NormalizeConfig(cfg Config) Config {
	if cfg.DirectionThreshold <= 0 {
		cfg.DirectionThreshold = 0.2
	}
	if cfg.MaxWeight <= 0 {
		cfg.MaxWeight = 0.7
	}
	if cfg.NewsCap <= 0 {
		cfg.NewsCap = 10
	}
	if cfg.TopArticles <= 0 {
		cfg.TopArticles = 3
	}
	return cfg
}

// Analyze 聚合新闻情绪为方向观点。空列表不是错误，返回零置信的中性观点。
func Analyze(pair market.Pair, items []NewsItem, cfg Config) analysis.Opinion {
	cfg = NormalizeConfig(cfg)

	var (
		totalScore  float64
		totalConf   float64
		totalWeight float64
		used        []NewsItem
	)
	for _, it := range items {
		w := it.Confidence * it.Relevance
		if w <= 0 {
			continue
		}
		totalScore += it.Score * w
		totalConf += it.Confidence
		totalWeight += w
		used = append(used, it)
	}

	if len(used) == 0 || totalWeight == 0 {
		return analysis.Opinion{
			Source:     analysis.SourceSentiment,
			Direction:  analysis.Neutral,
			Confidence: 0,
			Factors: []analysis.Factor{{
				Name:           "no_news",
				Value:          pair.String(),
				Interpretation: "no relevant news found",
			}},
		}
	}

	avgScore := totalScore / totalWeight
	avgConf := totalConf / float64(len(used))

	direction := analysis.Neutral
	label := "neutral"
	switch {
	case avgScore > cfg.DirectionThreshold:
		direction = analysis.Buy
		label = "bullish"
	case avgScore < -cfg.DirectionThreshold:
		direction = analysis.Sell
		label = "bearish"
	}

	strength := strengthLabel(avgScore, avgConf)

	// 新闻越多、单篇越可信，情绪信号权重越高；封顶防止情绪单独定调。
	newsFactor := math.Min(1, float64(len(used))/float64(cfg.NewsCap))
	weight := math.Abs(avgScore) * avgConf * (0.7 + 0.3*newsFactor)
	if weight > cfg.MaxWeight {
		weight = cfg.MaxWeight
	}

	factors := []analysis.Factor{
		{
			Name:           "sentiment_score",
			Value:          avgScore,
			Interpretation: fmt.Sprintf("aggregated news sentiment for %s is %s (%.2f)", pair.String(), label, avgScore),
		},
		{
			Name:           "sentiment_strength",
			Value:          strength,
			Interpretation: fmt.Sprintf("%s %s sentiment across %d articles", strength, label, len(used)),
		},
		{
			Name:           "news_count",
			Value:          len(used),
			Interpretation: fmt.Sprintf("analysis based on %d news articles", len(used)),
		},
	}
	factors = append(factors, topArticleFactors(used, cfg.TopArticles)...)

	return analysis.Opinion{
		Source:     analysis.SourceSentiment,
		Direction:  direction,
		Confidence: weight,
		Factors:    factors,
	}
}

func strengthLabel(score, confidence float64) string {
	abs := math.Abs(score)
	switch {
	case abs > 0.6 && confidence > 0.7:
		return "strong"
	case abs > 0.3 && confidence > 0.5:
		return "moderate"
	default:
		return "weak"
	}
}

// topArticleFactors 按 置信度×相关度 取头部文章作为证据。
func topArticleFactors(items []NewsItem, top int) []analysis.Factor {
	sorted := make([]NewsItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence*sorted[i].Relevance > sorted[j].Confidence*sorted[j].Relevance
	})
	if top > len(sorted) {
		top = len(sorted)
	}
	out := make([]analysis.Factor, 0, top)
	for i := 0; i < top; i++ {
		it := sorted[i]
		out = append(out, analysis.Factor{
			Name: fmt.Sprintf("top_article_%d", i+1),
			Value: map[string]any{
				"title":           it.Title,
				"source":          it.Source,
				"sentiment_score": it.Score,
			},
			Interpretation: it.Explanation,
		})
	}
	return out
}
