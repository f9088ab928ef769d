package reflection

import (
	"sync"
	"time"

	"forexjoey/internal/analysis"
	"forexjoey/internal/decision"
)

// 中文说明：
// 绩效模型：以 (货币对, 周期) 为桶的权重与准确率学习状态。
// 桶只由复盘引擎写入；融合兜底路径只读权重。
// 同一桶的读改写经每键互斥锁串行化，并发复盘不会丢更新。

const recentOutcomeCap = 10

// PerformanceBucket 单个 (pair, timeframe) 桶的学习状态。
type PerformanceBucket struct {
	Pair            string             `json:"currency_pair"`
	Timeframe       string             `json:"timeframe"`
	TotalSignals    int                `json:"total_signals"`
	AccurateSignals int                `json:"accurate_signals"`
	AccuracyRate    float64            `json:"accuracy_rate"`
	FactorWeights   map[string]float64 `json:"factor_weights"`
	FactorAccuracy  map[string]float64 `json:"factor_accuracy"`
	RecentOutcomes  []bool             `json:"recent_outcomes"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// NewBucket 惰性创建：四源等权 0.25，准确率从零起步。
func NewBucket(pair, timeframe string) *PerformanceBucket {
	weights := make(map[string]float64, len(analysis.Sources))
	accuracy := make(map[string]float64, len(analysis.Sources))
	for _, s := range analysis.Sources {
		weights[s] = 0.25
		accuracy[s] = 0
	}
	return &PerformanceBucket{
		Pair:           pair,
		Timeframe:      timeframe,
		FactorWeights:  weights,
		FactorAccuracy: accuracy,
	}
}

// BucketStore 桶的持久化边界。LoadBucket 无记录时返回 (nil, nil)。
type BucketStore interface {
	LoadBucket(pair, timeframe string) (*PerformanceBucket, error)
	SaveBucket(b *PerformanceBucket) error
}

// SourceAttribution 复盘对单个源的归因。
type SourceAttribution struct {
	Impact   float64 `json:"impact"`
	Accuracy float64 `json:"accuracy"`
	Notes    string  `json:"notes"`
}

// Model 绩效模型。blend 是权重更新里新归因的占比，默认 0.2。
type Model struct {
	store BucketStore
	blend float64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewModel(store BucketStore, blend float64) *Model {
	if blend <= 0 || blend >= 1 {
		blend = 0.2
	}
	return &Model{
		store: store,
		blend: blend,
		locks: make(map[string]*sync.Mutex),
	}
}

func bucketKey(pair, timeframe string) string {
	return pair + "@" + timeframe
}

func (m *Model) keyLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Weights 供融合兜底读取的当前权重。桶不存在或读失败时返回 false。
func (m *Model) Weights(pair, timeframe string) (decision.Weights, bool) {
	if m == nil || m.store == nil {
		return nil, false
	}
	l := m.keyLock(bucketKey(pair, timeframe))
	l.Lock()
	defer l.Unlock()

	b, err := m.store.LoadBucket(pair, timeframe)
	if err != nil || b == nil || len(b.FactorWeights) == 0 {
		return nil, false
	}
	out := make(decision.Weights, len(b.FactorWeights))
	for k, v := range b.FactorWeights {
		out[k] = v
	}
	return out, true
}

// Bucket 返回当前桶的快照；不存在时返回带默认权重的新桶（不落库）。
func (m *Model) Bucket(pair, timeframe string) (*PerformanceBucket, error) {
	l := m.keyLock(bucketKey(pair, timeframe))
	l.Lock()
	defer l.Unlock()

	b, err := m.store.LoadBucket(pair, timeframe)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return NewBucket(pair, timeframe), nil
	}
	return b, nil
}

// Apply 把一次复盘结果折入桶。每键串行化的读改写。
func (m *Model) Apply(pair, timeframe string, wasAccurate bool, attribution map[string]SourceAttribution, now time.Time) (*PerformanceBucket, error) {
	l := m.keyLock(bucketKey(pair, timeframe))
	l.Lock()
	defer l.Unlock()

	b, err := m.store.LoadBucket(pair, timeframe)
	if err != nil {
		return nil, err
	}
	if b == nil {
		b = NewBucket(pair, timeframe)
	}
	if now.IsZero() {
		now = time.Now()
	}

	b.TotalSignals++
	if wasAccurate {
		b.AccurateSignals++
	}
	b.AccuracyRate = float64(b.AccurateSignals) / float64(b.TotalSignals)

	n := float64(b.TotalSignals)
	for _, s := range analysis.Sources {
		attr := attribution[s]
		// 运行均值吸收新样本；首个样本时 n=1，等价于直接赋值
		b.FactorAccuracy[s] = (b.FactorAccuracy[s]*(n-1) + attr.Accuracy) / n
		b.FactorWeights[s] = (1-m.blend)*b.FactorWeights[s] + m.blend*attr.Impact
	}
	renormalizeWeights(b.FactorWeights)

	b.RecentOutcomes = append(b.RecentOutcomes, wasAccurate)
	if len(b.RecentOutcomes) > recentOutcomeCap {
		b.RecentOutcomes = b.RecentOutcomes[len(b.RecentOutcomes)-recentOutcomeCap:]
	}
	b.UpdatedAt = now

	if err := m.store.SaveBucket(b); err != nil {
		return nil, err
	}
	return b, nil
}

// renormalizeWeights 保证四个权重之和为 1；全零时回退等权。
func renormalizeWeights(weights map[string]float64) {
	var sum float64
	for _, s := range analysis.Sources {
		if weights[s] < 0 {
			weights[s] = 0
		}
		sum += weights[s]
	}
	if sum <= 0 {
		for _, s := range analysis.Sources {
			weights[s] = 1.0 / float64(len(analysis.Sources))
		}
		return
	}
	for _, s := range analysis.Sources {
		weights[s] = weights[s] / sum
	}
}
