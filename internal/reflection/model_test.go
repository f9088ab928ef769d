package reflection

import (
	"math"
	"sync"
	"testing"
	"time"

	"forexjoey/internal/analysis"
)

// memoryBucketStore 以内存 map 伪造 BucketStore。
type memoryBucketStore struct {
	mu      sync.Mutex
	buckets map[string]*PerformanceBucket
	saves   int
}

func newMemoryBucketStore() *memoryBucketStore {
	return &memoryBucketStore{buckets: make(map[string]*PerformanceBucket)}
}

func (s *memoryBucketStore) key(pair, timeframe string) string { return pair + "@" + timeframe }

func (s *memoryBucketStore) LoadBucket(pair, timeframe string) (*PerformanceBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[s.key(pair, timeframe)]
	if !ok {
		return nil, nil
	}
	clone := *b
	clone.FactorWeights = make(map[string]float64, len(b.FactorWeights))
	clone.FactorAccuracy = make(map[string]float64, len(b.FactorAccuracy))
	for k, v := range b.FactorWeights {
		clone.FactorWeights[k] = v
	}
	for k, v := range b.FactorAccuracy {
		clone.FactorAccuracy[k] = v
	}
	clone.RecentOutcomes = append([]bool(nil), b.RecentOutcomes...)
	return &clone, nil
}

func (s *memoryBucketStore) SaveBucket(b *PerformanceBucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[s.key(b.Pair, b.Timeframe)] = b
	s.saves++
	return nil
}

func evenAttribution(impact float64) map[string]SourceAttribution {
	out := make(map[string]SourceAttribution, len(analysis.Sources))
	for _, src := range analysis.Sources {
		out[src] = SourceAttribution{Impact: impact, Accuracy: impact}
	}
	return out
}

func TestApplyFirstOutcome(t *testing.T) {
	store := newMemoryBucketStore()
	m := NewModel(store, 0.2)

	attr := evenAttribution(0.25)
	attr[analysis.SourceTechnical] = SourceAttribution{Impact: 0.8, Accuracy: 1.0}

	b, err := m.Apply("EUR/USD", "H1", true, attr, time.Now())
	if err != nil {
		t.Fatalf("Apply 报错: %v", err)
	}
	if b.TotalSignals != 1 || b.AccurateSignals != 1 || b.AccuracyRate != 1.0 {
		t.Fatalf("计数不对: %+v", b)
	}
	// 技术源归因冲击最大，混合后权重应高于其余源
	for _, src := range []string{analysis.SourceFundamental, analysis.SourceSentiment, analysis.SourceEconomic} {
		if b.FactorWeights[analysis.SourceTechnical] <= b.FactorWeights[src] {
			t.Fatalf("technical 权重应最高: %v", b.FactorWeights)
		}
	}
	var sum float64
	for _, v := range b.FactorWeights {
		sum += v
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("权重和 = %v, 期望 1", sum)
	}
	// 首个样本的运行均值等于归因本身
	if b.FactorAccuracy[analysis.SourceTechnical] != 1.0 {
		t.Fatalf("首样本准确率 = %v, 期望 1.0", b.FactorAccuracy[analysis.SourceTechnical])
	}
	if store.saves != 1 {
		t.Fatalf("Apply 应落库一次, 实际 %d", store.saves)
	}
}

func TestApplyInaccurateOutcome(t *testing.T) {
	store := newMemoryBucketStore()
	m := NewModel(store, 0.2)

	b, err := m.Apply("EUR/USD", "H1", false, evenAttribution(0), time.Now())
	if err != nil {
		t.Fatalf("Apply 报错: %v", err)
	}
	if b.TotalSignals != 1 || b.AccurateSignals != 0 || b.AccuracyRate != 0 {
		t.Fatalf("失败结果计数不对: %+v", b)
	}
	// 全零冲击经归一化后应退回等权
	for _, src := range analysis.Sources {
		if math.Abs(b.FactorWeights[src]-0.25) > 1e-9 {
			t.Fatalf("全零冲击应等权: %v", b.FactorWeights)
		}
	}
}

func TestApplyRunningAccuracyMean(t *testing.T) {
	store := newMemoryBucketStore()
	m := NewModel(store, 0.2)

	attr := evenAttribution(0.25)
	attr[analysis.SourceTechnical] = SourceAttribution{Impact: 0.25, Accuracy: 1.0}
	if _, err := m.Apply("EUR/USD", "H1", true, attr, time.Now()); err != nil {
		t.Fatalf("Apply 报错: %v", err)
	}

	attr[analysis.SourceTechnical] = SourceAttribution{Impact: 0.25, Accuracy: 0.5}
	b, err := m.Apply("EUR/USD", "H1", true, attr, time.Now())
	if err != nil {
		t.Fatalf("Apply 报错: %v", err)
	}
	if math.Abs(b.FactorAccuracy[analysis.SourceTechnical]-0.75) > 1e-9 {
		t.Fatalf("两样本均值 = %v, 期望 0.75", b.FactorAccuracy[analysis.SourceTechnical])
	}
}

func TestApplyRecentOutcomesCap(t *testing.T) {
	store := newMemoryBucketStore()
	m := NewModel(store, 0.2)

	for i := 0; i < 13; i++ {
		accurate := i%2 == 0
		if _, err := m.Apply("EUR/USD", "H1", accurate, evenAttribution(0.25), time.Now()); err != nil {
			t.Fatalf("Apply 报错: %v", err)
		}
	}
	b, err := m.Bucket("EUR/USD", "H1")
	if err != nil {
		t.Fatalf("Bucket 报错: %v", err)
	}
	if len(b.RecentOutcomes) != 10 {
		t.Fatalf("近期结果长度 = %d, 期望 10", len(b.RecentOutcomes))
	}
	if b.TotalSignals != 13 {
		t.Fatalf("总数 = %d, 期望 13", b.TotalSignals)
	}
	// 末位应是第 13 次（下标 12，偶数 → 准确）
	if !b.RecentOutcomes[len(b.RecentOutcomes)-1] {
		t.Fatal("末位结果应为准确")
	}
}

func TestApplyConcurrentNoLostUpdate(t *testing.T) {
	store := newMemoryBucketStore()
	m := NewModel(store, 0.2)

	const workers = 40
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := m.Apply("EUR/USD", "H1", true, evenAttribution(0.25), time.Now()); err != nil {
				t.Errorf("Apply 报错: %v", err)
			}
		}()
	}
	wg.Wait()

	b, err := m.Bucket("EUR/USD", "H1")
	if err != nil {
		t.Fatalf("Bucket 报错: %v", err)
	}
	if b.TotalSignals != workers {
		t.Fatalf("并发更新丢失: total=%d, 期望 %d", b.TotalSignals, workers)
	}
}

func TestWeightsAbsentBucket(t *testing.T) {
	m := NewModel(newMemoryBucketStore(), 0.2)
	if _, ok := m.Weights("EUR/USD", "H1"); ok {
		t.Fatal("无历史桶时 Weights 应返回 false")
	}
}

func TestBucketDefaultNotPersisted(t *testing.T) {
	store := newMemoryBucketStore()
	m := NewModel(store, 0.2)

	b, err := m.Bucket("EUR/USD", "H4")
	if err != nil {
		t.Fatalf("Bucket 报错: %v", err)
	}
	for _, src := range analysis.Sources {
		if b.FactorWeights[src] != 0.25 {
			t.Fatalf("默认桶应四源等权: %v", b.FactorWeights)
		}
	}
	if store.saves != 0 {
		t.Fatal("读取默认桶不应落库")
	}
}
