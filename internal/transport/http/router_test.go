package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"forexjoey/internal/agent"
	"forexjoey/internal/analysis"
	"forexjoey/internal/analysis/economic"
	"forexjoey/internal/decision"
	"forexjoey/internal/market"
	"forexjoey/internal/reflection"
	"forexjoey/internal/signal"
)

type stubMarket struct{}

func (stubMarket) FetchCandles(ctx context.Context, pair market.Pair, timeframe string, limit int) ([]market.Candle, error) {
	return nil, nil
}

func (stubMarket) LatestQuote(ctx context.Context, pair market.Pair) (market.PriceQuote, error) {
	return market.PriceQuote{Bid: 1.0998, Ask: 1.1000}, nil
}

type stubStore struct {
	mu       sync.Mutex
	signals  map[string]*signal.Signal
	outcomes map[string]signal.Outcome
}

func newStubStore() *stubStore {
	return &stubStore{signals: make(map[string]*signal.Signal), outcomes: make(map[string]signal.Outcome)}
}

func (s *stubStore) InsertSignal(ctx context.Context, sig *signal.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[sig.ID] = sig
	return nil
}

func (s *stubStore) AppendOutcome(ctx context.Context, o signal.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.signals[o.SignalID]; !ok {
		return signal.ErrNotFound
	}
	if _, ok := s.outcomes[o.SignalID]; ok {
		return signal.ErrAlreadyClosed
	}
	s.outcomes[o.SignalID] = o
	return nil
}

func (s *stubStore) GetSignal(ctx context.Context, id string) (*signal.Signal, *signal.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.signals[id]
	if !ok {
		return nil, nil, signal.ErrNotFound
	}
	if o, ok := s.outcomes[id]; ok {
		return sig, &o, nil
	}
	return sig, nil, nil
}

func (s *stubStore) ListSignals(ctx context.Context, pair string, limit int) ([]*signal.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*signal.Signal
	for _, sig := range s.signals {
		if pair == "" || sig.Pair == pair {
			out = append(out, sig)
		}
	}
	return out, nil
}

type stubBucketStore struct {
	mu      sync.Mutex
	buckets map[string]*reflection.PerformanceBucket
}

func (s *stubBucketStore) LoadBucket(pair, timeframe string) (*reflection.PerformanceBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buckets[pair+"@"+timeframe], nil
}

func (s *stubBucketStore) SaveBucket(b *reflection.PerformanceBucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[b.Pair+"@"+b.Timeframe] = b
	return nil
}

func newTestEngine(t *testing.T) (*gin.Engine, *stubStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newStubStore()
	model := reflection.NewModel(&stubBucketStore{buckets: make(map[string]*reflection.PerformanceBucket)}, 0.2)
	svc := &agent.Service{
		Market:    stubMarket{},
		Fusion:    decision.NewEngine(nil, model, time.Second),
		Reflector: reflection.NewEngine(nil, model, time.Second),
		Model:     model,
		Store:     store,
		Economic:  &economic.Analyzer{},
	}

	engine := gin.New()
	NewRouter(svc, nil).Register(engine)
	return engine, store
}

func seedSignal(store *stubStore, id string) {
	_ = store.InsertSignal(context.Background(), &signal.Signal{
		ID:         id,
		Pair:       "EUR/USD",
		Timeframe:  "H1",
		Direction:  analysis.Buy,
		EntryPrice: 1.1000,
		Status:     signal.StatusOpen,
		CreatedAt:  time.Now(),
	})
}

func doRequest(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestAnalyzeEndpointBadPair(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := doRequest(engine, http.MethodPost, "/api/v1/analysis", `{"currency_pair": "nope", "timeframe": "H1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("状态码 = %d, 期望 400", w.Code)
	}
}

func TestAnalyzeEndpointReturnsDecision(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := doRequest(engine, http.MethodPost, "/api/v1/analysis", `{"currency_pair": "EUR/USD", "timeframe": "H1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("状态码 = %d, body=%s", w.Code, w.Body.String())
	}
	var res agent.AnalyzeResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	// 无外部数据时四路全降级，兜底中性且不出信号
	if res.Decision.Direction != analysis.Neutral || res.Result.Generated {
		t.Fatalf("全降级应中性无信号: %+v", res)
	}
}

func TestGetSignalNotFound(t *testing.T) {
	engine, _ := newTestEngine(t)
	if w := doRequest(engine, http.MethodGet, "/api/v1/signals/missing", ""); w.Code != http.StatusNotFound {
		t.Fatalf("状态码 = %d, 期望 404", w.Code)
	}
}

func TestOutcomeEndpointLifecycle(t *testing.T) {
	engine, store := newTestEngine(t)
	seedSignal(store, "sig-1")

	w := doRequest(engine, http.MethodPost, "/api/v1/signals/sig-1/outcome", `{"exit_price": 1.1050}`)
	if w.Code != http.StatusOK {
		t.Fatalf("平仓状态码 = %d, body=%s", w.Code, w.Body.String())
	}

	// 重复平仓 → 409
	w = doRequest(engine, http.MethodPost, "/api/v1/signals/sig-1/outcome", `{"exit_price": 1.1100}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("重复平仓状态码 = %d, 期望 409", w.Code)
	}

	// 不存在 → 404
	w = doRequest(engine, http.MethodPost, "/api/v1/signals/missing/outcome", `{"exit_price": 1.1}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("状态码 = %d, 期望 404", w.Code)
	}

	// 缺 exit_price → 400
	w = doRequest(engine, http.MethodPost, "/api/v1/signals/sig-1/outcome", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("状态码 = %d, 期望 400", w.Code)
	}
}

func TestListSignalsEndpoint(t *testing.T) {
	engine, store := newTestEngine(t)
	seedSignal(store, "sig-1")
	seedSignal(store, "sig-2")

	w := doRequest(engine, http.MethodGet, "/api/v1/signals?pair=EURUSD", "")
	if w.Code != http.StatusOK {
		t.Fatalf("状态码 = %d", w.Code)
	}
	var body struct {
		Signals []*signal.Signal `json:"signals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if len(body.Signals) != 2 {
		t.Fatalf("信号数 = %d, 期望 2", len(body.Signals))
	}

	if w := doRequest(engine, http.MethodGet, "/api/v1/signals?pair=bad", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("非法过滤状态码 = %d, 期望 400", w.Code)
	}
}

func TestPerformanceEndpoints(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := doRequest(engine, http.MethodGet, "/api/v1/performance/EURUSD/H1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("状态码 = %d", w.Code)
	}
	var bucket reflection.PerformanceBucket
	if err := json.Unmarshal(w.Body.Bytes(), &bucket); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if bucket.Pair != "EUR/USD" || bucket.FactorWeights["technical"] != 0.25 {
		t.Fatalf("默认桶不符: %+v", bucket)
	}

	w = doRequest(engine, http.MethodGet, "/api/v1/performance/EURUSD/H1/chart", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("图表页: code=%d type=%q", w.Code, w.Header().Get("Content-Type"))
	}

	if w := doRequest(engine, http.MethodGet, "/api/v1/performance/bad/H1", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("非法货币对状态码 = %d, 期望 400", w.Code)
	}
}
