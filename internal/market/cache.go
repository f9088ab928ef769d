package market

import (
	"errors"
	"sync"
)

// CandleCache pair+timeframe 维度的内存 K 线缓存，供行情源在拉取间隔内复用。
type CandleCache struct {
	mu   sync.RWMutex
	data map[string][]Candle
}

func NewCandleCache() *CandleCache {
	return &CandleCache{data: make(map[string][]Candle)}
}

func cacheKey(pair Pair, timeframe string) string {
	return pair.String() + "@" + NormalizeTimeframe(timeframe)
}

// Put 追加并裁剪到 max 根；同一 OpenTime 的增量更新覆盖末尾而非重复追加。
func (c *CandleCache) Put(pair Pair, timeframe string, ks []Candle, max int) error {
	if pair.Base == "" || timeframe == "" {
		return errors.New("pair/timeframe 不能为空")
	}
	if len(ks) == 0 {
		return nil
	}
	if max <= 0 {
		max = 500
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cacheKey(pair, timeframe)
	cur := c.data[k]
	for _, candle := range ks {
		n := len(cur)
		if n > 0 && cur[n-1].OpenTime == candle.OpenTime {
			cur[n-1] = candle
			continue
		}
		cur = append(cur, candle)
	}
	if len(cur) > max {
		cur = cur[len(cur)-max:]
	}
	c.data[k] = cur
	return nil
}

// Get 返回最近 limit 根的拷贝（limit<=0 返回全部）。
func (c *CandleCache) Get(pair Pair, timeframe string, limit int) []Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur := c.data[cacheKey(pair, timeframe)]
	if len(cur) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(cur) {
		limit = len(cur)
	}
	out := make([]Candle, limit)
	copy(out, cur[len(cur)-limit:])
	return out
}
