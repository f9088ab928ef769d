package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"forexjoey/internal/reflection"
)

// 绩效桶持久化，实现 reflection.BucketStore。
// 键锁串行化在模型层完成，这里只做单行读写。

func (s *Store) LoadBucket(pair, timeframe string) (*reflection.PerformanceBucket, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	var (
		b           reflection.PerformanceBucket
		weightsJSON string
		accJSON     string
		recentJSON  string
		updatedAt   int64
	)
	err = db.QueryRowContext(context.Background(), `
        SELECT currency_pair, timeframe, total_signals, accurate_signals, accuracy_rate,
               factor_weights, factor_accuracy, recent_outcomes, updated_at
        FROM performance WHERE currency_pair=? AND timeframe=?`, pair, timeframe).
		Scan(&b.Pair, &b.Timeframe, &b.TotalSignals, &b.AccurateSignals, &b.AccuracyRate,
			&weightsJSON, &accJSON, &recentJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(weightsJSON), &b.FactorWeights); err != nil {
		return nil, fmt.Errorf("factor_weights 反序列化失败: %w", err)
	}
	if err := json.Unmarshal([]byte(accJSON), &b.FactorAccuracy); err != nil {
		return nil, fmt.Errorf("factor_accuracy 反序列化失败: %w", err)
	}
	if err := json.Unmarshal([]byte(recentJSON), &b.RecentOutcomes); err != nil {
		return nil, fmt.Errorf("recent_outcomes 反序列化失败: %w", err)
	}
	b.UpdatedAt = time.UnixMilli(updatedAt)
	return &b, nil
}

func (s *Store) SaveBucket(b *reflection.PerformanceBucket) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("bucket 不能为空")
	}
	weightsJSON, err := json.Marshal(b.FactorWeights)
	if err != nil {
		return err
	}
	accJSON, err := json.Marshal(b.FactorAccuracy)
	if err != nil {
		return err
	}
	recent := b.RecentOutcomes
	if recent == nil {
		recent = []bool{}
	}
	recentJSON, err := json.Marshal(recent)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(context.Background(), `
        INSERT INTO performance
            (currency_pair, timeframe, total_signals, accurate_signals, accuracy_rate,
             factor_weights, factor_accuracy, recent_outcomes, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(currency_pair, timeframe) DO UPDATE SET
            total_signals=excluded.total_signals,
            accurate_signals=excluded.accurate_signals,
            accuracy_rate=excluded.accuracy_rate,
            factor_weights=excluded.factor_weights,
            factor_accuracy=excluded.factor_accuracy,
            recent_outcomes=excluded.recent_outcomes,
            updated_at=excluded.updated_at`,
		b.Pair, b.Timeframe, b.TotalSignals, b.AccurateSignals, b.AccuracyRate,
		string(weightsJSON), string(accJSON), string(recentJSON), b.UpdatedAt.UnixMilli())
	return err
}
