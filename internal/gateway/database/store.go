package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// 中文说明：
// sqlite 持久层：信号、平仓结果与绩效桶。纯 Go 驱动，免 CGO。
// db 句柄经互斥锁读取，Close 之后所有操作返回未初始化错误。

type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open 打开（必要时创建）数据库并执行幂等建表。
func Open(path string) (*Store, error) {
	if path == "" {
		path = "forexjoey.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开 sqlite 失败: %w", err)
	}
	// sqlite 单写者，限制连接数避免 database is locked
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("store 未初始化")
	}
	return db, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	queries := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id TEXT PRIMARY KEY,
			currency_pair TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			direction TEXT NOT NULL,
			entry_price REAL NOT NULL,
			stop_loss REAL NOT NULL,
			take_profit REAL NOT NULL,
			risk_reward_ratio REAL NOT NULL,
			confidence_score REAL NOT NULL,
			expected_duration TEXT NOT NULL DEFAULT '',
			analysis_summary TEXT NOT NULL DEFAULT '',
			technical_factors TEXT NOT NULL DEFAULT '[]',
			fundamental_factors TEXT NOT NULL DEFAULT '[]',
			sentiment_factors TEXT NOT NULL DEFAULT '[]',
			economic_factors TEXT NOT NULL DEFAULT '[]',
			ai_reasoning TEXT NOT NULL DEFAULT '',
			decided_by TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'OPEN',
			created_at INTEGER NOT NULL,
			exit_price REAL,
			profit_loss_pips REAL,
			was_accurate INTEGER,
			closed_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_pair_tf ON signals(currency_pair, timeframe)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status)`,
		`CREATE TABLE IF NOT EXISTS performance (
			currency_pair TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			total_signals INTEGER NOT NULL DEFAULT 0,
			accurate_signals INTEGER NOT NULL DEFAULT 0,
			accuracy_rate REAL NOT NULL DEFAULT 0,
			factor_weights TEXT NOT NULL DEFAULT '{}',
			factor_accuracy TEXT NOT NULL DEFAULT '{}',
			recent_outcomes TEXT NOT NULL DEFAULT '[]',
			updated_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (currency_pair, timeframe)
		)`,
	}
	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("建表失败: %w", err)
		}
	}
	return nil
}
