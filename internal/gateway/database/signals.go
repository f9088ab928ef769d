package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"forexjoey/internal/analysis"
	"forexjoey/internal/signal"
)

// InsertSignal 写入一条新信号，因子列表整体 JSON 化落库。
func (s *Store) InsertSignal(ctx context.Context, sig *signal.Signal) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if sig == nil || strings.TrimSpace(sig.ID) == "" {
		return fmt.Errorf("signal id 不能为空")
	}
	_, err = db.ExecContext(ctx, `
        INSERT INTO signals
            (id, currency_pair, timeframe, direction, entry_price, stop_loss, take_profit,
             risk_reward_ratio, confidence_score, expected_duration, analysis_summary,
             technical_factors, fundamental_factors, sentiment_factors, economic_factors,
             ai_reasoning, decided_by, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.Pair, sig.Timeframe, string(sig.Direction),
		sig.EntryPrice, sig.StopLoss, sig.TakeProfit, sig.RiskReward, sig.Confidence,
		sig.ExpectedDuration, sig.Summary,
		marshalFactors(sig.TechnicalFactors), marshalFactors(sig.FundamentalFactors),
		marshalFactors(sig.SentimentFactors), marshalFactors(sig.EconomicFactors),
		sig.Reasoning, sig.DecidedBy, sig.Status, sig.CreatedAt.UnixMilli())
	return err
}

// AppendOutcome 给 OPEN 信号追加平仓结果并置为 CLOSED。重复平仓报 ErrSignalClosed。
func (s *Store) AppendOutcome(ctx context.Context, o signal.Outcome) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
        UPDATE signals
        SET exit_price=?, profit_loss_pips=?, was_accurate=?, closed_at=?, status=?
        WHERE id=? AND status=?`,
		o.ExitPrice, o.ProfitLossPips, boolToInt(o.WasAccurate), o.ClosedAt.UnixMilli(),
		signal.StatusClosed, o.SignalID, signal.StatusOpen)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		// 区分不存在与已平仓
		var status string
		err := db.QueryRowContext(ctx, `SELECT status FROM signals WHERE id=?`, o.SignalID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return signal.ErrNotFound
		}
		if err != nil {
			return err
		}
		return signal.ErrAlreadyClosed
	}
	return nil
}

const signalColumns = `id, currency_pair, timeframe, direction, entry_price, stop_loss, take_profit,
       risk_reward_ratio, confidence_score, expected_duration, analysis_summary,
       technical_factors, fundamental_factors, sentiment_factors, economic_factors,
       ai_reasoning, decided_by, status, created_at, exit_price, profit_loss_pips, was_accurate, closed_at`

// GetSignal 按 ID 读取信号；已平仓时同时返回 Outcome。
func (s *Store) GetSignal(ctx context.Context, id string) (*signal.Signal, *signal.Outcome, error) {
	db, err := s.handle()
	if err != nil {
		return nil, nil, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+signalColumns+` FROM signals WHERE id=?`, id)
	sig, out, err := scanSignal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, signal.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return sig, out, nil
}

// ListSignals 按创建时间倒序列出信号。pair 为空则不过滤。
func (s *Store) ListSignals(ctx context.Context, pair string, limit int) ([]*signal.Signal, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + signalColumns + ` FROM signals`
	args := []any{}
	if strings.TrimSpace(pair) != "" {
		query += ` WHERE currency_pair=?`
		args = append(args, pair)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*signal.Signal
	for rows.Next() {
		sig, _, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(r rowScanner) (*signal.Signal, *signal.Outcome, error) {
	var (
		sig        signal.Signal
		direction  string
		techJSON   string
		fundJSON   string
		sentJSON   string
		econJSON   string
		createdAt  int64
		exitPrice  sql.NullFloat64
		pips       sql.NullFloat64
		accurate   sql.NullInt64
		closedAtMs sql.NullInt64
	)
	err := r.Scan(&sig.ID, &sig.Pair, &sig.Timeframe, &direction,
		&sig.EntryPrice, &sig.StopLoss, &sig.TakeProfit, &sig.RiskReward, &sig.Confidence,
		&sig.ExpectedDuration, &sig.Summary,
		&techJSON, &fundJSON, &sentJSON, &econJSON,
		&sig.Reasoning, &sig.DecidedBy, &sig.Status, &createdAt,
		&exitPrice, &pips, &accurate, &closedAtMs)
	if err != nil {
		return nil, nil, err
	}
	sig.Direction = analysis.Direction(direction)
	sig.CreatedAt = time.UnixMilli(createdAt)
	sig.TechnicalFactors = unmarshalFactors(techJSON)
	sig.FundamentalFactors = unmarshalFactors(fundJSON)
	sig.SentimentFactors = unmarshalFactors(sentJSON)
	sig.EconomicFactors = unmarshalFactors(econJSON)

	var out *signal.Outcome
	if sig.Status == signal.StatusClosed && exitPrice.Valid {
		out = &signal.Outcome{
			SignalID:       sig.ID,
			ExitPrice:      exitPrice.Float64,
			ProfitLossPips: pips.Float64,
			WasAccurate:    accurate.Int64 != 0,
			ClosedAt:       time.UnixMilli(closedAtMs.Int64),
		}
	}
	return &sig, out, nil
}

func marshalFactors(fs []analysis.Factor) string {
	if len(fs) == 0 {
		return "[]"
	}
	b, err := json.Marshal(fs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalFactors(raw string) []analysis.Factor {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var fs []analysis.Factor
	if err := json.Unmarshal([]byte(raw), &fs); err != nil {
		return nil
	}
	return fs
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
