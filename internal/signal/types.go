package signal

import (
	"errors"
	"time"

	"forexjoey/internal/analysis"
)

// ErrNotFound 查询的信号不存在。
var ErrNotFound = errors.New("signal not found")

// ErrAlreadyClosed 信号已平仓，不能重复写入结果。
var ErrAlreadyClosed = errors.New("signal already closed")

// 中文说明：
// 信号与平仓结果。Signal 创建后不可变，平仓时只追加 Outcome。
// 审计字段（摘要、各源因子、推理文本）随信号整体落库，供复盘归因。

const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Signal 可执行的交易信号。
type Signal struct {
	ID                 string             `json:"id"`
	Pair               string             `json:"currency_pair"`
	Timeframe          string             `json:"timeframe"`
	Direction          analysis.Direction `json:"direction"`
	EntryPrice         float64            `json:"entry_price"`
	StopLoss           float64            `json:"stop_loss"`
	TakeProfit         float64            `json:"take_profit"`
	RiskReward         float64            `json:"risk_reward_ratio"`
	Confidence         float64            `json:"confidence_score"`
	ExpectedDuration   string             `json:"expected_duration"`
	Summary            string             `json:"analysis_summary"`
	TechnicalFactors   []analysis.Factor  `json:"technical_factors"`
	FundamentalFactors []analysis.Factor  `json:"fundamental_factors"`
	SentimentFactors   []analysis.Factor  `json:"sentiment_factors"`
	EconomicFactors    []analysis.Factor  `json:"economic_factors"`
	Reasoning          string             `json:"ai_reasoning"`
	DecidedBy          string             `json:"decided_by,omitempty"`
	Status             string             `json:"status"`
	CreatedAt          time.Time          `json:"created_at"`
}

// Outcome 信号平仓结果，只追加一次。
type Outcome struct {
	SignalID       string    `json:"signal_id"`
	ExitPrice      float64   `json:"exit_price"`
	ProfitLossPips float64   `json:"profit_loss_pips"`
	WasAccurate    bool      `json:"was_accurate"`
	ClosedAt       time.Time `json:"closed_at"`
}

// Result 信号构建结果：生成信号，或带原因的抑制。抑制是预期行为，不是错误。
type Result struct {
	Generated bool    `json:"generated"`
	Reason    string  `json:"reason,omitempty"`
	Signal    *Signal `json:"signal,omitempty"`
}
