package analysis

import (
	"errors"
	"fmt"
)

// ErrInsufficientData 技术分析数据不足。调用方应使用随错误一起返回的降级观点，
// 而不是中断整条流水线。
var ErrInsufficientData = errors.New("insufficient data for analysis")

// SourceError 外部数据源或推理服务失败。只降级对应的观点/报告，不终止流水线。
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// WrapSourceErr 便捷构造。err 为 nil 时返回 nil。
func WrapSourceErr(source string, err error) error {
	if err == nil {
		return nil
	}
	return &SourceError{Source: source, Err: err}
}
