package domain

import (
	"context"
	"time"
)

// 事件类型
const (
	EventGreeksCalculated      = "greeks.calculated"
	EventVerificationCompleted = "greeks.verification_completed"
	EventPortfolioAggregated   = "greeks.portfolio_aggregated"
)

// GreeksCalculatedEvent 单次计算完成事件
type GreeksCalculatedEvent struct {
	RequestID string        `json:"request_id"`
	KernelKey string        `json:"kernel_key,omitempty"`
	Params    Params        `json:"params"`
	Result    *GreeksResult `json:"result"`
	Timestamp int64         `json:"timestamp"`
}

// VerificationCompletedEvent 交叉校验完成事件
type VerificationCompletedEvent struct {
	RequestID  string              `json:"request_id"`
	Passed     bool                `json:"passed"`
	Mismatches []VerificationEntry `json:"mismatches,omitempty"`
	Timestamp  int64               `json:"timestamp"`
}

// PortfolioAggregatedEvent 组合汇总完成事件
type PortfolioAggregatedEvent struct {
	RunID       string                   `json:"run_id"`
	Incomplete  bool                     `json:"incomplete"`
	Completed   int                      `json:"completed"`
	Failed      int                      `json:"failed"`
	Cancelled   int                      `json:"cancelled"`
	NettingSets map[string]*GreeksResult `json:"netting_sets"`
	Total       *GreeksResult            `json:"total"`
	Timestamp   int64                    `json:"timestamp"`
}

// NewPortfolioAggregatedEvent 由组合汇总构造事件
func NewPortfolioAggregatedEvent(s *PortfolioSummary, at time.Time) PortfolioAggregatedEvent {
	sets := make(map[string]*GreeksResult, len(s.NettingSets))
	for id, agg := range s.NettingSets {
		sets[id] = agg.Total
	}
	return PortfolioAggregatedEvent{
		RunID:       s.RunID,
		Incomplete:  s.Incomplete,
		Completed:   s.Completed,
		Failed:      s.Failed,
		Cancelled:   s.Cancelled,
		NettingSets: sets,
		Total:       s.Total,
		Timestamp:   at.UnixMilli(),
	}
}

// EventPublisher 事件发布者接口
type EventPublisher interface {
	// PublishGreeksCalculated 发布希腊字母计算完成事件
	PublishGreeksCalculated(ctx context.Context, event GreeksCalculatedEvent) error

	// PublishVerificationCompleted 发布交叉校验完成事件
	PublishVerificationCompleted(ctx context.Context, event VerificationCompletedEvent) error

	// PublishPortfolioAggregated 发布组合汇总完成事件
	PublishPortfolioAggregated(ctx context.Context, event PortfolioAggregatedEvent) error
}
