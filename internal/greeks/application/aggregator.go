package application

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
	"github.com/wyfcoding/greeksengine/pkg/logger"
	"github.com/wyfcoding/greeksengine/pkg/metrics"
)

// Aggregator 组合希腊字母计算。固定数量的 worker 从队列中取交易计算，
// 全部结束后在单点归约为净额结算集与组合总和。
type Aggregator struct {
	engine  *domain.Engine
	workers int
	budget  time.Duration
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewAggregator 创建组合计算器。workers <= 0 时使用 CPU 核数；budget <= 0 表示不限时。
func NewAggregator(engine *domain.Engine, workers int, budget time.Duration, log *slog.Logger, collector metrics.MetricsCollector) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Aggregator{
		engine:  engine,
		workers: workers,
		budget:  budget,
		logger:  log,
		metrics: collector,
	}
}

// WithLimits 返回替换并发度与时间预算后的副本，非正值沿用当前设置
func (a *Aggregator) WithLimits(workers int, budget time.Duration) *Aggregator {
	cp := *a
	if workers > 0 {
		cp.workers = workers
	}
	if budget > 0 {
		cp.budget = budget
	}
	return &cp
}

func (a *Aggregator) poolSize(n int) int {
	w := a.workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	return max(1, min(w, n))
}

// Run 计算组合内每笔交易的希腊字母并汇总。
// 交易标识或请求集合非法时返回错误且不做任何计算。超出时间预算或 ctx 被取消时，
// 已完成的交易保留在汇总中，其余交易标记为 cancelled，汇总标记为 incomplete。
func (a *Aggregator) Run(ctx context.Context, cfg domain.GreeksConfig, runID string, trades []domain.Trade, requested ...domain.Sensitivity) (*domain.PortfolioSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := domain.ValidateRequest(requested); err != nil {
		return nil, err
	}
	if err := domain.ValidateTrades(trades); err != nil {
		return nil, err
	}
	if runID == "" {
		runID = uuid.New().String()
	}
	ctx = logger.ContextWithRunID(ctx, runID)

	start := time.Now()
	if a.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.budget)
		defer cancel()
	}

	// 种子在调度前全部派生，结果与执行顺序无关
	seeds := make([]uint64, len(trades))
	results := make([]domain.TradeGreeks, len(trades))
	for i, t := range trades {
		seeds[i] = domain.DeriveSeed(cfg.Seed(), t.ID, domain.PurposeGreeks)
		results[i] = domain.TradeGreeks{
			TradeID:      t.ID,
			NettingSetID: t.NettingSetID,
			Status:       domain.TradeCancelled,
		}
	}

	queue := make(chan int)
	var g errgroup.Group
	g.Go(func() error {
		defer close(queue)
		for i := range trades {
			select {
			case queue <- i:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	workers := a.poolSize(len(trades))
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range queue {
				results[i] = a.computeTrade(ctx, cfg.WithSeed(seeds[i]), trades[i], requested)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := domain.Summarize(runID, results)
	summary.Elapsed = time.Since(start)

	for _, r := range results {
		a.metrics.RecordTrade(string(r.Status), r.Elapsed)
	}
	a.metrics.RecordPortfolio(summary.Incomplete)

	attrs := []any{
		"trades", len(trades), "workers", workers,
		"completed", summary.Completed, "failed", summary.Failed, "cancelled", summary.Cancelled,
		"duration", summary.Elapsed,
	}
	if summary.Incomplete {
		a.logger.WarnContext(ctx, "portfolio run incomplete", attrs...)
	} else {
		a.logger.InfoContext(ctx, "portfolio run completed", attrs...)
	}
	return summary, nil
}

func (a *Aggregator) computeTrade(ctx context.Context, cfg domain.GreeksConfig, t domain.Trade, requested []domain.Sensitivity) domain.TradeGreeks {
	out := domain.TradeGreeks{
		TradeID:      t.ID,
		NettingSetID: t.NettingSetID,
		Status:       domain.TradeCancelled,
	}
	if err := ctx.Err(); err != nil {
		out.Error = err.Error()
		return out
	}

	start := time.Now()
	res, err := a.engine.Compute(ctx, cfg, t.Call, t.Params, requested...)
	out.Elapsed = time.Since(start)
	switch {
	case err == nil:
		out.Status = domain.TradeCompleted
		out.Result = res
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		out.Error = err.Error()
	default:
		out.Status = domain.TradeFailed
		out.Error = err.Error()
		a.logger.WarnContext(ctx, "trade greeks failed", "trade_id", t.ID, "error", err)
	}
	return out
}
