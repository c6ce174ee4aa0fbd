// Package application 希腊字母服务的用例层：单笔计算、交叉校验与组合汇总
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
	"github.com/wyfcoding/greeksengine/internal/greeks/infrastructure/kernel"
	"github.com/wyfcoding/greeksengine/pkg/metrics"
)

// ErrInvalidCommand 请求本身非法（配置、参数、内核描述或希腊字母集合）
var ErrInvalidCommand = errors.New("invalid command")

// invalidInput 属于调用方输入错误的领域错误
var invalidInput = []error{
	domain.ErrInvalidBump,
	domain.ErrInvalidTolerance,
	domain.ErrInvalidFloor,
	domain.ErrInvalidSmoothing,
	domain.ErrMissingDependency,
	domain.ErrUnknownSensitivity,
	domain.ErrUnknownMethod,
	domain.ErrInvalidParams,
	domain.ErrDuplicateTrade,
	domain.ErrEmptyTradeID,
	domain.ErrEmptyNettingSet,
	domain.ErrNilPricingCall,
	kernel.ErrUnknownKernel,
	kernel.ErrInvalidContract,
}

// IsInvalidInput 判断错误是否由调用方输入引起
func IsInvalidInput(err error) bool {
	if errors.Is(err, ErrInvalidCommand) {
		return true
	}
	for _, target := range invalidInput {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
}

// GreeksService 希腊字母应用服务
type GreeksService struct {
	engine     *domain.Engine
	verifier   *domain.Verifier
	aggregator *Aggregator
	config     domain.GreeksConfig
	cache      domain.ResultCache
	publisher  domain.EventPublisher
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	now        func() time.Time

	workers int
	budget  time.Duration
}

// Option 服务可选项
type Option func(*GreeksService)

// WithCache 启用结果缓存
func WithCache(c domain.ResultCache) Option {
	return func(s *GreeksService) { s.cache = c }
}

// WithPublisher 启用事件发布
func WithPublisher(p domain.EventPublisher) Option {
	return func(s *GreeksService) { s.publisher = p }
}

// WithMetrics 设置指标收集器
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *GreeksService) { s.metrics = m }
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(s *GreeksService) { s.logger = l }
}

// WithPortfolioLimits 设置组合计算的并发度与时间预算
func WithPortfolioLimits(workers int, budget time.Duration) Option {
	return func(s *GreeksService) {
		s.workers = workers
		s.budget = budget
	}
}

// NewGreeksService 创建服务，cfg 为请求未覆盖时使用的默认配置
func NewGreeksService(cfg domain.GreeksConfig, opts ...Option) *GreeksService {
	s := &GreeksService{
		config:  cfg,
		metrics: metrics.NopCollector{},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = domain.NewEngine(s.logger)
	s.verifier = domain.NewVerifier(s.engine)
	s.aggregator = NewAggregator(s.engine, s.workers, s.budget, s.logger, s.metrics)
	return s
}

// Config 默认配置
func (s *GreeksService) Config() domain.GreeksConfig { return s.config }

type request struct {
	cfg  domain.GreeksConfig
	call domain.PricingCall
	sens []domain.Sensitivity
	set  domain.SensitivitySet
}

func (s *GreeksService) prepare(overrides *ConfigOverrides, spec kernel.Spec, names []string) (request, error) {
	cfg, err := overrides.Apply(s.config)
	if err != nil {
		return request{}, invalid(err)
	}
	call, err := kernel.New(spec)
	if err != nil {
		return request{}, invalid(err)
	}
	sens, err := domain.ParseSensitivities(names)
	if err != nil {
		return request{}, invalid(err)
	}
	set, err := domain.ValidateRequest(sens)
	if err != nil {
		return request{}, invalid(err)
	}
	return request{cfg: cfg, call: call, sens: sens, set: set}, nil
}

// Compute 计算单笔希腊字母。结果可复现，因此命中缓存时直接返回缓存结果。
func (s *GreeksService) Compute(ctx context.Context, cmd ComputeCommand) (*ComputeResponse, error) {
	req, err := s.prepare(cmd.Config, cmd.Kernel, cmd.Sensitivities)
	if err != nil {
		return nil, err
	}
	if err := cmd.Params.Validate(); err != nil {
		return nil, invalid(err)
	}
	requestID := cmd.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	cacheKey, cacheable := "", false
	if s.cache != nil {
		params := cmd.Params
		params.Smoothing = 0
		cacheKey, cacheable = domain.CacheKey(req.cfg, req.call, params, req.set)
	}
	if cacheable {
		cached, hit, err := s.cache.Get(ctx, cacheKey)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "result cache lookup failed", "key", cacheKey, "error", err)
		case hit:
			s.metrics.RecordCache(true)
			return &ComputeResponse{RequestID: requestID, Cached: true, Result: cached}, nil
		default:
			s.metrics.RecordCache(false)
		}
	}

	start := time.Now()
	result, err := s.engine.Compute(ctx, req.cfg, req.call, cmd.Params, req.sens...)
	if err != nil {
		if IsInvalidInput(err) {
			return nil, invalid(err)
		}
		return nil, err
	}
	s.metrics.RecordComputation(result.Method().String(), result.RequestedMethod().String(), result.Degraded(), time.Since(start))

	if cacheable {
		if err := s.cache.Put(ctx, cacheKey, result); err != nil {
			s.logger.WarnContext(ctx, "result cache store failed", "key", cacheKey, "error", err)
		}
	}
	if s.publisher != nil {
		event := domain.GreeksCalculatedEvent{
			RequestID: requestID,
			Params:    cmd.Params,
			Result:    result,
			Timestamp: s.now().UnixMilli(),
		}
		if keyed, ok := req.call.(domain.Keyed); ok {
			event.KernelKey = keyed.Key()
		}
		if err := s.publisher.PublishGreeksCalculated(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "publish greeks calculated failed", "request_id", requestID, "error", err)
		}
	}
	return &ComputeResponse{RequestID: requestID, Result: result}, nil
}

// Verify 交叉校验单笔希腊字母，不一致写入报告而不作为错误返回
func (s *GreeksService) Verify(ctx context.Context, cmd VerifyCommand) (*VerifyResponse, error) {
	req, err := s.prepare(cmd.Config, cmd.Kernel, cmd.Sensitivities)
	if err != nil {
		return nil, err
	}
	if err := cmd.Params.Validate(); err != nil {
		return nil, invalid(err)
	}
	requestID := cmd.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	report, err := s.verifier.Verify(ctx, req.cfg, req.call, cmd.Params, req.sens...)
	if err != nil {
		if IsInvalidInput(err) {
			return nil, invalid(err)
		}
		return nil, err
	}

	mismatches := report.Mismatches()
	names := make([]string, len(mismatches))
	for i, m := range mismatches {
		names[i] = m.Sensitivity.String()
	}
	s.metrics.RecordVerification(names)

	if s.publisher != nil {
		event := domain.VerificationCompletedEvent{
			RequestID:  requestID,
			Passed:     report.Passed,
			Mismatches: mismatches,
			Timestamp:  s.now().UnixMilli(),
		}
		if err := s.publisher.PublishVerificationCompleted(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "publish verification completed failed", "request_id", requestID, "error", err)
		}
	}
	return &VerifyResponse{RequestID: requestID, Report: report}, nil
}

// RunPortfolio 计算组合内全部交易并按净额结算集汇总
func (s *GreeksService) RunPortfolio(ctx context.Context, cmd PortfolioCommand) (*domain.PortfolioSummary, error) {
	cfg, err := cmd.Config.Apply(s.config)
	if err != nil {
		return nil, invalid(err)
	}
	sens, err := domain.ParseSensitivities(cmd.Sensitivities)
	if err != nil {
		return nil, invalid(err)
	}
	if cmd.Workers < 0 || cmd.BudgetMillis < 0 {
		return nil, invalid(fmt.Errorf("workers=%d budget_ms=%d", cmd.Workers, cmd.BudgetMillis))
	}

	trades := make([]domain.Trade, len(cmd.Trades))
	for i, t := range cmd.Trades {
		call, err := kernel.New(t.Kernel)
		if err != nil {
			return nil, invalid(fmt.Errorf("trade %q: %w", t.ID, err))
		}
		trades[i] = domain.Trade{
			ID:           t.ID,
			NettingSetID: t.NettingSetID,
			Call:         call,
			Params:       t.Params,
		}
	}

	agg := s.aggregator.WithLimits(cmd.Workers, time.Duration(cmd.BudgetMillis)*time.Millisecond)
	summary, err := agg.Run(ctx, cfg, cmd.RunID, trades, sens...)
	if err != nil {
		if IsInvalidInput(err) {
			return nil, invalid(err)
		}
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishPortfolioAggregated(ctx, domain.NewPortfolioAggregatedEvent(summary, s.now())); err != nil {
			s.logger.WarnContext(ctx, "publish portfolio aggregated failed", "run_id", summary.RunID, "error", err)
		}
	}
	return summary, nil
}
