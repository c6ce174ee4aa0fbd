// Package metrics 提供 Prometheus helper，包含希腊字母计算服务的 counter/histogram
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wyfcoding/greeksengine/pkg/logger"
)

const namespace = "greeks"

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 按实际求导方式统计的计算次数
	ComputationsTotal *prometheus.CounterVec
	// 计算耗时
	ComputeDuration *prometheus.HistogramVec
	// 能力缺失导致的降级次数
	FallbacksTotal *prometheus.CounterVec

	// 交叉校验次数
	VerificationsTotal prometheus.Counter
	// 校验不一致次数
	VerificationMismatches *prometheus.CounterVec

	// 组合计算次数
	PortfolioRunsTotal prometheus.Counter
	// 未完成的组合计算次数
	PortfolioIncompleteTotal prometheus.Counter
	// 按状态统计的交易数
	TradesTotal *prometheus.CounterVec
	// 单笔交易耗时
	TradeDuration prometheus.Histogram

	// 结果缓存
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ComputationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "computations_total",
			Help:      "Greeks computations by differentiation method actually used",
		}, []string{"method"}),
		ComputeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "compute_duration_seconds",
			Help:      "Greeks computation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"method"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "fallbacks_total",
			Help:      "Computations degraded to bump-and-revalue, by requested method",
		}, []string{"requested"}),

		VerificationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "verifications_total",
			Help:      "Total cross-strategy verifications",
		}),
		VerificationMismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "verification_mismatches_total",
			Help:      "Verification entries outside tolerance or without an independent check, by sensitivity",
		}, []string{"sensitivity"}),

		PortfolioRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "portfolio_runs_total",
			Help:      "Total portfolio aggregation runs",
		}),
		PortfolioIncompleteTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "portfolio_incomplete_total",
			Help:      "Portfolio runs returned with the incomplete flag",
		}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "trades_total",
			Help:      "Trades processed by portfolio runs, by status",
		}, []string{"status"}),
		TradeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "trade_duration_seconds",
			Help:      "Per-trade Greeks duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "cache_hits_total",
			Help:      "Result cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "cache_misses_total",
			Help:      "Result cache misses",
		}),
	}
}

// Register 注册所有指标，reg 为空时使用默认注册器
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	metrics := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ComputationsTotal,
		m.ComputeDuration,
		m.FallbacksTotal,
		m.VerificationsTotal,
		m.VerificationMismatches,
		m.PortfolioRunsTotal,
		m.PortfolioIncompleteTotal,
		m.TradesTotal,
		m.TradeDuration,
		m.CacheHits,
		m.CacheMisses,
	}

	for _, metric := range metrics {
		if err := reg.Register(metric); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// Handler 返回 Prometheus 抓取端点，gatherer 为空时使用默认收集器
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// MetricsCollector 指标收集器接口
type MetricsCollector interface {
	// 记录 HTTP 请求
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
	// 记录一次希腊字母计算
	RecordComputation(method, requested string, degraded bool, duration time.Duration)
	// 记录一次交叉校验及其不一致的希腊字母
	RecordVerification(mismatches []string)
	// 记录单笔交易
	RecordTrade(status string, duration time.Duration)
	// 记录组合计算
	RecordPortfolio(incomplete bool)
	// 记录缓存命中情况
	RecordCache(hit bool)
}

// DefaultMetricsCollector 默认指标收集器实现
type DefaultMetricsCollector struct {
	metrics *Metrics
}

// NewDefaultMetricsCollector 创建默认指标收集器
func NewDefaultMetricsCollector(metrics *Metrics) *DefaultMetricsCollector {
	return &DefaultMetricsCollector{
		metrics: metrics,
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (dmc *DefaultMetricsCollector) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	dmc.metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	dmc.metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordComputation 记录一次希腊字母计算
func (dmc *DefaultMetricsCollector) RecordComputation(method, requested string, degraded bool, duration time.Duration) {
	dmc.metrics.ComputationsTotal.WithLabelValues(method).Inc()
	dmc.metrics.ComputeDuration.WithLabelValues(method).Observe(duration.Seconds())
	if degraded {
		dmc.metrics.FallbacksTotal.WithLabelValues(requested).Inc()
	}
}

// RecordVerification 记录交叉校验
func (dmc *DefaultMetricsCollector) RecordVerification(mismatches []string) {
	dmc.metrics.VerificationsTotal.Inc()
	for _, s := range mismatches {
		dmc.metrics.VerificationMismatches.WithLabelValues(s).Inc()
	}
}

// RecordTrade 记录单笔交易
func (dmc *DefaultMetricsCollector) RecordTrade(status string, duration time.Duration) {
	dmc.metrics.TradesTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		dmc.metrics.TradeDuration.Observe(duration.Seconds())
	}
}

// RecordPortfolio 记录组合计算
func (dmc *DefaultMetricsCollector) RecordPortfolio(incomplete bool) {
	dmc.metrics.PortfolioRunsTotal.Inc()
	if incomplete {
		dmc.metrics.PortfolioIncompleteTotal.Inc()
	}
}

// RecordCache 记录缓存命中情况
func (dmc *DefaultMetricsCollector) RecordCache(hit bool) {
	if hit {
		dmc.metrics.CacheHits.Inc()
		return
	}
	dmc.metrics.CacheMisses.Inc()
}

// NopCollector 不做任何记录的收集器
type NopCollector struct{}

func (NopCollector) RecordHTTPRequest(string, string, int, time.Duration) {}
func (NopCollector) RecordComputation(string, string, bool, time.Duration) {}
func (NopCollector) RecordVerification([]string) {}
func (NopCollector) RecordTrade(string, time.Duration) {}
func (NopCollector) RecordPortfolio(bool) {}
func (NopCollector) RecordCache(bool) {}
