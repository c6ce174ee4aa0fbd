package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wyfcoding/greeksengine/internal/greeks/application"
	"github.com/wyfcoding/greeksengine/pkg/config"
	"github.com/wyfcoding/greeksengine/pkg/metrics"
	"github.com/wyfcoding/greeksengine/pkg/middleware"
	"github.com/wyfcoding/greeksengine/pkg/ratelimit"
)

// RouterOptions 路由依赖
type RouterOptions struct {
	Config    *config.Config
	Collector metrics.MetricsCollector
	Gatherer  prometheus.Gatherer // nil 时不暴露 /metrics
	Limiter   ratelimit.RateLimiter
}

// NewRouter 组装 Gin 引擎：中间件、业务路由、健康检查与指标端点
func NewRouter(svc *application.GreeksService, opts RouterOptions) *gin.Engine {
	if opts.Collector == nil {
		opts.Collector = metrics.NopCollector{}
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewLocalRateLimiter()
	}

	r := gin.New()
	r.Use(
		middleware.GinRecoveryMiddleware(),
		middleware.GinLoggingMiddleware(),
		middleware.GinMetricsMiddleware(opts.Collector),
		middleware.RateLimitMiddleware(opts.Limiter, opts.Config.HTTP),
	)

	NewGreeksHandler(svc, opts.Config.ServiceName).RegisterRoutes(r)
	if opts.Gatherer != nil && opts.Config.Metrics.Enabled {
		r.GET(opts.Config.Metrics.Path, gin.WrapH(metrics.Handler(opts.Gatherer)))
	}
	return r
}
