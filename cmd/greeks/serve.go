package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/greeksengine/internal/greeks/application"
	greekscache "github.com/wyfcoding/greeksengine/internal/greeks/infrastructure/cache"
	"github.com/wyfcoding/greeksengine/internal/greeks/infrastructure/messaging"
	greekshttp "github.com/wyfcoding/greeksengine/internal/greeks/interfaces/http"
	"github.com/wyfcoding/greeksengine/pkg/cache"
	"github.com/wyfcoding/greeksengine/pkg/config"
	"github.com/wyfcoding/greeksengine/pkg/logger"
	"github.com/wyfcoding/greeksengine/pkg/metrics"
	"github.com/wyfcoding/greeksengine/pkg/mq"
	"github.com/wyfcoding/greeksengine/pkg/ratelimit"
	"github.com/wyfcoding/greeksengine/pkg/utils"
)

const (
	metricsSubsystem = "engine"
	shutdownTimeout  = 10 * time.Second
)

// NewCmdServe 启动 HTTP 服务
func NewCmdServe(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Greeks HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func initLogger(cfg *config.Config) error {
	l := cfg.Logger
	return logger.Init(logger.Config{
		Level:      l.Level,
		Format:     l.Format,
		Output:     l.Output,
		FilePath:   l.FilePath,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
		Compress:   l.Compress,
		WithCaller: l.WithCaller,
	})
}

// AppContext 服务运行所需的依赖
type AppContext struct {
	Service *application.GreeksService
	Limiter ratelimit.RateLimiter
}

// newApp 组装应用服务，按配置接入 Redis 结果缓存、Redis 限流与 Kafka 事件发布。
// 返回的 cleanup 按创建的逆序释放资源。
func newApp(ctx context.Context, cfg *config.Config, collector metrics.MetricsCollector) (*AppContext, func(), error) {
	gc, err := application.GreeksConfigFrom(cfg.Greeks)
	if err != nil {
		return nil, nil, err
	}
	opts := []application.Option{
		application.WithLogger(logger.Get()),
		application.WithMetrics(collector),
		application.WithPortfolioLimits(cfg.Portfolio.Workers, cfg.Portfolio.Budget),
	}
	app := &AppContext{Limiter: ratelimit.NewLocalRateLimiter()}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn(ctx, "release resource failed", "error", err)
			}
		}
	}

	if cfg.Redis.Enabled {
		var rc *cache.RedisCache
		err := utils.RetryWithBackoff(ctx, 3, 200*time.Millisecond, 2*time.Second, func() error {
			var err error
			rc, err = cache.New(cache.Config{
				Host:         cfg.Redis.Host,
				Port:         cfg.Redis.Port,
				Password:     cfg.Redis.Password,
				DB:           cfg.Redis.DB,
				MaxPoolSize:  cfg.Redis.MaxPoolSize,
				ConnTimeout:  cfg.Redis.ConnTimeout,
				ReadTimeout:  cfg.Redis.ReadTimeout,
				WriteTimeout: cfg.Redis.WriteTimeout,
			})
			return err
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, rc.Close)
		opts = append(opts, application.WithCache(greekscache.NewResultCache(rc, cfg.Redis.TTL)))
		app.Limiter = ratelimit.NewRedisRateLimiter(rc.GetClient())
	}

	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("create kafka producer: %w", err)
		}
		closers = append(closers, producer.Close)
		opts = append(opts, application.WithPublisher(messaging.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)))
	}

	app.Service = application.NewGreeksService(gc, opts...)
	return app, cleanup, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(metricsSubsystem)
	if err := m.Register(reg); err != nil {
		return err
	}
	collector := metrics.NewDefaultMetricsCollector(m)

	app, cleanup, err := newApp(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Environment != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := greekshttp.NewRouter(app.Service, greekshttp.RouterOptions{
		Config:    cfg,
		Collector: collector,
		Gatherer:  reg,
		Limiter:   app.Limiter,
	})
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gctx, "Starting HTTP server", "addr", srv.Addr, "mode", app.Service.Config().Mode().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info(context.Background(), "Server exiting")
	return nil
}
