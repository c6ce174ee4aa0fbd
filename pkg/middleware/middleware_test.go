package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/wyfcoding/greeksengine/pkg/config"
	"github.com/wyfcoding/greeksengine/pkg/logger"
	"github.com/wyfcoding/greeksengine/pkg/metrics"
	"github.com/wyfcoding/greeksengine/pkg/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGinLoggingMiddlewarePropagatesTraceID(t *testing.T) {
	r := gin.New()
	r.Use(GinLoggingMiddleware())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = logger.TraceID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(TraceHeader, "trace-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "trace-123", seen)
	assert.Equal(t, "trace-123", w.Header().Get(TraceHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Header().Get(TraceHeader))
}

func TestGinRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(GinRecoveryMiddleware())
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type countingCollector struct {
	metrics.NopCollector
	paths []string
}

func (c *countingCollector) RecordHTTPRequest(_, path string, _ int, _ time.Duration) {
	c.paths = append(c.paths, path)
}

func TestGinMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	collector := &countingCollector{}
	r := gin.New()
	r.Use(GinMetricsMiddleware(collector))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, []string{"/items/:id", "unmatched"}, collector.paths)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(ratelimit.NewLocalRateLimiter(), config.HTTPConfig{RateLimit: 0.001, RateBurst: 1}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitDisabled(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(ratelimit.NewLocalRateLimiter(), config.HTTPConfig{}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
