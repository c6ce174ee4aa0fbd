// Package http 希腊字母服务的 HTTP 接口
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/greeksengine/internal/greeks/application"
)

// GreeksHandler HTTP 处理器
type GreeksHandler struct {
	svc         *application.GreeksService
	serviceName string
}

// NewGreeksHandler 创建 HTTP 处理器实例
func NewGreeksHandler(svc *application.GreeksService, serviceName string) *GreeksHandler {
	return &GreeksHandler{svc: svc, serviceName: serviceName}
}

// RegisterRoutes 注册路由
func (h *GreeksHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/v1/greeks")
	{
		api.POST("/compute", h.Compute)
		api.POST("/verify", h.Verify)
		api.POST("/portfolio", h.Portfolio)
	}
	router.GET("/health", h.Health)
}

// Compute 计算单笔希腊字母
func (h *GreeksHandler) Compute(c *gin.Context) {
	var cmd application.ComputeCommand
	if err := bind(c, &cmd); err != nil {
		badRequest(c, err)
		return
	}
	resp, err := h.svc.Compute(c.Request.Context(), cmd)
	if err != nil {
		fail(c, err)
		return
	}
	render(c, http.StatusOK, resp)
}

// Verify 交叉校验单笔希腊字母
func (h *GreeksHandler) Verify(c *gin.Context) {
	var cmd application.VerifyCommand
	if err := bind(c, &cmd); err != nil {
		badRequest(c, err)
		return
	}
	resp, err := h.svc.Verify(c.Request.Context(), cmd)
	if err != nil {
		fail(c, err)
		return
	}
	render(c, http.StatusOK, resp)
}

// Portfolio 组合希腊字母汇总。未在预算内完成时仍返回 200，汇总带 incomplete 标记。
func (h *GreeksHandler) Portfolio(c *gin.Context) {
	var cmd application.PortfolioCommand
	if err := bind(c, &cmd); err != nil {
		badRequest(c, err)
		return
	}
	summary, err := h.svc.RunPortfolio(c.Request.Context(), cmd)
	if err != nil {
		fail(c, err)
		return
	}
	render(c, http.StatusOK, summary)
}

// Health 健康检查
func (h *GreeksHandler) Health(c *gin.Context) {
	cfg := h.svc.Config()
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   h.serviceName,
		"mode":      cfg.Mode().String(),
		"timestamp": time.Now().Unix(),
	})
}
