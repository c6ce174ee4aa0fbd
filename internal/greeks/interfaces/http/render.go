package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wyfcoding/greeksengine/internal/greeks/application"
	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
	"github.com/wyfcoding/greeksengine/pkg/logger"
	"github.com/wyfcoding/greeksengine/pkg/utils"
)

// MIMEMsgpack msgpack 编码的内容类型
const MIMEMsgpack = "application/msgpack"

// 错误码
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodePricingFailed   = "PRICING_FAILED"
	CodeTimeout         = "DEADLINE_EXCEEDED"
	CodeInternal        = "INTERNAL"
)

// bind 按 Content-Type 解码请求体，默认 JSON
func bind(c *gin.Context, obj any) error {
	if c.ContentType() == MIMEMsgpack {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return err
		}
		return msgpack.Unmarshal(body, obj)
	}
	return c.ShouldBindJSON(obj)
}

// render 按 Accept 协商输出格式
func render(c *gin.Context, status int, obj any) {
	if c.NegotiateFormat(gin.MIMEJSON, MIMEMsgpack) != MIMEMsgpack {
		c.JSON(status, obj)
		return
	}
	data, err := msgpack.Marshal(obj)
	if err != nil {
		logger.Error(c.Request.Context(), "msgpack encode failed", "error", err)
		c.JSON(http.StatusInternalServerError, utils.NewErrorWrapper(CodeInternal, "encode response", err))
		return
	}
	c.Data(status, MIMEMsgpack, data)
}

// badRequest 请求体无法解码
func badRequest(c *gin.Context, err error) {
	render(c, http.StatusBadRequest, utils.NewErrorWrapper(CodeInvalidArgument, fmt.Sprintf("decode request: %v", err), err))
}

// fail 将应用层错误映射为 HTTP 状态码
func fail(c *gin.Context, err error) {
	ctx := c.Request.Context()
	var (
		status int
		body   *utils.ErrorWrapper
	)
	switch {
	case application.IsInvalidInput(err):
		status, body = http.StatusBadRequest, utils.NewErrorWrapper(CodeInvalidArgument, err.Error(), err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status, body = http.StatusGatewayTimeout, utils.NewErrorWrapper(CodeTimeout, err.Error(), err)
	case errors.Is(err, domain.ErrPricingFailed):
		status, body = http.StatusUnprocessableEntity, utils.NewErrorWrapper(CodePricingFailed, err.Error(), err)
	default:
		status, body = http.StatusInternalServerError, utils.NewErrorWrapper(CodeInternal, "internal error", err)
	}
	if status >= http.StatusInternalServerError {
		logger.Error(ctx, "greeks request failed", "path", c.FullPath(), "status", status, "error", err)
	} else {
		logger.Warn(ctx, "greeks request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	render(c, status, body)
}
