// Package api 暴露订单锁协调器的 HTTP 接口。
//
// 所有路由都要求 JWT 认证，调用方身份取自 Claims 的 Subject。
// 入参校验在任何存储访问之前完成。
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/orderlock/auth"
	"github.com/ceyewan/orderlock/clog"
	"github.com/ceyewan/orderlock/lease"
	"github.com/ceyewan/orderlock/xerrors"
)

const maxSessionIDLength = 128

// Handler 订单锁 HTTP 处理器
type Handler struct {
	coordinator lease.Coordinator
	logger      clog.Logger
}

// NewHandler 创建处理器
func NewHandler(coordinator lease.Coordinator, logger clog.Logger) (*Handler, error) {
	if coordinator == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "api: coordinator is nil")
	}
	if logger == nil {
		logger = clog.Discard()
	}
	return &Handler{
		coordinator: coordinator,
		logger:      logger.WithNamespace("api"),
	}, nil
}

// acquireRequest 获取锁的请求体
type acquireRequest struct {
	OrderID   int64  `json:"order_id"`
	OrderType string `json:"order_type"`
	SessionID string `json:"session_id"`
}

// unlockedResponse 未锁定状态的响应体
type unlockedResponse struct {
	OrderID int64 `json:"order_id"`
	Locked  bool  `json:"locked"`
}

// Acquire POST /api/order-locks/acquire
func (h *Handler) Acquire(c *gin.Context) {
	callerID, ok := h.callerID(c)
	if !ok {
		return
	}

	req := &acquireRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, xerrors.Wrap(xerrors.ErrInvalidInput, "invalid request body"))
		return
	}

	if req.OrderID <= 0 {
		writeError(c, xerrors.Wrap(xerrors.ErrInvalidInput, "order_id must be a positive integer"))
		return
	}
	orderType, err := lease.ParseOrderType(req.OrderType)
	if err != nil {
		writeError(c, err)
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" || len(sessionID) > maxSessionIDLength {
		writeError(c, xerrors.Wrapf(xerrors.ErrInvalidInput,
			"session_id must be non-empty and at most %d characters", maxSessionIDLength))
		return
	}

	result, err := h.coordinator.Acquire(c.Request.Context(), callerID, orderType, req.OrderID, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Release DELETE /api/order-locks/release/:orderId
func (h *Handler) Release(c *gin.Context) {
	callerID, ok := h.callerID(c)
	if !ok {
		return
	}

	orderID, ok := h.orderIDParam(c)
	if !ok {
		return
	}

	if err := h.coordinator.Release(c.Request.Context(), callerID, orderID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Renew POST /api/order-locks/renew/:orderId
func (h *Handler) Renew(c *gin.Context) {
	callerID, ok := h.callerID(c)
	if !ok {
		return
	}

	orderID, ok := h.orderIDParam(c)
	if !ok {
		return
	}

	result, err := h.coordinator.Renew(c.Request.Context(), callerID, orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Status GET /api/order-locks/status/:orderId?order_type=
func (h *Handler) Status(c *gin.Context) {
	if _, ok := h.callerID(c); !ok {
		return
	}

	orderID, ok := h.orderIDParam(c)
	if !ok {
		return
	}

	orderType, err := lease.ParseOrderType(c.Query("order_type"))
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.coordinator.Status(c.Request.Context(), orderType, orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	if result == nil {
		c.JSON(http.StatusOK, unlockedResponse{OrderID: orderID, Locked: false})
		return
	}
	c.JSON(http.StatusOK, result)
}

// callerID 从认证中间件注入的 Claims 中提取调用方用户 ID
func (h *Handler) callerID(c *gin.Context) (int64, bool) {
	claims, ok := auth.GetClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
			StatusCode: http.StatusUnauthorized,
			Message:    "unauthorized",
		})
		return 0, false
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		h.logger.Warn("token subject is not a valid user id", clog.String("subject", claims.Subject))
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
			StatusCode: http.StatusUnauthorized,
			Message:    "unauthorized",
		})
		return 0, false
	}
	return id, true
}

// orderIDParam 解析并校验路径参数 orderId
func (h *Handler) orderIDParam(c *gin.Context) (int64, bool) {
	raw := c.Param("orderId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(c, xerrors.Wrapf(xerrors.ErrInvalidInput, "invalid order id: %q", raw))
		return 0, false
	}
	return id, true
}
