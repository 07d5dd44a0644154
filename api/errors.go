package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/orderlock/lease"
	"github.com/ceyewan/orderlock/xerrors"
)

// lockedBy 冲突响应中的当前持有者
type lockedBy struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	SessionID   string `json:"session_id"`
}

// errorBody 统一的错误响应结构
type errorBody struct {
	StatusCode int       `json:"statusCode"`
	Message    string    `json:"message"`
	LockedBy   *lockedBy `json:"locked_by,omitempty"`
}

// writeError 将业务错误映射为 HTTP 响应。
// 错误分类顺序：冲突（携带持有者）→ 校验 → 未找到 → 暂时不可用 → 500
func writeError(c *gin.Context, err error) {
	var conflict *lease.ConflictError
	if errors.As(err, &conflict) {
		displayName := conflict.HolderDisplayName
		if displayName == "" {
			displayName = "another user"
		}
		c.JSON(http.StatusConflict, errorBody{
			StatusCode: http.StatusConflict,
			Message:    "order is locked by " + displayName,
			LockedBy: &lockedBy{
				UserID:      conflict.HolderUserID,
				DisplayName: displayName,
				SessionID:   conflict.HolderSessionID,
			},
		})
		return
	}

	switch {
	case xerrors.Is(err, xerrors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorBody{
			StatusCode: http.StatusBadRequest,
			Message:    err.Error(),
		})
	case xerrors.Is(err, xerrors.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody{
			StatusCode: http.StatusNotFound,
			Message:    err.Error(),
		})
	case xerrors.Is(err, xerrors.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorBody{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "service temporarily unavailable, please retry",
		})
	default:
		c.JSON(http.StatusInternalServerError, errorBody{
			StatusCode: http.StatusInternalServerError,
			Message:    "internal server error",
		})
	}
}
