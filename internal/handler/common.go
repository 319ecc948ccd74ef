package handler

import (
	"net/http"

	"ticket-exchange/internal/middleware"
	"ticket-exchange/internal/model"
	apperrors "ticket-exchange/pkg/app_errors"
	"ticket-exchange/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func BindJson(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
			"code":  apperrors.CodeInvalidInput,
		})
		return err
	}
	return nil
}

func BindQuery(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
			"code":  apperrors.CodeInvalidInput,
		})
		return err
	}
	return nil
}

// ticketID 解析路徑上的票券 ID，失敗時已寫入 400
func ticketID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid ticket id",
			"code":  apperrors.CodeInvalidInput,
		})
		return uuid.Nil, false
	}
	return id, true
}

// caller 取得 JWT 中的身分，未驗證時已寫入 401
func caller(c *gin.Context) (model.Identity, bool) {
	identity, ok := middleware.CallerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "authentication required",
			"code":  apperrors.CodeUnauthorized,
		})
		return model.Identity{}, false
	}
	return identity, true
}

var statusByCode = map[apperrors.Code]int{
	apperrors.CodeNotFound:               http.StatusNotFound,
	apperrors.CodeConflict:               http.StatusConflict,
	apperrors.CodeUnauthorized:           http.StatusForbidden,
	apperrors.CodePaymentFailure:         http.StatusBadGateway,
	apperrors.CodeTransferFailure:        http.StatusBadGateway,
	apperrors.CodeReconciliationRequired: http.StatusConflict,
	apperrors.CodeNoMatch:                http.StatusUnprocessableEntity,
	apperrors.CodeCatalogUnavailable:     http.StatusServiceUnavailable,
	apperrors.CodeInvalidInput:           http.StatusBadRequest,
	apperrors.CodeInternal:               http.StatusInternalServerError,
}

// writeError 依錯誤碼回應 {"error", "code"}，內部錯誤不外洩訊息
func writeError(c *gin.Context, err error, operation string) {
	code := apperrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	log := logger.WithComponent("handler").With(
		zap.String("operation", operation),
		zap.String("code", string(code)),
		zap.Error(err),
	)

	message := err.Error()
	switch {
	case code == apperrors.CodeInternal:
		log.Error("Unexpected error")
		message = apperrors.ErrInternalServerError.Error()
	case code == apperrors.CodeReconciliationRequired:
		log.Error("Reconciliation required")
		// 人工處理後同一把冪等鍵重送要能重新執行
		middleware.SkipReplay(c)
	case status >= http.StatusInternalServerError:
		log.Error("Upstream failure")
	default:
		log.Warn("Request rejected")
	}

	c.JSON(status, gin.H{
		"error": message,
		"code":  code,
	})
}
