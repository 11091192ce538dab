package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
)

// ErrorResponse는 표준 에러 응답 본문입니다
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// respondError는 에러를 HTTP 상태와 표준 본문으로 변환합니다
func respondError(c *gin.Context, err error) {
	status := apperrors.GetHTTPStatus(err)

	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
		if appErr.Details != "" {
			message = message + ": " + appErr.Details
		}
	}

	c.JSON(status, ErrorResponse{
		Error:      http.StatusText(status),
		StatusCode: status,
		Message:    message,
	})
}
