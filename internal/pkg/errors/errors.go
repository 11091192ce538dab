package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode는 에러 코드 타입입니다
type ErrorCode string

const (
	// 일반 에러
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeBadRequest ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeConflict   ErrorCode = "CONFLICT"
	ErrCodeTimeout    ErrorCode = "TIMEOUT"

	// 도메인 에러
	ErrCodeUnknownType            ErrorCode = "UNKNOWN_TYPE"
	ErrCodeCastError              ErrorCode = "CAST_ERROR"
	ErrCodeUniqueConstraint       ErrorCode = "UNIQUE_CONSTRAINT_VIOLATION"
	ErrCodeIngestionBatch         ErrorCode = "INGESTION_BATCH_ERROR"
	ErrCodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	ErrCodeInvalidDefinition      ErrorCode = "INVALID_DEFINITION"
	ErrCodeUnsupportedMediaType   ErrorCode = "UNSUPPORTED_MEDIA_TYPE"

	// 데이터베이스 에러
	ErrCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_ERROR"
	ErrCodeDatabaseQuery      ErrorCode = "DATABASE_QUERY_ERROR"

	// 서비스 에러
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// AppError는 애플리케이션 에러입니다
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Error는 error 인터페이스를 구현합니다
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap은 원본 에러를 반환합니다
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithMetadata는 메타데이터를 추가합니다
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithDetails는 상세 정보를 추가합니다
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// New는 새로운 AppError를 생성합니다
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: getHTTPStatus(code),
		Metadata:   make(map[string]interface{}),
	}
}

// Newf는 포맷팅된 메시지로 AppError를 생성합니다
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap은 기존 에러를 AppError로 래핑합니다
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	// 이미 AppError인 경우
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: getHTTPStatus(code),
		Err:        err,
		Metadata:   make(map[string]interface{}),
	}
}

// Is는 에러가 특정 코드인지 확인합니다
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode는 에러 코드를 반환합니다
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// GetHTTPStatus는 에러의 HTTP 상태 코드를 반환합니다
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// getHTTPStatus는 에러 코드에 대응하는 HTTP 상태 코드를 반환합니다
func getHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeBadRequest, ErrCodeCastError, ErrCodeInvalidStateTransition:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeUniqueConstraint:
		return http.StatusConflict
	case ErrCodeUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	case ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// 미리 정의된 에러들
var (
	ErrDocumentNotFound  = New(ErrCodeNotFound, "document not found")
	ErrUniqueConstraint  = New(ErrCodeUniqueConstraint, "unique constraint violation")
	ErrDatabaseQuery     = New(ErrCodeDatabaseQuery, "database query error")
	ErrRateLimitExceeded = New(ErrCodeRateLimitExceeded, "rate limit exceeded")
)
