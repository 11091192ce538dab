package logger

import (
	"time"

	"go.uber.org/zap"
)

// 일관된 로그 필드를 위한 헬퍼 함수들

// RequestID는 요청 ID 필드를 반환합니다
func RequestID(id string) zap.Field {
	return zap.String("request_id", id)
}

// UserID는 사용자 ID 필드를 반환합니다
func UserID(id string) zap.Field {
	return zap.String("user_id", id)
}

// Collection은 컬렉션명 필드를 반환합니다
func Collection(name string) zap.Field {
	return zap.String("collection", name)
}

// Endpoint는 엔드포인트 식별자 필드를 반환합니다
func Endpoint(name string) zap.Field {
	return zap.String("endpoint", name)
}

// DocumentID는 문서 ID 필드를 반환합니다
func DocumentID(id string) zap.Field {
	return zap.String("document_id", id)
}

// Operation은 작업명 필드를 반환합니다
func Operation(op string) zap.Field {
	return zap.String("operation", op)
}

// Duration은 작업 시간 필드를 반환합니다
func Duration(d time.Duration) zap.Field {
	return zap.Duration("duration", d)
}

// HTTPMethod는 HTTP 메서드 필드를 반환합니다
func HTTPMethod(method string) zap.Field {
	return zap.String("http_method", method)
}

// HTTPPath는 HTTP 경로 필드를 반환합니다
func HTTPPath(path string) zap.Field {
	return zap.String("http_path", path)
}

// HTTPStatus는 HTTP 상태 코드 필드를 반환합니다
func HTTPStatus(status int) zap.Field {
	return zap.Int("http_status", status)
}

// RemoteAddr는 원격 주소 필드를 반환합니다
func RemoteAddr(addr string) zap.Field {
	return zap.String("remote_addr", addr)
}

// Count는 개수 필드를 반환합니다
func Count(n int) zap.Field {
	return zap.Int("count", n)
}

// Field는 임의의 키/값 필드를 반환합니다
func Field(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}
