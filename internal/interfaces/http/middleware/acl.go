package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mia-platform/crud-service-sub002/internal/application/dto"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// 플랫폼이 주입하는 접근 제어 헤더들
const (
	ACLRowsHeader         = "acl_rows"
	ACLReadColumnsHeader  = "acl_read_columns"
	ACLWriteColumnsHeader = "acl_write_columns"
	UserIDHeader          = "userid"

	aclContextKey = "access_control"
)

// ACLMiddleware는 접근 제어 헤더를 해석해 컨텍스트에 저장합니다.
// acl_rows는 MongoDB 필터 표현식의 JSON 배열이고, acl_read_columns와
// acl_write_columns는 쉼표로 구분된 필드 허용 목록입니다.
func ACLMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		acl := dto.AccessControl{
			UserID:       c.GetHeader(UserIDHeader),
			ReadColumns:  splitColumns(c.GetHeader(ACLReadColumnsHeader)),
			WriteColumns: splitColumns(c.GetHeader(ACLWriteColumnsHeader)),
		}

		if raw := c.GetHeader(ACLRowsHeader); raw != "" {
			var rows []bson.M
			if err := json.Unmarshal([]byte(raw), &rows); err != nil {
				logger.Warn(c.Request.Context(), "malformed acl_rows header",
					logger.Field("acl_rows", raw),
				)
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error":      http.StatusText(http.StatusBadRequest),
					"statusCode": http.StatusBadRequest,
					"message":    "acl_rows header must be a JSON array of filter expressions",
				})
				return
			}
			acl.Rows = rows
		}

		if acl.UserID != "" {
			ctx := logger.WithFields(c.Request.Context(), logger.UserID(acl.UserID))
			c.Request = c.Request.WithContext(ctx)
		}

		c.Set(aclContextKey, acl)
		c.Next()
	}
}

// GetAccessControl은 미들웨어가 저장한 접근 제어 정보를 반환합니다
func GetAccessControl(c *gin.Context) dto.AccessControl {
	if value, exists := c.Get(aclContextKey); exists {
		if acl, ok := value.(dto.AccessControl); ok {
			return acl
		}
	}
	return dto.AccessControl{}
}

func splitColumns(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
