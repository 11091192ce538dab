package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mia-platform/crud-service-sub002/internal/application/dto"
	"github.com/mia-platform/crud-service-sub002/internal/interfaces/http/middleware"
)

func performWithHeaders(t *testing.T, headers map[string]string) (dto.AccessControl, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var captured dto.AccessControl
	router := gin.New()
	router.Use(middleware.ACLMiddleware())
	router.GET("/v1/addresses", func(c *gin.Context) {
		captured = middleware.GetAccessControl(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/addresses", nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return captured, recorder
}

func TestACLMiddleware_ParsesAllHeaders(t *testing.T) {
	// Act
	acl, recorder := performWithHeaders(t, map[string]string{
		middleware.ACLRowsHeader:         `[{"ownerId": "u1"}]`,
		middleware.ACLReadColumnsHeader:  "name, street",
		middleware.ACLWriteColumnsHeader: "street",
		middleware.UserIDHeader:          "u1",
	})

	// Assert
	assert.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, acl.Rows, 1)
	assert.Equal(t, bson.M{"ownerId": "u1"}, acl.Rows[0])
	assert.Equal(t, []string{"name", "street"}, acl.ReadColumns)
	assert.Equal(t, []string{"street"}, acl.WriteColumns)
	assert.Equal(t, "u1", acl.UserID)
}

func TestACLMiddleware_MissingHeadersYieldEmptyACL(t *testing.T) {
	acl, recorder := performWithHeaders(t, nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, acl.Rows)
	assert.Empty(t, acl.ReadColumns)
	assert.Empty(t, acl.WriteColumns)
	assert.Empty(t, acl.UserID)
}

func TestACLMiddleware_MalformedRowsRejected(t *testing.T) {
	_, recorder := performWithHeaders(t, map[string]string{
		middleware.ACLRowsHeader: `{"not": "an array"}`,
	})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "acl_rows header must be a JSON array")
}

func TestGetAccessControl_WithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	acl := middleware.GetAccessControl(c)

	assert.Equal(t, dto.AccessControl{}, acl)
}
