package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/crud-service-sub002/internal/application/dto"
	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
)

func testContext(t *testing.T, rawQuery string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	req := httptest.NewRequest(http.MethodGet, "/v1/addresses?"+rawQuery, nil)
	c.Request = req
	return c, recorder
}

func TestParseListParams_ReservedParameters(t *testing.T) {
	// Arrange
	c, _ := testContext(t, `_q={"a":1}&_p=name,street&_s=-name&_l=10&_sk=5&_st=PUBLIC,DRAFT`)

	// Act
	params, err := parseListParams(c)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, params.Query)
	assert.Equal(t, "name,street", params.Projection)
	assert.Equal(t, "-name", params.Sort)
	assert.Equal(t, int64(10), params.Limit)
	assert.Equal(t, int64(5), params.Skip)
	assert.Equal(t, []string{"PUBLIC", "DRAFT"}, params.States)
	assert.Empty(t, params.OtherParams)
}

func TestParseListParams_UnreservedParametersBecomeEqualityFilters(t *testing.T) {
	c, _ := testContext(t, "name=home&street=calatafimi&_l=5")

	params, err := parseListParams(c)

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "home", "street": "calatafimi"}, params.OtherParams)
	assert.Equal(t, int64(5), params.Limit)
}

func TestParseListParams_InvalidLimit(t *testing.T) {
	for _, raw := range []string{"_l=abc", "_l=-1", "_sk=x", "_sk=-2"} {
		c, _ := testContext(t, raw)

		_, err := parseListParams(c)

		assert.Error(t, err, raw)
		assert.Equal(t, apperrors.ErrCodeBadRequest, apperrors.GetCode(err))
	}
}

func TestParseListParams_RawProjection(t *testing.T) {
	c, _ := testContext(t, `_rawp={"name":1}`)

	params, err := parseListParams(c)

	require.NoError(t, err)
	assert.Equal(t, `{"name":1}`, params.RawProjection)
}

func TestApplyPageLimits_DefaultApplied(t *testing.T) {
	// Arrange
	h := NewCrudHandler(nil, 25, 200)
	params := dto.ListParams{}

	// Act
	err := h.applyPageLimits(&params)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(25), params.Limit)
}

func TestApplyPageLimits_ExplicitLimitKept(t *testing.T) {
	h := NewCrudHandler(nil, 25, 200)
	params := dto.ListParams{Limit: 50}

	require.NoError(t, h.applyPageLimits(&params))
	assert.Equal(t, int64(50), params.Limit)
}

func TestApplyPageLimits_MaxLimitEnforced(t *testing.T) {
	h := NewCrudHandler(nil, 25, 200)
	params := dto.ListParams{Limit: 500}

	err := h.applyPageLimits(&params)

	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBadRequest, apperrors.GetCode(err))
}

func TestRespondError_StandardBodyShape(t *testing.T) {
	// Arrange
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	// Act
	respondError(c, apperrors.Newf(apperrors.ErrCodeNotFound, "CRUD endpoint %q does not exist", "ghosts"))

	// Assert
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "Not Found", body.Error)
	assert.Equal(t, http.StatusNotFound, body.StatusCode)
	assert.Equal(t, `CRUD endpoint "ghosts" does not exist`, body.Message)
}

func TestRespondError_DetailsAppendedToMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	err := apperrors.New(apperrors.ErrCodeBadRequest, "body does not match collection schema").
		WithDetails("title is required")
	respondError(c, err)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "body does not match collection schema: title is required", body.Message)
}

func TestRespondError_PlainErrorIsInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	respondError(c, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}
