package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/mia-platform/crud-service-sub002/internal/application/dto"
	"github.com/mia-platform/crud-service-sub002/internal/application/usecase"
	"github.com/mia-platform/crud-service-sub002/internal/interfaces/http/middleware"
	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// 예약 쿼리 파라미터 이름들
const (
	queryParam         = "_q"
	projectionParam    = "_p"
	rawProjectionParam = "_rawp"
	sortParam          = "_s"
	limitParam         = "_l"
	skipParam          = "_sk"
	stateParam         = "_st"
)

// CrudHandler는 등록된 컬렉션들의 CRUD HTTP 핸들러입니다
type CrudHandler struct {
	crudUC       *usecase.CrudUseCase
	defaultLimit int64
	maxLimit     int64
}

// NewCrudHandler는 새로운 CrudHandler를 생성합니다.
// defaultLimit은 목록 조회에 _l이 없을 때 적용되며, maxLimit을 넘는
// _l 요청은 거부됩니다. 내보내기는 페이지 한도의 영향을 받지 않습니다.
func NewCrudHandler(crudUC *usecase.CrudUseCase, defaultLimit, maxLimit int64) *CrudHandler {
	if defaultLimit <= 0 {
		defaultLimit = 25
	}
	return &CrudHandler{crudUC: crudUC, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// applyPageLimits는 목록 조회에 기본/최대 페이지 한도를 적용합니다
func (h *CrudHandler) applyPageLimits(params *dto.ListParams) error {
	if h.maxLimit > 0 && params.Limit > h.maxLimit {
		return apperrors.Newf(apperrors.ErrCodeBadRequest, "%s parameter exceeds the maximum of %d", limitParam, h.maxLimit)
	}
	if params.Limit == 0 {
		params.Limit = h.defaultLimit
	}
	return nil
}

// parseListParams는 예약 파라미터를 해석하고 나머지는 동등 조건으로
// 넘깁니다
func parseListParams(c *gin.Context) (dto.ListParams, error) {
	params := dto.ListParams{
		OtherParams: map[string]string{},
	}

	for key, values := range c.Request.URL.Query() {
		if len(values) == 0 {
			continue
		}
		value := values[0]

		switch key {
		case queryParam:
			params.Query = value
		case projectionParam:
			params.Projection = value
		case rawProjectionParam:
			params.RawProjection = value
		case sortParam:
			params.Sort = value
		case limitParam:
			limit, err := strconv.ParseInt(value, 10, 64)
			if err != nil || limit < 0 {
				return params, apperrors.Newf(apperrors.ErrCodeBadRequest, "invalid %s parameter", limitParam)
			}
			params.Limit = limit
		case skipParam:
			skip, err := strconv.ParseInt(value, 10, 64)
			if err != nil || skip < 0 {
				return params, apperrors.Newf(apperrors.ErrCodeBadRequest, "invalid %s parameter", skipParam)
			}
			params.Skip = skip
		case stateParam:
			for _, state := range strings.Split(value, ",") {
				state = strings.TrimSpace(state)
				if state != "" {
					params.States = append(params.States, state)
				}
			}
		default:
			params.OtherParams[key] = value
		}
	}

	return params, nil
}

// List godoc
// @Summary      List documents
// @Description  List documents of a registered collection with filtering, projection, sorting and paging
// @Tags         crud
// @Produce      json
// @Param        collection  path   string  true   "Collection endpoint name"
// @Param        _q          query  string  false  "MongoDB-style filter"
// @Param        _p          query  string  false  "Comma-separated field projection"
// @Param        _s          query  string  false  "Sort specification"
// @Param        _l          query  int     false  "Limit"
// @Param        _sk         query  int     false  "Skip"
// @Param        _st         query  string  false  "Comma-separated document states"
// @Success      200  {array}   map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/{collection} [get]
func (h *CrudHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	params, err := parseListParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.applyPageLimits(&params); err != nil {
		respondError(c, err)
		return
	}

	documents, err := h.crudUC.List(ctx, c.Param("collection"), params, middleware.GetAccessControl(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, documents)
}

// Count godoc
// @Summary      Count documents
// @Tags         crud
// @Produce      json
// @Param        collection  path  string  true  "Collection endpoint name"
// @Success      200  {object}  dto.CountResult
// @Router       /v1/{collection}/count [get]
func (h *CrudHandler) Count(c *gin.Context) {
	ctx := c.Request.Context()

	params, err := parseListParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	count, err := h.crudUC.Count(ctx, c.Param("collection"), params, middleware.GetAccessControl(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CountResult{Count: count})
}

// GetByID godoc
// @Summary      Get a document by ID
// @Tags         crud
// @Produce      json
// @Param        collection  path  string  true  "Collection endpoint name"
// @Param        id          path  string  true  "Document ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/{collection}/{id} [get]
func (h *CrudHandler) GetByID(c *gin.Context) {
	ctx := c.Request.Context()

	params, err := parseListParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	document, err := h.crudUC.GetByID(ctx, c.Param("collection"), c.Param("id"), params, middleware.GetAccessControl(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, document)
}

// Create godoc
// @Summary      Create a document
// @Tags         crud
// @Accept       json
// @Produce      json
// @Param        collection  path  string                  true  "Collection endpoint name"
// @Param        request     body  map[string]interface{}  true  "Document body"
// @Success      201  {object}  dto.CreateResult
// @Failure      400  {object}  ErrorResponse
// @Router       /v1/{collection} [post]
func (h *CrudHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		logger.Debug(ctx, "invalid request body", zap.Error(err))
		respondError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.crudUC.Create(ctx, c.Param("collection"), body, middleware.GetAccessControl(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// CreateBulk godoc
// @Summary      Create documents in bulk
// @Tags         crud
// @Accept       json
// @Produce      json
// @Param        collection  path  string                    true  "Collection endpoint name"
// @Param        request     body  []map[string]interface{}  true  "Document bodies"
// @Success      201  {object}  dto.BulkResult
// @Failure      400  {object}  ErrorResponse
// @Router       /v1/{collection}/bulk [post]
func (h *CrudHandler) CreateBulk(c *gin.Context) {
	ctx := c.Request.Context()

	var bodies []map[string]interface{}
	if err := c.ShouldBindJSON(&bodies); err != nil {
		logger.Debug(ctx, "invalid request body", zap.Error(err))
		respondError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.crudUC.CreateBulk(ctx, c.Param("collection"), bodies, middleware.GetAccessControl(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Patch godoc
// @Summary      Update a document
// @Description  Apply MongoDB-style update commands ($set, $unset, $inc, ...) to a document
// @Tags         crud
// @Accept       json
// @Produce      json
// @Param        collection  path  string                  true  "Collection endpoint name"
// @Param        id          path  string                  true  "Document ID"
// @Param        request     body  map[string]interface{}  true  "Update commands"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/{collection}/{id} [patch]
func (h *CrudHandler) Patch(c *gin.Context) {
	ctx := c.Request.Context()

	var commands bson.M
	if err := c.ShouldBindJSON(&commands); err != nil {
		logger.Debug(ctx, "invalid request body", zap.Error(err))
		respondError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid request body"))
		return
	}

	params, err := parseListParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	document, err := h.crudUC.Patch(ctx, c.Param("collection"), c.Param("id"), commands, params, middleware.GetAccessControl(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, document)
}

// ChangeState godoc
// @Summary      Change document lifecycle state
// @Tags         crud
// @Accept       json
// @Produce      json
// @Param        collection  path  string                  true  "Collection endpoint name"
// @Param        id          path  string                  true  "Document ID"
// @Param        request     body  dto.StateChangeRequest  true  "Target state"
// @Success      204  "No Content"
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/{collection}/state/{id} [patch]
func (h *CrudHandler) ChangeState(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.StateChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "stateTo is required"))
		return
	}

	if err := h.crudUC.ChangeState(ctx, c.Param("collection"), c.Param("id"), req.StateTo, middleware.GetAccessControl(c)); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Delete godoc
// @Summary      Delete a document
// @Tags         crud
// @Produce      json
// @Param        collection  path  string  true  "Collection endpoint name"
// @Param        id          path  string  true  "Document ID"
// @Success      204  "No Content"
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/{collection}/{id} [delete]
func (h *CrudHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	params, err := parseListParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.crudUC.Delete(ctx, c.Param("collection"), c.Param("id"), params, middleware.GetAccessControl(c)); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
