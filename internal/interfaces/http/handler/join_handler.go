package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mia-platform/crud-service-sub002/internal/join"
	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
	"github.com/mia-platform/crud-service-sub002/internal/stream"
)

// JoinHandler는 두 컬렉션 사이의 조인 집계 HTTP 핸들러입니다
type JoinHandler struct {
	planner *join.Planner
}

// NewJoinHandler는 새로운 JoinHandler를 생성합니다
func NewJoinHandler(planner *join.Planner) *JoinHandler {
	return &JoinHandler{planner: planner}
}

func (h *JoinHandler) bindSpecification(c *gin.Context) (join.Specification, bool) {
	var spec join.Specification
	if err := c.ShouldBindJSON(&spec); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid join specification"))
		return spec, false
	}

	spec.From = c.Param("from")
	spec.To = c.Param("to")

	if spec.AsField == "" || spec.LocalField == "" || spec.ForeignField == "" {
		respondError(c, apperrors.New(apperrors.ErrCodeBadRequest,
			"asField, localField and foreignField are required"))
		return spec, false
	}
	return spec, true
}

// OneToOne godoc
// @Summary      Join two collections one-to-one
// @Description  Embed (or merge) the single matching document of the target collection into each source document
// @Tags         join
// @Accept       json
// @Produce      json
// @Param        from     path  string              true  "Source collection endpoint name"
// @Param        to       path  string              true  "Target collection endpoint name"
// @Param        request  body  join.Specification  true  "Join specification"
// @Success      200  {array}   map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /join/one-to-one/{from}/{to} [post]
func (h *JoinHandler) OneToOne(c *gin.Context) {
	spec, ok := h.bindSpecification(c)
	if !ok {
		return
	}
	h.respondAll(c, spec, h.planner.JoinOneToOne)
}

// OneToOneExport는 일대일 조인 결과를 NDJSON으로 스트리밍합니다
func (h *JoinHandler) OneToOneExport(c *gin.Context) {
	spec, ok := h.bindSpecification(c)
	if !ok {
		return
	}
	h.respondStream(c, spec, h.planner.JoinOneToOne)
}

// OneToManyExport는 일대다 조인 결과를 NDJSON으로 스트리밍합니다
func (h *JoinHandler) OneToManyExport(c *gin.Context) {
	spec, ok := h.bindSpecification(c)
	if !ok {
		return
	}
	h.respondStream(c, spec, h.planner.JoinOneToMany)
}

// ManyToManyExport는 다대다 조인 결과를 NDJSON으로 스트리밍합니다
func (h *JoinHandler) ManyToManyExport(c *gin.Context) {
	spec, ok := h.bindSpecification(c)
	if !ok {
		return
	}
	h.respondStream(c, spec, h.planner.JoinManyToMany)
}

type joinRunner func(ctx context.Context, spec join.Specification) (*join.Cursor, error)

func (h *JoinHandler) respondAll(c *gin.Context, spec join.Specification, run joinRunner) {
	ctx := c.Request.Context()

	cursor, err := run(ctx, spec)
	if err != nil {
		respondError(c, err)
		return
	}
	defer cursor.Close(ctx)

	results := make([]map[string]interface{}, 0)
	if err := cursor.All(ctx, &results); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *JoinHandler) respondStream(c *gin.Context, spec join.Specification, run joinRunner) {
	ctx := c.Request.Context()

	cursor, err := run(ctx, spec)
	if err != nil {
		respondError(c, err)
		return
	}
	defer cursor.Close(ctx)

	stringifier := stream.GetStringifier(stream.MimeNDJSON, stream.Options{}, c.Writer)

	c.Header("Content-Type", stream.MimeNDJSON)
	c.Status(http.StatusOK)

	written := 0
	for cursor.Next(ctx) {
		var record map[string]interface{}
		if err := cursor.Decode(&record); err != nil {
			logger.Error(ctx, "failed to decode join record", zap.Error(err))
			return
		}
		if err := stringifier.Write(record); err != nil {
			logger.Warn(ctx, "join export stream interrupted",
				logger.Count(written),
				zap.Error(err),
			)
			return
		}
		written++
	}

	if err := cursor.Err(); err != nil {
		logger.Error(ctx, "join cursor error", zap.Error(err))
	}
}
