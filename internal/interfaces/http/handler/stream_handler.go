package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mia-platform/crud-service-sub002/internal/interfaces/http/middleware"
	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/metrics"
	"github.com/mia-platform/crud-service-sub002/internal/stream"
)

// Export godoc
// @Summary      Export documents as a stream
// @Description  Stream matching documents in the format requested by the Accept header (NDJSON, JSON array or CSV)
// @Tags         crud
// @Produce      json
// @Param        collection  path  string  true  "Collection endpoint name"
// @Success      200  {string}  string  "record stream"
// @Failure      415  {object}  ErrorResponse
// @Router       /v1/{collection}/export [get]
func (h *CrudHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()
	endpoint := c.Param("collection")

	mimeType := c.GetHeader("Accept")
	if mimeType == "" || mimeType == "*/*" {
		mimeType = stream.MimeNDJSON
	}

	stringifier := stream.GetStringifier(mimeType, stream.Options{}, c.Writer)
	if stringifier == nil {
		respondError(c, apperrors.Newf(apperrors.ErrCodeUnsupportedMediaType,
			"unsupported export media type %q", mimeType))
		return
	}

	params, err := parseListParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	cursor, coll, err := h.crudUC.ExportStream(ctx, endpoint, params, middleware.GetAccessControl(c))
	if err != nil {
		respondError(c, err)
		return
	}
	defer cursor.Close(ctx)

	c.Header("Content-Type", mimeType)
	c.Status(http.StatusOK)

	exported := 0
	for cursor.Next(ctx) {
		var record map[string]interface{}
		if err := cursor.Decode(&record); err != nil {
			logger.Error(ctx, "failed to decode export record",
				logger.Collection(endpoint),
				zap.Error(err),
			)
			return
		}
		if err := h.crudUC.DecryptRecord(ctx, coll, record); err != nil {
			logger.Error(ctx, "failed to decrypt export record",
				logger.Collection(endpoint),
				zap.Error(err),
			)
			return
		}
		if err := stringifier.Write(record); err != nil {
			// 클라이언트가 연결을 끊은 경우가 대부분입니다
			logger.Warn(ctx, "export stream interrupted",
				logger.Collection(endpoint),
				logger.Count(exported),
				zap.Error(err),
			)
			return
		}
		exported++
	}

	if err := cursor.Err(); err != nil {
		logger.Error(ctx, "export cursor error",
			logger.Collection(endpoint),
			zap.Error(err),
		)
		return
	}
	if err := stringifier.Close(); err != nil {
		logger.Warn(ctx, "failed to finalize export stream", zap.Error(err))
		return
	}

	metrics.GetMetrics().RecordExportedRecords(endpoint, exported)
}

// Import godoc
// @Summary      Import documents from a stream
// @Description  Ingest a record stream (NDJSON, JSON array or CSV) in batches
// @Tags         crud
// @Accept       json
// @Produce      json
// @Param        collection  path  string  true  "Collection endpoint name"
// @Success      200  {object}  dto.ImportResult
// @Failure      400  {object}  ErrorResponse
// @Failure      415  {object}  ErrorResponse
// @Router       /v1/{collection}/import [post]
func (h *CrudHandler) Import(c *gin.Context) {
	ctx := c.Request.Context()
	endpoint := c.Param("collection")

	contentType := c.ContentType()
	parser := stream.GetParser(contentType, stream.Options{
		Delimiter: c.Query("delimiter"),
	}, c.Request.Body)
	if parser == nil {
		respondError(c, apperrors.Newf(apperrors.ErrCodeUnsupportedMediaType,
			"unsupported import media type %q", contentType))
		return
	}

	result, err := h.crudUC.Import(ctx, endpoint, parser, middleware.GetAccessControl(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
