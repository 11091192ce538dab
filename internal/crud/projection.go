package crud

import (
	"context"
	"strings"

	json "github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"

	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// allowedRawOperators는 raw projection에서 허용되는 집계 연산자 사전입니다.
// 이 사전에 없는 연산자는 거부됩니다.
var allowedRawOperators = map[string]bool{
	"$eq":           true,
	"$ne":           true,
	"$gt":           true,
	"$gte":          true,
	"$lt":           true,
	"$lte":          true,
	"$and":          true,
	"$or":           true,
	"$not":          true,
	"$in":           true,
	"$cond":         true,
	"$switch":       true,
	"$ifNull":       true,
	"$concat":       true,
	"$toString":     true,
	"$toInt":        true,
	"$toBool":       true,
	"$dateToString": true,
	"$size":         true,
	"$slice":        true,
	"$filter":       true,
	"$map":          true,
	"$reduce":       true,
	"$arrayElemAt":  true,
	"$first":        true,
	"$literal":      true,
}

// ResolveProjection은 클라이언트 프로젝션과 서버측 ACL 열 허용 목록으로부터
// 데이터베이스 프로젝션 문서를 구성합니다.
//
// simple(쉼표 목록)과 raw(JSON) 프로젝션은 상호 배타적입니다. raw
// 프로젝션은 ACL 허용 목록 너머로 접근을 넓힐 수 없습니다. 빈 필드
// 목록은 {_id: 1}이 됩니다. 저장 계층은 빈 프로젝션을 "모든 필드"로
// 해석하기 때문입니다.
func ResolveProjection(ctx context.Context, clientProjection string, aclColumns []string, allFieldNames []string, rawProjection string) (bson.M, error) {
	if clientProjection != "" && rawProjection != "" {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, "use of both raw and simple projection is not allowed")
	}

	if rawProjection != "" {
		return resolveRawProjection(ctx, rawProjection, aclColumns)
	}

	var fields []string
	if clientProjection != "" {
		for _, field := range strings.Split(clientProjection, ",") {
			field = strings.TrimSpace(field)
			if field != "" {
				fields = append(fields, field)
			}
		}
	} else {
		fields = allFieldNames
	}

	// ACL 허용 목록이 있으면 그것이 상한입니다
	if len(aclColumns) > 0 {
		allowed := columnSet(aclColumns)
		filtered := make([]string, 0, len(fields))
		for _, field := range fields {
			if allowed[field] {
				filtered = append(filtered, field)
			}
		}
		fields = filtered
	}

	if len(fields) == 0 {
		return bson.M{"_id": 1}, nil
	}

	projection := make(bson.M, len(fields))
	for _, field := range fields {
		projection[field] = 1
	}
	return projection, nil
}

// resolveRawProjection은 raw projection JSON을 파싱하고 ACL 우회를 차단합니다
func resolveRawProjection(ctx context.Context, rawProjection string, aclColumns []string) (bson.M, error) {
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(rawProjection), &parsed); err != nil {
		logger.Debug(ctx, "malformed raw projection", logger.Field("raw_projection", rawProjection))
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid raw projection JSON")
	}

	allowed := columnSet(aclColumns)
	projection := make(bson.M, len(parsed))

	for field, value := range parsed {
		if len(allowed) > 0 && field != "_id" && !allowed[field] {
			return nil, apperrors.Newf(apperrors.ErrCodeBadRequest,
				"raw projection references unallowed field %s", field)
		}

		if isExclusion(value) {
			// ACL이 부여한 필드의 명시적 제외는 덮어쓰기 시도로 취급합니다
			if len(allowed) > 0 && allowed[field] {
				return nil, apperrors.Newf(apperrors.ErrCodeBadRequest,
					"raw projection cannot override ACL-granted field %s", field)
			}
			projection[field] = 0
			continue
		}

		if err := validateRawExpression(value, allowed); err != nil {
			return nil, err
		}
		projection[field] = value
	}

	if len(projection) == 0 {
		return bson.M{"_id": 1}, nil
	}
	return projection, nil
}

// validateRawExpression은 raw projection 하위 표현식을 재귀적으로 검증합니다.
// 사전에 없는 연산자와, ACL 허용 목록 밖의 필드를 참조하는 "$field" 경로를
// 거부합니다.
func validateRawExpression(value interface{}, allowed map[string]bool) error {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, sub := range v {
			if strings.HasPrefix(key, "$") && !allowedRawOperators[key] {
				return apperrors.Newf(apperrors.ErrCodeBadRequest,
					"raw projection uses unallowed operator %s", key)
			}
			if err := validateRawExpression(sub, allowed); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, item := range v {
			if err := validateRawExpression(item, allowed); err != nil {
				return err
			}
		}
	case string:
		if strings.HasPrefix(v, "$") && !strings.HasPrefix(v, "$$") {
			field := rootSegment(strings.TrimPrefix(v, "$"))
			if len(allowed) > 0 && field != "_id" && !allowed[field] {
				return apperrors.Newf(apperrors.ErrCodeBadRequest,
					"raw projection references unallowed field %s", field)
			}
		}
	}
	return nil
}

func isExclusion(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return !v
	case float64:
		return v == 0
	case int:
		return v == 0
	default:
		return false
	}
}

func columnSet(columns []string) map[string]bool {
	set := make(map[string]bool, len(columns))
	for _, column := range columns {
		set[column] = true
	}
	return set
}
