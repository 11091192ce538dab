package crud

import (
	"sort"

	json "github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"

	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
)

// ResolveQuery는 클라이언트 질의 문자열, 추가 동등 비교 파라미터, 신뢰된
// ACL 행 필터로부터 데이터베이스 필터 표현식을 구성합니다.
//
// ACL 행 필터는 상위 인가 계층에서만 주입되며 클라이언트가 덮어쓸 수
// 없습니다. 최종 $and 목록이 비어 있으면 {}를 반환합니다. 하위 집계
// 단계는 빈 필터가 정확히 {}라고 가정합니다.
func ResolveQuery(caster FieldCaster, clientQuery string, aclRows []bson.M, otherParams map[string]string, isTextSearch bool) (bson.M, error) {
	clauses := make([]bson.M, 0, 2+len(otherParams))

	if clientQuery != "" {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(clientQuery), &parsed); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid query JSON")
		}
		clauses = append(clauses, bson.M(parsed))
	}

	// 예약되지 않은 쿼리스트링 파라미터는 암묵적 동등 비교 필터입니다.
	// 키를 정렬해 동일 입력이 구조적으로 동일한 결과를 내게 합니다.
	keys := make([]string, 0, len(otherParams))
	for key := range otherParams {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		clauses = append(clauses, bson.M{key: otherParams[key]})
	}

	switch len(aclRows) {
	case 0:
	case 1:
		clauses = append(clauses, aclRows[0])
	default:
		aclList := make([]bson.M, len(aclRows))
		copy(aclList, aclRows)
		clauses = append(clauses, bson.M{"$and": aclList})
	}

	if len(clauses) == 0 {
		return bson.M{}, nil
	}

	query := bson.M{"$and": clauses}
	if isTextSearch {
		if err := caster.CastTextSearchQuery(query); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid query value")
		}
	} else {
		if err := caster.CastQuery(query); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid query value")
		}
	}

	return query, nil
}
