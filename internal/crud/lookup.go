package crud

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mia-platform/crud-service-sub002/internal/domain/definition"
)

// 조회 참조 치환이 적용되는 업데이트 명령 컨테이너들
var lookupCommandContainers = []string{"$set", "$unset", "$push", "$pull", "$addToSet"}

// RewriteLookupReferences는 뷰 쓰기 본문의 {value, label} 형태 조회 참조를
// 하위 외래키 필드로 제자리에서 치환합니다. 본문은 단일 객체이거나 벌크
// 작업을 위한 객체 배열일 수 있으며, 치환은 본문 최상위와 각 업데이트 명령
// 컨테이너 내부 모두에 적용됩니다. 키는 as에서 localField로 바뀝니다.
func RewriteLookupReferences(lookups []definition.Lookup, body interface{}) {
	switch b := body.(type) {
	case map[string]interface{}:
		rewriteLookupBody(lookups, b)
	case []interface{}:
		for _, item := range b {
			if doc, ok := item.(map[string]interface{}); ok {
				rewriteLookupBody(lookups, doc)
			}
		}
	case []map[string]interface{}:
		for _, doc := range b {
			rewriteLookupBody(lookups, doc)
		}
	}
}

func rewriteLookupBody(lookups []definition.Lookup, body map[string]interface{}) {
	for _, lookup := range lookups {
		rewriteLookupField(lookup, body)
		for _, container := range lookupCommandContainers {
			if commands, ok := body[container].(map[string]interface{}); ok {
				rewriteLookupField(lookup, commands)
			}
		}
	}
}

func rewriteLookupField(lookup definition.Lookup, doc map[string]interface{}) {
	value, present := doc[lookup.As]
	if !present {
		return
	}

	switch ref := value.(type) {
	case map[string]interface{}:
		doc[lookup.LocalField] = lookupIdentifier(ref["value"])
	case []interface{}:
		// 1:N 관계: falsy value 항목은 조용히 제거합니다
		ids := make([]interface{}, 0, len(ref))
		for _, item := range ref {
			entry, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if isFalsy(entry["value"]) {
				continue
			}
			ids = append(ids, lookupIdentifier(entry["value"]))
		}
		doc[lookup.LocalField] = ids
	default:
		// {value, label} 형태가 아니어도 키는 항상 localField로 옮깁니다.
		// $unset의 불리언 값이나 스칼라 할당이 여기에 해당합니다.
		doc[lookup.LocalField] = value
	}

	if lookup.As != lookup.LocalField {
		delete(doc, lookup.As)
	}
}

// lookupIdentifier는 조회 참조의 value를 외래키 표현으로 변환합니다.
// 유효한 ObjectId 16진수 문자열은 ObjectId로 변환됩니다.
func lookupIdentifier(value interface{}) interface{} {
	if hex, ok := value.(string); ok {
		if oid, err := primitive.ObjectIDFromHex(hex); err == nil {
			return oid
		}
	}
	return value
}

func isFalsy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
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
