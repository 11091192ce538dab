package crud

import (
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mia-platform/crud-service-sub002/internal/domain/definition"
	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
)

// FieldCaster는 질의와 명령의 리프 값을 선언된 필드 타입으로 강제 변환합니다
type FieldCaster interface {
	// CastQuery는 질의 문서의 리프 값을 제자리에서 변환합니다
	CastQuery(query bson.M) error
	// CastTextSearchQuery는 $text 연산자 형태를 허용하는 변환 경로입니다
	CastTextSearchQuery(query bson.M) error
	// CastCommands는 업데이트 명령의 값을 변환하고 편집 가능한 필드로 제한합니다
	CastCommands(commands bson.M, editableFields []string) error
}

// 논리 연산자: 하위 절 목록을 재귀적으로 처리합니다
var logicalOperators = map[string]bool{
	"$and": true,
	"$or":  true,
	"$nor": true,
}

// 비교 연산자: 단일 값을 필드 타입으로 변환합니다
var comparisonOperators = map[string]bool{
	"$eq":  true,
	"$ne":  true,
	"$gt":  true,
	"$gte": true,
	"$lt":  true,
	"$lte": true,
}

// 멤버십 연산자: 값 목록의 각 원소를 변환합니다
var membershipOperators = map[string]bool{
	"$in":  true,
	"$nin": true,
	"$all": true,
}

// 업데이트 명령 컨테이너들
var updateOperators = map[string]bool{
	"$set":         true,
	"$unset":       true,
	"$inc":         true,
	"$mul":         true,
	"$currentDate": true,
	"$push":        true,
	"$pull":        true,
	"$addToSet":    true,
}

// DefaultCaster는 컬렉션 정의의 필드 타입에 기반한 기본 캐스터입니다
type DefaultCaster struct {
	types map[string]definition.FieldType
}

// NewCaster는 컬렉션 정의로부터 캐스터를 생성합니다
func NewCaster(coll *definition.Collection) (*DefaultCaster, error) {
	types, err := coll.FieldTypes()
	if err != nil {
		return nil, err
	}
	return &DefaultCaster{types: types}, nil
}

// NewCasterFromTypes는 필드 타입 맵으로부터 캐스터를 생성합니다
func NewCasterFromTypes(types map[string]definition.FieldType) *DefaultCaster {
	return &DefaultCaster{types: types}
}

// CastQuery는 질의 문서의 모든 리프 값을 선언된 필드 타입으로 변환합니다
func (c *DefaultCaster) CastQuery(query bson.M) error {
	return c.castClause(query, false)
}

// CastTextSearchQuery는 $text 연산자를 통과시키는 것 외에는 CastQuery와 같습니다
func (c *DefaultCaster) CastTextSearchQuery(query bson.M) error {
	return c.castClause(query, true)
}

func (c *DefaultCaster) castClause(clause bson.M, allowText bool) error {
	for key, value := range clause {
		switch {
		case logicalOperators[key]:
			subs, err := asClauseList(value)
			if err != nil {
				return castError("%s expects a list of clauses", key)
			}
			for _, sub := range subs {
				if err := c.castClause(sub, allowText); err != nil {
					return err
				}
			}
		case key == "$text":
			if !allowText {
				return castError("operator $text is not allowed here")
			}
			// $text 형태는 그대로 둡니다
		case key == "$expr" || key == "$comment":
			// 변환 대상 아님
		default:
			casted, err := c.castFieldCondition(key, value)
			if err != nil {
				return err
			}
			clause[key] = casted
		}
	}
	return nil
}

// castFieldCondition은 필드에 대한 조건 값(스칼라 또는 연산자 문서)을 변환합니다
func (c *DefaultCaster) castFieldCondition(field string, value interface{}) (interface{}, error) {
	t, known := c.fieldType(field)
	if !known {
		// 선언되지 않은 필드는 RawObject 하위 경로로 취급하고 그대로 둡니다
		return value, nil
	}

	ops, isOperatorDoc := value.(map[string]interface{})
	if !isOperatorDoc {
		if m, ok := value.(bson.M); ok {
			ops, isOperatorDoc = m, true
		}
	}
	if !isOperatorDoc {
		return c.castValue(t, value)
	}

	// {field: {"$op": ...}} 형태가 아닌 평범한 객체 값일 수 있습니다
	if !hasOperatorKeys(ops) {
		return c.castValue(t, value)
	}

	for op, opValue := range ops {
		switch {
		case comparisonOperators[op]:
			casted, err := c.castValue(t, opValue)
			if err != nil {
				return nil, err
			}
			ops[op] = casted
		case membershipOperators[op]:
			list, ok := asList(opValue)
			if !ok {
				return nil, castError("operator %s on field %s expects a list", op, field)
			}
			for i, item := range list {
				casted, err := c.castValue(t, item)
				if err != nil {
					return nil, err
				}
				list[i] = casted
			}
			ops[op] = list
		case op == "$exists":
			if _, ok := opValue.(bool); !ok {
				return nil, castError("operator $exists on field %s expects a boolean", field)
			}
		case op == "$regex" || op == "$options":
			if t != definition.TypeString {
				return nil, castError("operator %s is only allowed on string fields", op)
			}
		case op == "$size":
			if _, err := toNumber(opValue); err != nil {
				return nil, castError("operator $size on field %s expects a number", field)
			}
		case op == "$elemMatch":
			sub, ok := toClause(opValue)
			if !ok {
				return nil, castError("operator $elemMatch on field %s expects an object", field)
			}
			if err := c.castClause(sub, false); err != nil {
				return nil, err
			}
		case op == "$not":
			sub, ok := toClause(opValue)
			if !ok {
				return nil, castError("operator $not on field %s expects an object", field)
			}
			casted, err := c.castFieldCondition(field, map[string]interface{}(sub))
			if err != nil {
				return nil, err
			}
			ops[op] = casted
		case op == "$near" || op == "$nearSphere" || op == "$geoWithin":
			if t != definition.TypeGeoPoint {
				return nil, castError("operator %s is only allowed on GeoPoint fields", op)
			}
		default:
			return nil, castError("unsupported operator %s on field %s", op, field)
		}
	}
	return ops, nil
}

// CastCommands는 업데이트 명령 객체를 검증하고 값을 변환합니다
func (c *DefaultCaster) CastCommands(commands bson.M, editableFields []string) error {
	editable := make(map[string]bool, len(editableFields))
	for _, name := range editableFields {
		editable[name] = true
	}

	for op, value := range commands {
		if !updateOperators[op] {
			return castError("unsupported update operator %s", op)
		}
		fields, ok := toClause(value)
		if !ok {
			return castError("update operator %s expects an object", op)
		}

		for field, fieldValue := range fields {
			root := rootSegment(field)
			if len(editable) > 0 && !editable[root] {
				return castError("field %s is not editable", field)
			}

			switch op {
			case "$unset", "$currentDate":
				// 필드 존재 검사만 수행합니다
			case "$inc", "$mul":
				n, err := toNumber(fieldValue)
				if err != nil {
					return castError("update operator %s on field %s expects a number", op, field)
				}
				fields[field] = n
			default:
				t, known := c.fieldType(field)
				if !known {
					continue
				}
				castTarget := t
				if op == "$push" || op == "$pull" || op == "$addToSet" {
					// 배열 연산자의 값은 원소 단위입니다
					if t == definition.TypeArray {
						castTarget = definition.TypeRawObject
					}
				}
				casted, err := c.castValue(castTarget, fieldValue)
				if err != nil {
					return err
				}
				fields[field] = casted
			}
		}
	}
	return nil
}

// CastDocument는 삽입 본문의 선언된 필드 값을 변환합니다
func (c *DefaultCaster) CastDocument(doc map[string]interface{}) error {
	for field, value := range doc {
		t, known := c.fieldType(field)
		if !known {
			continue
		}
		casted, err := c.castValue(t, value)
		if err != nil {
			return err
		}
		doc[field] = casted
	}
	return nil
}

// castValue는 하나의 리프 값을 의미론적 타입에 맞게 변환합니다
func (c *DefaultCaster) castValue(t definition.FieldType, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch t {
	case definition.TypeObjectID:
		switch v := value.(type) {
		case primitive.ObjectID:
			return v, nil
		case string:
			oid, err := primitive.ObjectIDFromHex(v)
			if err != nil {
				return nil, castError("value %q is not a valid ObjectId", v)
			}
			return oid, nil
		default:
			return nil, castError("value of type %T is not a valid ObjectId", value)
		}

	case definition.TypeDate:
		switch v := value.(type) {
		case time.Time, primitive.DateTime:
			return v, nil
		case string:
			for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
				if parsed, err := time.Parse(layout, v); err == nil {
					return parsed, nil
				}
			}
			return nil, castError("value %q is not a valid date", v)
		case float64:
			return time.UnixMilli(int64(v)).UTC(), nil
		case int64:
			return time.UnixMilli(v).UTC(), nil
		default:
			return nil, castError("value of type %T is not a valid date", value)
		}

	case definition.TypeNumber:
		return toNumber(value)

	case definition.TypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, castError("value %q is not a valid boolean", v)
			}
			return b, nil
		default:
			return nil, castError("value of type %T is not a valid boolean", value)
		}

	case definition.TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, castError("value of type %T is not a valid string", value)
		}
		return s, nil

	case definition.TypeGeoPoint:
		return castGeoPoint(value)

	case definition.TypeArray, definition.TypeRawObject:
		return value, nil

	default:
		return nil, castError("unknown field type %q", string(t))
	}
}

func (c *DefaultCaster) fieldType(field string) (definition.FieldType, bool) {
	if t, ok := c.types[field]; ok {
		return t, true
	}
	// 점 경로는 루트 세그먼트의 타입으로 판별합니다
	root := rootSegment(field)
	if root == field {
		return "", false
	}
	t, ok := c.types[root]
	if !ok {
		return "", false
	}
	// 객체/배열 내부 경로의 타입은 선언에 없으므로 변환하지 않습니다
	if t == definition.TypeRawObject || t == definition.TypeArray || t == definition.TypeGeoPoint {
		return "", false
	}
	return t, true
}

// castGeoPoint는 [경도, 위도] 쌍 또는 GeoJSON Point를 허용합니다
func castGeoPoint(value interface{}) (interface{}, error) {
	if list, ok := asList(value); ok {
		if len(list) != 2 {
			return nil, castError("GeoPoint expects a [longitude, latitude] pair")
		}
		for i, coord := range list {
			n, err := toNumber(coord)
			if err != nil {
				return nil, castError("GeoPoint coordinate is not a number")
			}
			list[i] = n
		}
		return bson.M{"type": "Point", "coordinates": list}, nil
	}
	if m, ok := toClause(value); ok {
		if m["type"] == "Point" {
			return m, nil
		}
	}
	return nil, castError("value of type %T is not a valid GeoPoint", value)
}

func castError(format string, args ...interface{}) error {
	return apperrors.Newf(apperrors.ErrCodeCastError, format, args...)
}

func toNumber(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, castError("value %q is not a valid number", v)
		}
		return n, nil
	default:
		return 0, castError("value of type %T is not a valid number", value)
	}
}

func toClause(value interface{}) (bson.M, bool) {
	switch v := value.(type) {
	case bson.M:
		return v, true
	case map[string]interface{}:
		return bson.M(v), true
	default:
		return nil, false
	}
}

func asList(value interface{}) ([]interface{}, bool) {
	switch v := value.(type) {
	case []interface{}:
		return v, true
	case bson.A:
		return []interface{}(v), true
	case []bson.M:
		// 리졸버가 내부적으로 구성하는 절 목록 형태. 원소는 맵이므로
		// 변환 후에도 제자리 수정이 원본에 반영됩니다.
		out := make([]interface{}, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

func asClauseList(value interface{}) ([]bson.M, error) {
	list, ok := asList(value)
	if !ok {
		return nil, fmt.Errorf("not a list")
	}
	out := make([]bson.M, 0, len(list))
	for _, item := range list {
		clause, ok := toClause(item)
		if !ok {
			return nil, fmt.Errorf("not a clause")
		}
		out = append(out, clause)
	}
	return out, nil
}

func hasOperatorKeys(m map[string]interface{}) bool {
	for key := range m {
		if len(key) > 0 && key[0] == '$' {
			return true
		}
	}
	return false
}

func rootSegment(path string) string {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}
