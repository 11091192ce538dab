package definition

import (
	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
)

// FieldType은 필드의 의미론적 타입입니다
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeNumber    FieldType = "number"
	TypeBoolean   FieldType = "boolean"
	TypeObjectID  FieldType = "ObjectId"
	TypeDate      FieldType = "Date"
	TypeArray     FieldType = "Array"
	TypeRawObject FieldType = "RawObject"
	TypeGeoPoint  FieldType = "GeoPoint"
)

// typeCompatibility는 의미론적 타입이 조인 비교에 참여할 때 허용되는
// BSON 저장 타입 태그의 순서 있는 목록입니다
var typeCompatibility = map[FieldType][]string{
	TypeString:    {"string"},
	TypeNumber:    {"double", "int", "long", "decimal"},
	TypeObjectID:  {"objectId"},
	TypeBoolean:   {"bool"},
	TypeDate:      {"date"},
	TypeGeoPoint:  {"object"},
	TypeArray:     {"array"},
	TypeRawObject: {"object"},
}

// dateFormats는 Date로 분류되는 JSON Schema 문자열 format들입니다
var dateFormats = map[string]bool{
	"date-time": true,
	"date":      true,
	"time":      true,
}

// CompatibleBSONTypes는 의미론적 타입에 허용되는 BSON 저장 타입 태그를 반환합니다
func CompatibleBSONTypes(t FieldType) ([]string, error) {
	tags, ok := typeCompatibility[t]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeUnknownType, "unknown field type %q", string(t))
	}
	return tags, nil
}

// FieldTypeFromSchema는 JSON Schema 형태의 필드 기술자에서 의미론적 타입을 분류합니다.
// __mia_configuration의 특수 타입 마커가 JSON Schema의 type 키워드보다 우선합니다:
// format이 날짜 형식인 string은 Date로, ObjectId 마커를 가진 string은 ObjectId로
// 분류됩니다.
func FieldTypeFromSchema(prop SchemaProperty) (FieldType, error) {
	if prop.MiaConfiguration != nil && prop.MiaConfiguration.Type != "" {
		return checkKnown(prop.MiaConfiguration.Type)
	}

	switch prop.Type {
	case "string":
		if dateFormats[prop.Format] {
			return TypeDate, nil
		}
		return TypeString, nil
	case "number", "integer":
		return TypeNumber, nil
	case "boolean":
		return TypeBoolean, nil
	case "array":
		return TypeArray, nil
	case "object":
		return TypeRawObject, nil
	default:
		return "", apperrors.Newf(apperrors.ErrCodeUnknownType, "unknown field type %q", prop.Type)
	}
}

// checkKnown은 타입이 호환성 테이블에 존재하는지 확인합니다
func checkKnown(t FieldType) (FieldType, error) {
	if _, ok := typeCompatibility[t]; !ok {
		return "", apperrors.Newf(apperrors.ErrCodeUnknownType, "unknown field type %q", string(t))
	}
	return t, nil
}

// searchableEncryptionTypes는 결정적 암호화가 가능한 타입들입니다
var searchableEncryptionTypes = map[FieldType]bool{
	TypeString:   true,
	TypeNumber:   true,
	TypeDate:     true,
	TypeObjectID: true,
}

// SupportsSearchableEncryption은 타입이 검색 가능한 암호화를 지원하는지 반환합니다
func SupportsSearchableEncryption(t FieldType) bool {
	return searchableEncryptionTypes[t]
}
