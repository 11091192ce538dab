package definition

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"

	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// Registry는 엔드포인트 식별자로 조회 가능한 불변 컬렉션 정의 테이블입니다.
// 시작 시 한 번 구축되며 이후 잠금 없이 공유됩니다.
type Registry struct {
	collections map[string]*Collection
	validators  map[string]*gojsonschema.Schema
}

// NewRegistry는 빈 레지스트리를 생성합니다
func NewRegistry() *Registry {
	return &Registry{
		collections: make(map[string]*Collection),
		validators:  make(map[string]*gojsonschema.Schema),
	}
}

// Load는 정의 폴더의 모든 JSON 파일을 읽어 레지스트리를 구축합니다
func Load(ctx context.Context, folder string) (*Registry, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidDefinition, "failed to read definitions folder")
	}

	r := NewRegistry()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(folder, entry.Name()))
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidDefinition, "failed to read definition file")
		}

		var coll Collection
		if err := json.Unmarshal(raw, &coll); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidDefinition, "malformed definition file "+entry.Name())
		}
		if err := r.Register(&coll); err != nil {
			return nil, err
		}

		logger.Info(ctx, "collection definition loaded",
			logger.Collection(coll.Name),
			logger.Endpoint(coll.EndpointName()),
			logger.Field("view", coll.IsView()),
		)
	}

	if err := r.validateViews(); err != nil {
		return nil, err
	}

	return r, nil
}

// Register는 정의를 검증하고 레지스트리에 추가합니다
func (r *Registry) Register(coll *Collection) error {
	if err := coll.Validate(); err != nil {
		return err
	}
	if coll.DefaultState == "" {
		coll.DefaultState = StateDraft
	}

	endpoint := coll.EndpointName()
	if _, exists := r.collections[endpoint]; exists {
		return apperrors.Newf(apperrors.ErrCodeInvalidDefinition, "duplicate endpoint %q", endpoint)
	}
	r.collections[endpoint] = coll

	if schema := r.buildValidationSchema(coll); schema != nil {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidDefinition, "failed to compile schema for "+coll.Name)
		}
		r.validators[endpoint] = compiled
	}
	return nil
}

// Get은 엔드포인트 식별자로 정의를 조회합니다
func (r *Registry) Get(endpoint string) (*Collection, error) {
	coll, ok := r.collections[endpoint]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeNotFound, "CRUD endpoint %q does not exist", endpoint)
	}
	return coll, nil
}

// Endpoints는 등록된 모든 엔드포인트 식별자를 반환합니다
func (r *Registry) Endpoints() []string {
	names := make([]string, 0, len(r.collections))
	for name := range r.collections {
		names = append(names, name)
	}
	return names
}

// ValidateBody는 쓰기 요청 본문을 컬렉션 스키마에 대해 검증합니다
func (r *Registry) ValidateBody(endpoint string, body map[string]interface{}) error {
	validator, ok := r.validators[endpoint]
	if !ok {
		return nil
	}

	result, err := validator.Validate(gojsonschema.NewGoLoader(body))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "schema validation failed")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return apperrors.New(apperrors.ErrCodeBadRequest, "body does not match collection schema").
			WithDetails(strings.Join(msgs, "; "))
	}
	return nil
}

// validateViews는 모든 뷰의 의존 컬렉션이 등록되어 있는지 확인합니다
func (r *Registry) validateViews() error {
	for endpoint, coll := range r.collections {
		if !coll.IsView() {
			continue
		}
		if _, ok := r.collections[coll.Source]; !ok {
			return apperrors.Newf(apperrors.ErrCodeInvalidDefinition,
				"view %q depends on unknown collection %q", endpoint, coll.Source)
		}
		for _, lk := range coll.Lookups {
			if lk.Dependency == "" {
				continue
			}
			if _, ok := r.collections[lk.Dependency]; !ok {
				return apperrors.Newf(apperrors.ErrCodeInvalidDefinition,
					"view %q lookup %q depends on unknown collection %q", endpoint, lk.As, lk.Dependency)
			}
		}
	}
	return nil
}

// buildValidationSchema는 쓰기 본문 검증용 JSON Schema를 구성합니다.
// schema 형태는 그대로 사용하고, 레거시 fields 배열은 최소한의 스키마로
// 변환합니다. 예약 필드와 ObjectId/Date 문자열 표현은 느슨하게 허용합니다.
func (r *Registry) buildValidationSchema(coll *Collection) map[string]interface{} {
	if coll.Schema != nil {
		raw, err := json.Marshal(coll.Schema)
		if err != nil {
			return nil
		}
		var out map[string]interface{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil
		}
		stripSidecar(out)
		out["additionalProperties"] = true
		return out
	}

	if len(coll.Fields) == 0 {
		return nil
	}

	properties := make(map[string]interface{}, len(coll.Fields))
	required := []string{}
	for _, f := range coll.Fields {
		if _, reserved := reservedFieldTypes[f.Name]; reserved {
			continue
		}
		properties[f.Name] = schemaForField(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}

	schema := map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func schemaForField(f Field) map[string]interface{} {
	switch f.Type {
	case TypeNumber:
		return map[string]interface{}{"type": "number"}
	case TypeBoolean:
		return map[string]interface{}{"type": "boolean"}
	case TypeArray:
		return map[string]interface{}{"type": "array"}
	case TypeRawObject, TypeGeoPoint:
		return map[string]interface{}{"type": "object"}
	default:
		// string, ObjectId hex, 날짜 문자열
		out := map[string]interface{}{"type": "string"}
		if f.Pattern != "" {
			out["pattern"] = f.Pattern
		}
		if len(f.Enum) > 0 {
			out["enum"] = f.Enum
		}
		return out
	}
}

// stripSidecar는 __mia_configuration 블록을 검증 스키마에서 제거합니다
func stripSidecar(node map[string]interface{}) {
	delete(node, "__mia_configuration")
	for _, v := range node {
		switch child := v.(type) {
		case map[string]interface{}:
			stripSidecar(child)
		case []interface{}:
			for _, item := range child {
				if m, ok := item.(map[string]interface{}); ok {
					stripSidecar(m)
				}
			}
		}
	}
}
