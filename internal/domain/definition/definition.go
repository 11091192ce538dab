package definition

import (
	"strings"
	"time"

	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
)

// 예약된 필드 이름들. 모든 컬렉션에 암묵적으로 존재합니다.
const (
	IDField        = "_id"
	StateField     = "__STATE__"
	CreatorIDField = "creatorId"
	CreatedAtField = "createdAt"
	UpdaterIDField = "updaterId"
	UpdatedAtField = "updatedAt"
)

// 문서 라이프사이클 상태들
const (
	StatePublic  = "PUBLIC"
	StateDraft   = "DRAFT"
	StateTrash   = "TRASH"
	StateDeleted = "DELETED"
)

// reservedFieldTypes는 예약 필드의 암묵적 타입입니다
var reservedFieldTypes = map[string]FieldType{
	IDField:        TypeObjectID,
	StateField:     TypeString,
	CreatorIDField: TypeString,
	CreatedAtField: TypeDate,
	UpdaterIDField: TypeString,
	UpdatedAtField: TypeDate,
}

// stateTransitions는 허용된 상태 전이입니다
var stateTransitions = map[string][]string{
	StatePublic:  {StateDraft, StateTrash},
	StateDraft:   {StatePublic, StateTrash},
	StateTrash:   {StateDraft, StateDeleted},
	StateDeleted: {StateTrash},
}

// IsValidState는 상태 값이 유효한지 반환합니다
func IsValidState(s string) bool {
	_, ok := stateTransitions[s]
	return ok
}

// CanTransition은 상태 전이가 허용되는지 반환합니다
func CanTransition(from, to string) bool {
	for _, t := range stateTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Encryption은 필드 암호화 설정입니다
type Encryption struct {
	Enabled    bool `json:"enabled"`
	Searchable bool `json:"searchable"`
}

// Field는 컬렉션의 필드 정의입니다 (레거시 fields 배열 형태)
type Field struct {
	Name        string        `json:"name"`
	Type        FieldType     `json:"type"`
	Required    bool          `json:"required"`
	Nullable    bool          `json:"nullable"`
	Items       *Field        `json:"items,omitempty"`
	Schema      interface{}   `json:"schema,omitempty"`
	Encryption  *Encryption   `json:"encryption,omitempty"`
	Pattern     string        `json:"pattern,omitempty"`
	Enum        []interface{} `json:"enum,omitempty"`
	Description string        `json:"description,omitempty"`
}

// MiaConfiguration은 JSON Schema 필드 옆에 붙는 사이드카 설정입니다
type MiaConfiguration struct {
	Type       FieldType   `json:"type,omitempty"`
	Sensitive  int         `json:"sensitivityValue,omitempty"`
	Encryption *Encryption `json:"encryption,omitempty"`
}

// SchemaProperty는 JSON Schema 형태의 필드 기술자입니다
type SchemaProperty struct {
	Type             string                    `json:"type,omitempty"`
	Format           string                    `json:"format,omitempty"`
	Pattern          string                    `json:"pattern,omitempty"`
	Enum             []interface{}             `json:"enum,omitempty"`
	Description      string                    `json:"description,omitempty"`
	Items            *SchemaProperty           `json:"items,omitempty"`
	Properties       map[string]SchemaProperty `json:"properties,omitempty"`
	Required         []string                  `json:"required,omitempty"`
	MiaConfiguration *MiaConfiguration         `json:"__mia_configuration,omitempty"`
}

// Schema는 schema 형태의 컬렉션 정의입니다
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// Index는 저장소 레벨 인덱스 선언입니다
type Index struct {
	Name   string           `json:"name"`
	Unique bool             `json:"unique"`
	Fields []IndexFieldSpec `json:"fields"`
}

// IndexFieldSpec은 인덱스에 포함되는 필드와 정렬 방향입니다
type IndexFieldSpec struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Lookup은 뷰에 가상 필드로 삽입되는 조회 관계입니다
type Lookup struct {
	As           string `json:"as"`
	LocalField   string `json:"localField"`
	ForeignField string `json:"foreignField"`
	Dependency   string `json:"dependency,omitempty"`
	LabelField   string `json:"labelField,omitempty"`
	Many         bool   `json:"many,omitempty"`
}

// Collection은 하나의 논리적 리소스 정의입니다.
// 프로세스 시작 시 정의 폴더에서 한 번 읽어들이며 이후 불변입니다.
type Collection struct {
	Name             string   `json:"name"`
	EndpointBasePath string   `json:"endpointBasePath"`
	Fields           []Field  `json:"fields,omitempty"`
	Schema           *Schema  `json:"schema,omitempty"`
	DefaultState     string   `json:"defaultState,omitempty"`
	Indexes          []Index  `json:"indexes,omitempty"`
	Source           string   `json:"source,omitempty"`
	Lookups          []Lookup `json:"lookupsModels,omitempty"`
}

// EndpointName은 외부에 노출되는 컬렉션 식별자를 반환합니다.
// endpointBasePath의 앞뒤 슬래시를 제거하고 내부 슬래시를 -로 치환합니다.
func (c *Collection) EndpointName() string {
	name := strings.Trim(c.EndpointBasePath, "/")
	return strings.ReplaceAll(name, "/", "-")
}

// IsView는 이 정의가 다른 컬렉션에 저장을 위임하는 뷰인지 반환합니다
func (c *Collection) IsView() bool {
	return c.Source != ""
}

// FieldTypes는 필드 이름에서 의미론적 타입으로의 맵을 반환합니다.
// 레거시 fields 배열과 schema.properties 중 존재하는 쪽에서 유도하며
// 예약 필드의 암묵적 타입을 포함합니다.
func (c *Collection) FieldTypes() (map[string]FieldType, error) {
	types := make(map[string]FieldType, len(c.Fields)+len(reservedFieldTypes))
	for name, t := range reservedFieldTypes {
		types[name] = t
	}

	if c.Schema != nil {
		for name, prop := range c.Schema.Properties {
			if _, reserved := reservedFieldTypes[name]; reserved {
				continue
			}
			t, err := FieldTypeFromSchema(prop)
			if err != nil {
				return nil, err
			}
			types[name] = t
		}
		return types, nil
	}

	for _, f := range c.Fields {
		if _, reserved := reservedFieldTypes[f.Name]; reserved {
			continue
		}
		if _, err := CompatibleBSONTypes(f.Type); err != nil {
			return nil, err
		}
		types[f.Name] = f.Type
	}
	return types, nil
}

// FieldNames는 예약 필드를 포함한 모든 필드 이름을 반환합니다
func (c *Collection) FieldNames() []string {
	types, err := c.FieldTypes()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	return names
}

// EncryptedFields는 암호화가 설정된 필드 이름과 설정을 반환합니다
func (c *Collection) EncryptedFields() map[string]Encryption {
	out := make(map[string]Encryption)
	for _, f := range c.Fields {
		if f.Encryption != nil && f.Encryption.Enabled {
			out[f.Name] = *f.Encryption
		}
	}
	if c.Schema != nil {
		for name, prop := range c.Schema.Properties {
			mc := prop.MiaConfiguration
			if mc != nil && mc.Encryption != nil && mc.Encryption.Enabled {
				out[name] = *mc.Encryption
			}
		}
	}
	return out
}

// Validate는 정의 불변식을 검증합니다. 설정 결함은 요청 시점이 아니라
// 로드 시점에 실패해야 합니다.
func (c *Collection) Validate() error {
	if c.Name == "" {
		return apperrors.New(apperrors.ErrCodeInvalidDefinition, "collection name is required")
	}
	if c.EndpointBasePath == "" {
		return apperrors.Newf(apperrors.ErrCodeInvalidDefinition, "collection %q: endpointBasePath is required", c.Name)
	}
	if c.DefaultState != "" && !IsValidState(c.DefaultState) {
		return apperrors.Newf(apperrors.ErrCodeInvalidDefinition, "collection %q: invalid defaultState %q", c.Name, c.DefaultState)
	}

	seen := make(map[string]bool)
	for _, f := range c.Fields {
		if seen[f.Name] {
			return apperrors.Newf(apperrors.ErrCodeInvalidDefinition, "collection %q: duplicate field %q", c.Name, f.Name)
		}
		seen[f.Name] = true

		if reservedType, reserved := reservedFieldTypes[f.Name]; reserved {
			// 예약 필드는 일치하지 않는 의미로 재선언할 수 없습니다
			if f.Type != reservedType {
				return apperrors.Newf(apperrors.ErrCodeInvalidDefinition,
					"collection %q: reserved field %q redeclared with type %q", c.Name, f.Name, string(f.Type))
			}
			continue
		}

		if _, err := CompatibleBSONTypes(f.Type); err != nil {
			return err
		}
		if err := validateEncryption(c.Name, f.Name, f.Type, f.Encryption); err != nil {
			return err
		}
	}

	if c.Schema != nil {
		for name, prop := range c.Schema.Properties {
			t, err := FieldTypeFromSchema(prop)
			if err != nil {
				return err
			}
			if reservedType, reserved := reservedFieldTypes[name]; reserved && t != reservedType {
				return apperrors.Newf(apperrors.ErrCodeInvalidDefinition,
					"collection %q: reserved field %q redeclared with type %q", c.Name, name, string(t))
			}
			var enc *Encryption
			if prop.MiaConfiguration != nil {
				enc = prop.MiaConfiguration.Encryption
			}
			if err := validateEncryption(c.Name, name, t, enc); err != nil {
				return err
			}
		}
	}

	if c.IsView() {
		for _, lk := range c.Lookups {
			if lk.As == "" || lk.LocalField == "" || lk.ForeignField == "" {
				return apperrors.Newf(apperrors.ErrCodeInvalidDefinition,
					"view %q: lookup requires as, localField and foreignField", c.Name)
			}
		}
	}

	return nil
}

// validateEncryption은 검색 가능한 암호화가 결정적으로 암호화 가능한 타입에만
// 설정되었는지 검증합니다
func validateEncryption(collection, field string, t FieldType, enc *Encryption) error {
	if enc == nil || !enc.Searchable {
		return nil
	}
	if !SupportsSearchableEncryption(t) {
		return apperrors.Newf(apperrors.ErrCodeInvalidDefinition,
			"collection %q: field %q of type %q cannot be searchable-encrypted", collection, field, string(t))
	}
	return nil
}

// RequestContext는 하나의 인바운드 요청에 대한 감사 정보입니다.
// 요청 진입 시 생성되며 절대 영속화되지 않습니다.
type RequestContext struct {
	UserID string
	Now    time.Time
}
