package definition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/crud-service-sub002/internal/domain/definition"
	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
)

func TestStateMachine_AllowedTransitions(t *testing.T) {
	// Arrange
	allowed := map[string][]string{
		definition.StatePublic:  {definition.StateDraft, definition.StateTrash},
		definition.StateDraft:   {definition.StatePublic, definition.StateTrash},
		definition.StateTrash:   {definition.StateDraft, definition.StateDeleted},
		definition.StateDeleted: {definition.StateTrash},
	}
	states := []string{definition.StatePublic, definition.StateDraft, definition.StateTrash, definition.StateDeleted}

	// Act & Assert
	for from, targets := range allowed {
		expected := map[string]bool{}
		for _, to := range targets {
			expected[to] = true
		}
		for _, to := range states {
			assert.Equal(t, expected[to], definition.CanTransition(from, to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestStateMachine_SelfTransitionNotAllowed(t *testing.T) {
	assert.False(t, definition.CanTransition(definition.StatePublic, definition.StatePublic))
}

func TestIsValidState(t *testing.T) {
	assert.True(t, definition.IsValidState(definition.StatePublic))
	assert.True(t, definition.IsValidState(definition.StateDeleted))
	assert.False(t, definition.IsValidState("ARCHIVED"))
	assert.False(t, definition.IsValidState(""))
}

func TestEndpointName_StripsAndReplacesSlashes(t *testing.T) {
	coll := &definition.Collection{Name: "stats", EndpointBasePath: "/address/statistics/"}
	assert.Equal(t, "address-statistics", coll.EndpointName())

	coll = &definition.Collection{Name: "books", EndpointBasePath: "/books"}
	assert.Equal(t, "books", coll.EndpointName())
}

func TestFieldTypeFromSchema_Classification(t *testing.T) {
	cases := []struct {
		name     string
		prop     definition.SchemaProperty
		expected definition.FieldType
	}{
		{"plain string", definition.SchemaProperty{Type: "string"}, definition.TypeString},
		{"date-time string", definition.SchemaProperty{Type: "string", Format: "date-time"}, definition.TypeDate},
		{"date string", definition.SchemaProperty{Type: "string", Format: "date"}, definition.TypeDate},
		{"integer", definition.SchemaProperty{Type: "integer"}, definition.TypeNumber},
		{"number", definition.SchemaProperty{Type: "number"}, definition.TypeNumber},
		{"boolean", definition.SchemaProperty{Type: "boolean"}, definition.TypeBoolean},
		{"array", definition.SchemaProperty{Type: "array"}, definition.TypeArray},
		{"object", definition.SchemaProperty{Type: "object"}, definition.TypeRawObject},
		{
			"sidecar ObjectId overrides string",
			definition.SchemaProperty{Type: "string", MiaConfiguration: &definition.MiaConfiguration{Type: definition.TypeObjectID}},
			definition.TypeObjectID,
		},
		{
			"sidecar GeoPoint overrides object",
			definition.SchemaProperty{Type: "object", MiaConfiguration: &definition.MiaConfiguration{Type: definition.TypeGeoPoint}},
			definition.TypeGeoPoint,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := definition.FieldTypeFromSchema(tc.prop)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestFieldTypeFromSchema_UnknownType(t *testing.T) {
	_, err := definition.FieldTypeFromSchema(definition.SchemaProperty{Type: "tuple"})
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnknownType, apperrors.GetCode(err))
}

func TestCompatibleBSONTypes(t *testing.T) {
	tags, err := definition.CompatibleBSONTypes(definition.TypeNumber)
	require.NoError(t, err)
	assert.Equal(t, []string{"double", "int", "long", "decimal"}, tags)

	tags, err = definition.CompatibleBSONTypes(definition.TypeObjectID)
	require.NoError(t, err)
	assert.Equal(t, []string{"objectId"}, tags)

	_, err = definition.CompatibleBSONTypes("Matrix")
	assert.Equal(t, apperrors.ErrCodeUnknownType, apperrors.GetCode(err))
}

func TestFieldTypes_IncludesReservedFields(t *testing.T) {
	// Arrange
	coll := &definition.Collection{
		Name:             "books",
		EndpointBasePath: "/books",
		Fields: []definition.Field{
			{Name: "title", Type: definition.TypeString},
			{Name: "pages", Type: definition.TypeNumber},
		},
	}

	// Act
	types, err := coll.FieldTypes()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, definition.TypeString, types["title"])
	assert.Equal(t, definition.TypeNumber, types["pages"])
	assert.Equal(t, definition.TypeObjectID, types["_id"])
	assert.Equal(t, definition.TypeString, types["__STATE__"])
	assert.Equal(t, definition.TypeDate, types["createdAt"])
	assert.Equal(t, definition.TypeString, types["updaterId"])
}

func TestFieldTypes_SchemaForm(t *testing.T) {
	coll := &definition.Collection{
		Name:             "people",
		EndpointBasePath: "/people",
		Schema: &definition.Schema{
			Type: "object",
			Properties: map[string]definition.SchemaProperty{
				"name":      {Type: "string"},
				"birthDate": {Type: "string", Format: "date-time"},
			},
		},
	}

	types, err := coll.FieldTypes()
	require.NoError(t, err)
	assert.Equal(t, definition.TypeString, types["name"])
	assert.Equal(t, definition.TypeDate, types["birthDate"])
	assert.Equal(t, definition.TypeObjectID, types["_id"])
}

func TestValidate_ReservedFieldRedeclaration(t *testing.T) {
	// 예약 필드를 다른 타입으로 재선언하면 로드 시점에 실패해야 합니다
	coll := &definition.Collection{
		Name:             "books",
		EndpointBasePath: "/books",
		Fields: []definition.Field{
			{Name: "createdAt", Type: definition.TypeString},
		},
	}

	err := coll.Validate()
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidDefinition, apperrors.GetCode(err))
}

func TestValidate_ReservedFieldMatchingTypeAllowed(t *testing.T) {
	coll := &definition.Collection{
		Name:             "books",
		EndpointBasePath: "/books",
		Fields: []definition.Field{
			{Name: "createdAt", Type: definition.TypeDate},
		},
	}

	assert.NoError(t, coll.Validate())
}

func TestValidate_DuplicateField(t *testing.T) {
	coll := &definition.Collection{
		Name:             "books",
		EndpointBasePath: "/books",
		Fields: []definition.Field{
			{Name: "title", Type: definition.TypeString},
			{Name: "title", Type: definition.TypeString},
		},
	}

	err := coll.Validate()
	assert.Equal(t, apperrors.ErrCodeInvalidDefinition, apperrors.GetCode(err))
}

func TestValidate_SearchableEncryptionOnRawObject(t *testing.T) {
	coll := &definition.Collection{
		Name:             "books",
		EndpointBasePath: "/books",
		Fields: []definition.Field{
			{
				Name:       "metadata",
				Type:       definition.TypeRawObject,
				Encryption: &definition.Encryption{Enabled: true, Searchable: true},
			},
		},
	}

	err := coll.Validate()
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidDefinition, apperrors.GetCode(err))
}

func TestValidate_SearchableEncryptionOnString(t *testing.T) {
	coll := &definition.Collection{
		Name:             "books",
		EndpointBasePath: "/books",
		Fields: []definition.Field{
			{
				Name:       "tax_code",
				Type:       definition.TypeString,
				Encryption: &definition.Encryption{Enabled: true, Searchable: true},
			},
		},
	}

	assert.NoError(t, coll.Validate())
}

func TestValidate_InvalidDefaultState(t *testing.T) {
	coll := &definition.Collection{
		Name:             "books",
		EndpointBasePath: "/books",
		DefaultState:     "ARCHIVED",
	}

	err := coll.Validate()
	assert.Equal(t, apperrors.ErrCodeInvalidDefinition, apperrors.GetCode(err))
}

func TestValidate_ViewLookupRequiresCoreFields(t *testing.T) {
	coll := &definition.Collection{
		Name:             "orders-details",
		EndpointBasePath: "/orders-details",
		Source:           "orders",
		Lookups: []definition.Lookup{
			{As: "id_address", LocalField: "id_address"},
		},
	}

	err := coll.Validate()
	assert.Equal(t, apperrors.ErrCodeInvalidDefinition, apperrors.GetCode(err))
}

func TestEncryptedFields_BothForms(t *testing.T) {
	legacy := &definition.Collection{
		Name:             "addresses",
		EndpointBasePath: "/addresses",
		Fields: []definition.Field{
			{Name: "tax_code", Type: definition.TypeString, Encryption: &definition.Encryption{Enabled: true, Searchable: true}},
			{Name: "street", Type: definition.TypeString},
		},
	}
	encrypted := legacy.EncryptedFields()
	assert.Len(t, encrypted, 1)
	assert.True(t, encrypted["tax_code"].Searchable)

	schema := &definition.Collection{
		Name:             "people",
		EndpointBasePath: "/people",
		Schema: &definition.Schema{
			Type: "object",
			Properties: map[string]definition.SchemaProperty{
				"ssn": {
					Type: "string",
					MiaConfiguration: &definition.MiaConfiguration{
						Encryption: &definition.Encryption{Enabled: true},
					},
				},
				"name": {Type: "string"},
			},
		},
	}
	encrypted = schema.EncryptedFields()
	assert.Len(t, encrypted, 1)
	assert.False(t, encrypted["ssn"].Searchable)
}

func TestIsView(t *testing.T) {
	assert.False(t, (&definition.Collection{Name: "orders"}).IsView())
	assert.True(t, (&definition.Collection{Name: "details", Source: "orders"}).IsView())
}
