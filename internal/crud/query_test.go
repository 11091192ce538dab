package crud_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mia-platform/crud-service-sub002/internal/crud"
	"github.com/mia-platform/crud-service-sub002/internal/domain/definition"
	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
)

func newTestCaster(t *testing.T) *crud.DefaultCaster {
	t.Helper()
	coll := &definition.Collection{
		Name:             "addresses",
		EndpointBasePath: "/addresses",
		Fields: []definition.Field{
			{Name: "displayName", Type: definition.TypeString},
			{Name: "house_number", Type: definition.TypeNumber},
			{Name: "ownerId", Type: definition.TypeObjectID},
			{Name: "movedIn", Type: definition.TypeDate},
			{Name: "active", Type: definition.TypeBoolean},
			{Name: "tags", Type: definition.TypeArray},
			{Name: "metadata", Type: definition.TypeRawObject},
			{Name: "position", Type: definition.TypeGeoPoint},
		},
	}
	caster, err := crud.NewCaster(coll)
	require.NoError(t, err)
	return caster
}

func TestResolveQuery_EmptyInputsNormalizeToEmptyFilter(t *testing.T) {
	// Arrange
	caster := newTestCaster(t)

	// Act
	filter, err := crud.ResolveQuery(caster, "", nil, nil, false)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, bson.M{}, filter)
}

func TestResolveQuery_ClientQueryOnly(t *testing.T) {
	caster := newTestCaster(t)

	filter, err := crud.ResolveQuery(caster, `{"displayName": "via Calatafimi"}`, nil, nil, false)

	require.NoError(t, err)
	clauses, ok := filter["$and"].([]bson.M)
	require.True(t, ok)
	require.Len(t, clauses, 1)
	assert.Equal(t, "via Calatafimi", clauses[0]["displayName"])
}

func TestResolveQuery_OtherParamsAreSortedEqualityClauses(t *testing.T) {
	// Arrange
	caster := newTestCaster(t)
	params := map[string]string{"displayName": "home", "active": "true"}

	// Act
	first, err := crud.ResolveQuery(caster, "", nil, params, false)
	require.NoError(t, err)
	second, err := crud.ResolveQuery(caster, "", nil, params, false)
	require.NoError(t, err)

	// Assert: 동일 입력은 구조적으로 동일한 필터를 냅니다
	assert.Equal(t, first, second)

	clauses := first["$and"].([]bson.M)
	require.Len(t, clauses, 2)
	assert.Equal(t, bson.M{"active": true}, clauses[0])
	assert.Equal(t, bson.M{"displayName": "home"}, clauses[1])
}

func TestResolveQuery_IdentifierEqualityParam(t *testing.T) {
	// Arrange: GetByID/Patch/Delete가 사용하는 식별자 필터 형태
	caster := newTestCaster(t)
	params := map[string]string{"_id": "507f1f77bcf86cd799439011"}

	// Act
	filter, err := crud.ResolveQuery(caster, "", nil, params, false)

	// Assert
	require.NoError(t, err)
	clauses, ok := filter["$and"].([]bson.M)
	require.True(t, ok)
	require.Len(t, clauses, 1)

	oid, _ := primitive.ObjectIDFromHex("507f1f77bcf86cd799439011")
	assert.Equal(t, oid, clauses[0]["_id"])
}

func TestResolveQuery_ACLRowsAreAppended(t *testing.T) {
	caster := newTestCaster(t)
	acl := []bson.M{{"ownerId": "507f1f77bcf86cd799439011"}}

	filter, err := crud.ResolveQuery(caster, `{"displayName": "home"}`, acl, nil, false)
	require.NoError(t, err)

	clauses := filter["$and"].([]bson.M)
	require.Len(t, clauses, 2)

	oid, _ := primitive.ObjectIDFromHex("507f1f77bcf86cd799439011")
	assert.Equal(t, oid, clauses[1]["ownerId"])
}

func TestResolveQuery_MultipleACLRowsWrappedInAnd(t *testing.T) {
	caster := newTestCaster(t)
	acl := []bson.M{
		{"active": true},
		{"displayName": "home"},
	}

	filter, err := crud.ResolveQuery(caster, "", acl, nil, false)
	require.NoError(t, err)

	clauses := filter["$and"].([]bson.M)
	require.Len(t, clauses, 1)

	nested, ok := clauses[0]["$and"].([]bson.M)
	require.True(t, ok)
	assert.Len(t, nested, 2)
}

func TestResolveQuery_InvalidJSON(t *testing.T) {
	caster := newTestCaster(t)

	_, err := crud.ResolveQuery(caster, `{"displayName": `, nil, nil, false)

	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBadRequest, apperrors.GetCode(err))
}

func TestResolveQuery_CastFailurePropagates(t *testing.T) {
	caster := newTestCaster(t)

	_, err := crud.ResolveQuery(caster, `{"ownerId": "not-an-oid"}`, nil, nil, false)

	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBadRequest, apperrors.GetCode(err))
}

func TestResolveQuery_TextSearchOnlyWhenEnabled(t *testing.T) {
	caster := newTestCaster(t)
	query := `{"$text": {"$search": "calatafimi"}}`

	_, err := crud.ResolveQuery(caster, query, nil, nil, false)
	assert.Error(t, err)

	filter, err := crud.ResolveQuery(caster, query, nil, nil, true)
	require.NoError(t, err)
	assert.NotEmpty(t, filter)
}
