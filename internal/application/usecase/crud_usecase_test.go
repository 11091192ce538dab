package usecase

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mia-platform/crud-service-sub002/internal/application/dto"
	"github.com/mia-platform/crud-service-sub002/internal/domain/definition"
)

func TestParseSort_SingleAscending(t *testing.T) {
	// Act
	sortDoc, err := parseSort("name")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "name", Value: 1}}, sortDoc)
}

func TestParseSort_MixedDirections(t *testing.T) {
	// Act
	sortDoc, err := parseSort("-createdAt,name")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "createdAt", Value: -1},
		{Key: "name", Value: 1},
	}, sortDoc)
}

func TestParseSort_Empty(t *testing.T) {
	// Act
	sortDoc, err := parseSort("")

	// Assert
	require.NoError(t, err)
	assert.Nil(t, sortDoc)
}

func TestParseSort_BareMinusRejected(t *testing.T) {
	// Act
	_, err := parseSort("name,-")

	// Assert
	assert.Error(t, err)
}

func TestParseSort_SkipsEmptySegments(t *testing.T) {
	// Act
	sortDoc, err := parseSort("name, ,-age")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "name", Value: 1},
		{Key: "age", Value: -1},
	}, sortDoc)
}

func TestCombineFilters_EmptySides(t *testing.T) {
	// Arrange
	filter := bson.M{"name": "Luke"}

	// Act & Assert
	assert.Equal(t, filter, combineFilters(filter, bson.M{}))
	assert.Equal(t, filter, combineFilters(bson.M{}, filter))
	assert.Empty(t, combineFilters(bson.M{}, bson.M{}))
}

func TestCombineFilters_BothPresentWrappedInAnd(t *testing.T) {
	// Arrange
	a := bson.M{"name": "Luke"}
	b := bson.M{"__STATE__": "PUBLIC"}

	// Act
	combined := combineFilters(a, b)

	// Assert
	assert.Equal(t, bson.M{"$and": []bson.M{a, b}}, combined)
}

func TestWritableFields_ACLWriteColumnsTakePrecedence(t *testing.T) {
	// Arrange
	coll := &definition.Collection{
		Name: "addresses",
		Fields: []definition.Field{
			{Name: "displayName", Type: definition.TypeString},
			{Name: "street", Type: definition.TypeString},
		},
	}
	acl := dto.AccessControl{WriteColumns: []string{"street"}}

	// Act
	fields := writableFields(coll, acl)

	// Assert
	assert.Equal(t, []string{"street"}, fields)
}

func TestWritableFields_DefaultExcludesReservedFields(t *testing.T) {
	// Arrange
	coll := &definition.Collection{
		Name: "addresses",
		Fields: []definition.Field{
			{Name: "displayName", Type: definition.TypeString},
			{Name: "house_number", Type: definition.TypeNumber},
		},
	}

	// Act
	fields := writableFields(coll, dto.AccessControl{})
	sort.Strings(fields)

	// Assert
	assert.Equal(t, []string{"displayName", "house_number"}, fields)
	assert.NotContains(t, fields, definition.IDField)
	assert.NotContains(t, fields, definition.StateField)
	assert.NotContains(t, fields, definition.CreatedAtField)
}

func TestIdToString_KnownTypes(t *testing.T) {
	// Arrange
	oid := primitive.NewObjectID()

	// Act & Assert
	assert.Equal(t, oid.Hex(), idToString(oid))
	assert.Equal(t, "abc123", idToString("abc123"))
	assert.Equal(t, "42", idToString(42))
}
