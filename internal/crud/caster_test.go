package crud_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
)

func TestCastQuery_ObjectIDFromHexString(t *testing.T) {
	// Arrange
	caster := newTestCaster(t)
	query := bson.M{"ownerId": "507f1f77bcf86cd799439011"}

	// Act
	err := caster.CastQuery(query)

	// Assert
	require.NoError(t, err)
	expected, _ := primitive.ObjectIDFromHex("507f1f77bcf86cd799439011")
	assert.Equal(t, expected, query["ownerId"])
}

func TestCastQuery_InvalidObjectID(t *testing.T) {
	caster := newTestCaster(t)

	err := caster.CastQuery(bson.M{"ownerId": "zzz"})

	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeCastError, apperrors.GetCode(err))
}

func TestCastQuery_DateFromRFC3339(t *testing.T) {
	caster := newTestCaster(t)
	query := bson.M{"movedIn": "2021-06-14T10:00:00Z"}

	err := caster.CastQuery(query)

	require.NoError(t, err)
	parsed, ok := query["movedIn"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2021, parsed.Year())
}

func TestCastQuery_NumberAndBooleanFromStrings(t *testing.T) {
	caster := newTestCaster(t)
	query := bson.M{"house_number": "11", "active": "true"}

	err := caster.CastQuery(query)

	require.NoError(t, err)
	assert.Equal(t, float64(11), query["house_number"])
	assert.Equal(t, true, query["active"])
}

func TestCastQuery_ComparisonOperators(t *testing.T) {
	caster := newTestCaster(t)
	query := bson.M{"house_number": map[string]interface{}{"$gte": "10", "$lt": "20"}}

	err := caster.CastQuery(query)

	require.NoError(t, err)
	ops := query["house_number"].(map[string]interface{})
	assert.Equal(t, float64(10), ops["$gte"])
	assert.Equal(t, float64(20), ops["$lt"])
}

func TestCastQuery_MembershipOperatorCastsEachElement(t *testing.T) {
	caster := newTestCaster(t)
	query := bson.M{"ownerId": map[string]interface{}{
		"$in": []interface{}{"507f1f77bcf86cd799439011", "507f1f77bcf86cd799439012"},
	}}

	err := caster.CastQuery(query)

	require.NoError(t, err)
	list := query["ownerId"].(map[string]interface{})["$in"].([]interface{})
	for _, item := range list {
		_, ok := item.(primitive.ObjectID)
		assert.True(t, ok)
	}
}

func TestCastQuery_LogicalOperatorsRecurse(t *testing.T) {
	caster := newTestCaster(t)
	query := bson.M{"$or": []interface{}{
		map[string]interface{}{"house_number": "11"},
		map[string]interface{}{"active": "false"},
	}}

	err := caster.CastQuery(query)

	require.NoError(t, err)
	clauses := query["$or"].([]interface{})
	assert.Equal(t, float64(11), clauses[0].(map[string]interface{})["house_number"])
	assert.Equal(t, false, clauses[1].(map[string]interface{})["active"])
}

func TestCastQuery_RegexOnlyOnStringFields(t *testing.T) {
	caster := newTestCaster(t)

	err := caster.CastQuery(bson.M{"displayName": map[string]interface{}{"$regex": "^via"}})
	assert.NoError(t, err)

	err = caster.CastQuery(bson.M{"house_number": map[string]interface{}{"$regex": "^1"}})
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeCastError, apperrors.GetCode(err))
}

func TestCastQuery_UnsupportedOperator(t *testing.T) {
	caster := newTestCaster(t)

	err := caster.CastQuery(bson.M{"displayName": map[string]interface{}{"$where": "true"}})

	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeCastError, apperrors.GetCode(err))
}

func TestCastQuery_UndeclaredFieldLeftUntouched(t *testing.T) {
	caster := newTestCaster(t)
	query := bson.M{"metadata.color": "red"}

	err := caster.CastQuery(query)

	require.NoError(t, err)
	assert.Equal(t, "red", query["metadata.color"])
}

func TestCastQuery_GeoOperatorOnlyOnGeoPoint(t *testing.T) {
	caster := newTestCaster(t)
	near := map[string]interface{}{"$near": map[string]interface{}{
		"$geometry": map[string]interface{}{"type": "Point", "coordinates": []interface{}{9.18, 45.46}},
	}}

	assert.NoError(t, caster.CastQuery(bson.M{"position": near}))

	err := caster.CastQuery(bson.M{"displayName": map[string]interface{}{"$near": near["$near"]}})
	assert.Error(t, err)
}

func TestCastCommands_ValuesCastAndFieldsRestricted(t *testing.T) {
	// Arrange
	caster := newTestCaster(t)
	commands := bson.M{"$set": map[string]interface{}{"movedIn": "2021-06-14T10:00:00Z"}}

	// Act
	err := caster.CastCommands(commands, []string{"movedIn"})

	// Assert
	require.NoError(t, err)
	fields := commands["$set"].(map[string]interface{})
	_, ok := fields["movedIn"].(time.Time)
	assert.True(t, ok)
}

func TestCastCommands_NonEditableFieldRejected(t *testing.T) {
	caster := newTestCaster(t)
	commands := bson.M{"$set": map[string]interface{}{"displayName": "new"}}

	err := caster.CastCommands(commands, []string{"street"})

	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeCastError, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "not editable")
}

func TestCastCommands_UnsupportedUpdateOperator(t *testing.T) {
	caster := newTestCaster(t)

	err := caster.CastCommands(bson.M{"$rename": map[string]interface{}{"a": "b"}}, nil)

	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeCastError, apperrors.GetCode(err))
}

func TestCastCommands_IncExpectsNumber(t *testing.T) {
	caster := newTestCaster(t)

	err := caster.CastCommands(bson.M{"$inc": map[string]interface{}{"house_number": "up"}}, nil)
	assert.Error(t, err)

	commands := bson.M{"$inc": map[string]interface{}{"house_number": "2"}}
	require.NoError(t, caster.CastCommands(commands, nil))
	assert.Equal(t, float64(2), commands["$inc"].(map[string]interface{})["house_number"])
}

func TestCastDocument_InsertBody(t *testing.T) {
	caster := newTestCaster(t)
	doc := map[string]interface{}{
		"ownerId": "507f1f77bcf86cd799439011",
		"movedIn": "2021-06-14T10:00:00Z",
		"active":  true,
		"extra":   "left alone",
	}

	err := caster.CastDocument(doc)

	require.NoError(t, err)
	_, isOID := doc["ownerId"].(primitive.ObjectID)
	_, isTime := doc["movedIn"].(time.Time)
	assert.True(t, isOID)
	assert.True(t, isTime)
	assert.Equal(t, "left alone", doc["extra"])
}

func TestCastDocument_GeoPointFromPair(t *testing.T) {
	caster := newTestCaster(t)
	doc := map[string]interface{}{"position": []interface{}{9.18, 45.46}}

	err := caster.CastDocument(doc)

	require.NoError(t, err)
	point := doc["position"].(bson.M)
	assert.Equal(t, "Point", point["type"])
}
