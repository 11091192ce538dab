package crud_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mia-platform/crud-service-sub002/internal/crud"
	"github.com/mia-platform/crud-service-sub002/internal/domain/definition"
)

var addressLookup = []definition.Lookup{
	{As: "id_address", LocalField: "address_fk", ForeignField: "_id", Dependency: "addresses", LabelField: "displayName"},
}

func TestRewriteLookupReferences_SingleReference(t *testing.T) {
	// Arrange
	body := map[string]interface{}{
		"id_address": map[string]interface{}{
			"value": "507f1f77bcf86cd799439011",
			"label": "via Calatafimi 11",
		},
		"paid": true,
	}

	// Act
	crud.RewriteLookupReferences(addressLookup, body)

	// Assert
	assert.NotContains(t, body, "id_address")
	expected, _ := primitive.ObjectIDFromHex("507f1f77bcf86cd799439011")
	assert.Equal(t, expected, body["address_fk"])
	assert.Equal(t, true, body["paid"])
}

func TestRewriteLookupReferences_NonObjectIDValueKeptAsIs(t *testing.T) {
	body := map[string]interface{}{
		"id_address": map[string]interface{}{"value": "custom-key", "label": "x"},
	}

	crud.RewriteLookupReferences(addressLookup, body)

	assert.Equal(t, "custom-key", body["address_fk"])
}

func TestRewriteLookupReferences_ArrayFiltersFalsyEntries(t *testing.T) {
	// 1:N 관계에서 falsy value 항목은 조용히 제거됩니다
	body := map[string]interface{}{
		"id_address": []interface{}{
			map[string]interface{}{"value": "507f1f77bcf86cd799439011", "label": "a"},
			map[string]interface{}{"value": "", "label": "empty"},
			map[string]interface{}{"value": nil, "label": "nil"},
			map[string]interface{}{"value": "507f1f77bcf86cd799439012", "label": "b"},
		},
	}

	crud.RewriteLookupReferences(addressLookup, body)

	ids, ok := body["address_fk"].([]interface{})
	require.True(t, ok)
	assert.Len(t, ids, 2)
}

func TestRewriteLookupReferences_ScalarValueKeyRenamed(t *testing.T) {
	// {value, label} 형태가 아니어도 키는 localField로 바뀝니다
	body := map[string]interface{}{"id_address": "raw-string"}

	crud.RewriteLookupReferences(addressLookup, body)

	assert.NotContains(t, body, "id_address")
	assert.Equal(t, "raw-string", body["address_fk"])
}

func TestRewriteLookupReferences_UnsetCommandKeyRenamed(t *testing.T) {
	// Arrange
	body := map[string]interface{}{
		"$unset": map[string]interface{}{"id_address": true},
	}

	// Act
	crud.RewriteLookupReferences(addressLookup, body)

	// Assert
	unset := body["$unset"].(map[string]interface{})
	assert.NotContains(t, unset, "id_address")
	assert.Equal(t, true, unset["address_fk"])
}

func TestRewriteLookupReferences_SameAsAndLocalField(t *testing.T) {
	// Arrange: as와 localField가 같은 이름을 쓰는 뷰 정의
	lookups := []definition.Lookup{
		{As: "id_address", LocalField: "id_address", ForeignField: "_id", Dependency: "addresses", LabelField: "displayName"},
	}
	body := map[string]interface{}{
		"id_address": map[string]interface{}{
			"value": "507f1f77bcf86cd799439011",
			"label": "via Calatafimi 11",
		},
	}

	// Act
	crud.RewriteLookupReferences(lookups, body)

	// Assert: 방금 기록한 외래키가 삭제되지 않습니다
	expected, _ := primitive.ObjectIDFromHex("507f1f77bcf86cd799439011")
	assert.Equal(t, expected, body["id_address"])
}

func TestRewriteLookupReferences_InsideUpdateCommands(t *testing.T) {
	body := map[string]interface{}{
		"$set": map[string]interface{}{
			"id_address": map[string]interface{}{"value": "507f1f77bcf86cd799439011", "label": "a"},
		},
	}

	crud.RewriteLookupReferences(addressLookup, body)

	set := body["$set"].(map[string]interface{})
	assert.NotContains(t, set, "id_address")
	assert.Contains(t, set, "address_fk")
}

func TestRewriteLookupReferences_BulkBodies(t *testing.T) {
	bodies := []interface{}{
		map[string]interface{}{
			"id_address": map[string]interface{}{"value": "507f1f77bcf86cd799439011", "label": "a"},
		},
		map[string]interface{}{
			"id_address": map[string]interface{}{"value": "507f1f77bcf86cd799439012", "label": "b"},
		},
	}

	crud.RewriteLookupReferences(addressLookup, bodies)

	for _, item := range bodies {
		doc := item.(map[string]interface{})
		assert.NotContains(t, doc, "id_address")
		assert.Contains(t, doc, "address_fk")
	}
}
