package definition_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/crud-service-sub002/internal/domain/definition"
	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
)

func writeDefinition(t *testing.T, folder, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(folder, name), []byte(content), 0o644))
}

func TestLoad_BuildsRegistry(t *testing.T) {
	// Arrange
	folder := t.TempDir()
	writeDefinition(t, folder, "books.json", `{
		"name": "books",
		"endpointBasePath": "/books",
		"defaultState": "PUBLIC",
		"fields": [
			{"name": "title", "type": "string", "required": true},
			{"name": "pages", "type": "number"}
		]
	}`)
	writeDefinition(t, folder, "notes.txt", "not a definition")

	// Act
	registry, err := definition.Load(context.Background(), folder)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"books"}, registry.Endpoints())

	coll, err := registry.Get("books")
	require.NoError(t, err)
	assert.Equal(t, "books", coll.Name)
	assert.Equal(t, definition.StatePublic, coll.DefaultState)
}

func TestLoad_DefaultStateFallsBackToDraft(t *testing.T) {
	folder := t.TempDir()
	writeDefinition(t, folder, "books.json", `{
		"name": "books",
		"endpointBasePath": "/books",
		"fields": [{"name": "title", "type": "string"}]
	}`)

	registry, err := definition.Load(context.Background(), folder)
	require.NoError(t, err)

	coll, err := registry.Get("books")
	require.NoError(t, err)
	assert.Equal(t, definition.StateDraft, coll.DefaultState)
}

func TestLoad_MalformedFile(t *testing.T) {
	folder := t.TempDir()
	writeDefinition(t, folder, "broken.json", `{"name": `)

	_, err := definition.Load(context.Background(), folder)
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidDefinition, apperrors.GetCode(err))
}

func TestLoad_DuplicateEndpoint(t *testing.T) {
	folder := t.TempDir()
	writeDefinition(t, folder, "a.json", `{"name": "books_a", "endpointBasePath": "/books"}`)
	writeDefinition(t, folder, "b.json", `{"name": "books_b", "endpointBasePath": "/books"}`)

	_, err := definition.Load(context.Background(), folder)
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidDefinition, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "duplicate endpoint")
}

func TestLoad_ViewWithUnknownSource(t *testing.T) {
	folder := t.TempDir()
	writeDefinition(t, folder, "details.json", `{
		"name": "orders-details",
		"endpointBasePath": "/orders-details",
		"source": "orders",
		"lookupsModels": [
			{"as": "id_address", "localField": "id_address", "foreignField": "_id"}
		]
	}`)

	_, err := definition.Load(context.Background(), folder)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown collection")
}

func TestLoad_ViewLookupWithUnknownDependency(t *testing.T) {
	folder := t.TempDir()
	writeDefinition(t, folder, "orders.json", `{"name": "orders", "endpointBasePath": "/orders"}`)
	writeDefinition(t, folder, "details.json", `{
		"name": "orders-details",
		"endpointBasePath": "/orders-details",
		"source": "orders",
		"lookupsModels": [
			{"as": "id_address", "localField": "id_address", "foreignField": "_id", "dependency": "addresses"}
		]
	}`)

	_, err := definition.Load(context.Background(), folder)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown collection")
}

func TestLoad_MissingFolder(t *testing.T) {
	_, err := definition.Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidDefinition, apperrors.GetCode(err))
}

func TestGet_UnknownEndpoint(t *testing.T) {
	folder := t.TempDir()
	registry, err := definition.Load(context.Background(), folder)
	require.NoError(t, err)

	_, err = registry.Get("ghosts")
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), `CRUD endpoint "ghosts" does not exist`)
}

func TestValidateBody_LegacyFields(t *testing.T) {
	// Arrange
	folder := t.TempDir()
	writeDefinition(t, folder, "books.json", `{
		"name": "books",
		"endpointBasePath": "/books",
		"fields": [
			{"name": "title", "type": "string", "required": true},
			{"name": "pages", "type": "number"}
		]
	}`)
	registry, err := definition.Load(context.Background(), folder)
	require.NoError(t, err)

	// Act & Assert
	assert.NoError(t, registry.ValidateBody("books", map[string]interface{}{
		"title": "Dune", "pages": float64(412),
	}))

	err = registry.ValidateBody("books", map[string]interface{}{"pages": float64(412)})
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBadRequest, apperrors.GetCode(err))

	// 레거시 필드 정의에 없는 필드는 거부됩니다
	err = registry.ValidateBody("books", map[string]interface{}{
		"title": "Dune", "publisher": "Chilton",
	})
	assert.Error(t, err)
}

func TestValidateBody_SchemaForm(t *testing.T) {
	folder := t.TempDir()
	writeDefinition(t, folder, "people.json", `{
		"name": "people",
		"endpointBasePath": "/people",
		"schema": {
			"type": "object",
			"properties": {
				"name": {"type": "string"},
				"height": {"type": "number"}
			},
			"required": ["name"]
		}
	}`)
	registry, err := definition.Load(context.Background(), folder)
	require.NoError(t, err)

	assert.NoError(t, registry.ValidateBody("people", map[string]interface{}{"name": "Leia"}))

	err = registry.ValidateBody("people", map[string]interface{}{"height": float64(150)})
	assert.Error(t, err)

	err = registry.ValidateBody("people", map[string]interface{}{"name": "Leia", "height": "tall"})
	assert.Error(t, err)
}
