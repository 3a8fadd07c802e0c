package cache

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceError(t *testing.T) {
	conflict := &ServiceError{StatusCode: http.StatusConflict, Message: "Chunk ID already exists"}
	assert.Equal(t, "Chunk ID already exists", conflict.Error())
	assert.True(t, errors.Is(conflict, ErrDuplicateID))

	failure := &ServiceError{StatusCode: http.StatusInternalServerError}
	assert.Equal(t, "Internal Server Error", failure.Error())
	assert.False(t, errors.Is(failure, ErrDuplicateID))
}

func TestValidateEntry(t *testing.T) {
	valid := Entry{ID: "chunk-1", Text: "t", Embedding: []float32{1}}
	assert.NoError(t, ValidateEntry(valid))

	for _, entry := range []Entry{
		{Text: "t", Embedding: []float32{1}},
		{ID: "chunk-1", Embedding: []float32{1}},
		{ID: "chunk-1", Text: "t"},
	} {
		assert.ErrorIs(t, ValidateEntry(entry), ErrInvalidEntry)
	}
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "gpt_embed_42", CollectionName("42"))
}
