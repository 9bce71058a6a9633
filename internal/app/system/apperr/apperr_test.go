package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestMetadataFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, MetadataFor(CodeValidation).HTTPStatus)
	assert.Equal(t, http.StatusNotFound, MetadataFor(CodeNotFound).HTTPStatus)
	assert.Equal(t, http.StatusConflict, MetadataFor(CodeConflict).HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, MetadataFor(Code("bogus")).HTTPStatus)
}

func TestAsFindsWrappedError(t *testing.T) {
	base := NotFound("zone")
	wrapped := fmt.Errorf("create assignment: %w", base)

	got := As(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, CodeNotFound, got.Code())
	assert.Equal(t, "zone not found", got.Message())
	assert.True(t, Is(wrapped, CodeNotFound))
	assert.False(t, Is(wrapped, CodeValidation))
}

func TestCodeOfUntyped(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Nil(t, As(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("socket closed")
	err := Wrap(CodeInternal, cause, "sync failed")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "socket closed")
}

func TestFromMongo(t *testing.T) {
	assert.Nil(t, FromMongo(nil, "zone"))
	assert.True(t, Is(FromMongo(mongo.ErrNoDocuments, "zone"), CodeNotFound))

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.True(t, Is(FromMongo(dup, "open assignment"), CodeConflict))

	other := errors.New("timeout")
	assert.Equal(t, other, FromMongo(other, "zone"))
}

func TestWithDetails(t *testing.T) {
	err := Validation("validation failed").WithDetails(map[string]string{"zoneId": "is required"})
	assert.Equal(t, map[string]string{"zoneId": "is required"}, err.Details())
}
