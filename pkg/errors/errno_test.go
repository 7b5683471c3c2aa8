package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestMakeCode(t *testing.T) {
	tests := []struct {
		service, category, sequence int
		want                        int
	}{
		{0, 0, 0, 0},
		{ServiceIngest, CategoryRequest, 1, 2001001},
		{ServiceQuery, CategoryTimeout, 2, 2111002},
		{ServiceInfraVector, CategoryRequest, 1, 1201001},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MakeCode(tt.service, tt.category, tt.sequence))

		s, c, q := ParseCode(tt.want)
		assert.Equal(t, tt.service, s)
		assert.Equal(t, tt.category, c)
		assert.Equal(t, tt.sequence, q)
	}
}

func TestErrnoWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ErrChunkPersistFailed.WithCause(cause)

	assert.Equal(t, ErrChunkPersistFailed.Code, err.Code)
	assert.ErrorIs(t, err, ErrChunkPersistFailed)
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.Contains(t, err.Error(), "connection refused")

	// The registered sentinel must stay untouched.
	assert.Nil(t, stderrors.Unwrap(ErrChunkPersistFailed))
}

func TestErrnoWithMessage(t *testing.T) {
	err := ErrInvalidQuery.WithMessagef("query length %d exceeds 500", 720)
	assert.Equal(t, ErrInvalidQuery.Code, err.Code)
	assert.Contains(t, err.MessageEN, "720")
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))
	assert.Same(t, ErrEmptyPlan, FromError(ErrEmptyPlan))

	wrapped := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, wrapped.Code)
}

func TestLookupRegistered(t *testing.T) {
	e, ok := Lookup(ErrDimensionMismatch.Code)
	assert.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, e.GRPCStatus())

	_, ok = Lookup(9999999)
	assert.False(t, ok)
}

func TestIsCode(t *testing.T) {
	assert.True(t, IsCode(ErrStoreUnavailable, ErrStoreUnavailable.Code))
	assert.False(t, IsCode(fmt.Errorf("plain"), ErrStoreUnavailable.Code))
	assert.Equal(t, -1, GetCode(fmt.Errorf("plain")))
}
