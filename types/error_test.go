package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrEmbeddingUnavailable, "embedder down").
		WithCause(root).
		WithHTTPStatus(503).
		WithRetryable(true).
		WithSkill("query_wolfram_alpha")

	assert.Equal(t, ErrEmbeddingUnavailable, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, root))
	assert.Contains(t, err.Error(), "query_wolfram_alpha")
	assert.Contains(t, err.Error(), "root")
}

func TestAsError_ThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrMissingRequiredParameter, "channel is required")
	wrapped := fmt.Errorf("bind: %w", inner)

	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, e)
	assert.True(t, IsErrorCode(wrapped, ErrMissingRequiredParameter))
	assert.False(t, IsErrorCode(wrapped, ErrInvalidArgument))
	assert.False(t, IsErrorCode(errors.New("plain"), ErrInvalidArgument))
}

type retryableErr struct{ retry bool }

func (e retryableErr) Error() string     { return "upstream" }
func (e retryableErr) IsRetryable() bool { return e.retry }

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WrapError(nil, ErrTimeout, "x"))

	same := NewError(ErrTimeout, "already")
	assert.Same(t, same, WrapError(same, ErrTimeout, "again"))

	wrapped := WrapError(retryableErr{retry: true}, ErrEmbeddingUnavailable, "embed query")
	assert.Equal(t, ErrEmbeddingUnavailable, wrapped.Code)
	assert.True(t, wrapped.Retryable)

	notRetry := WrapError(retryableErr{retry: false}, ErrEmbeddingUnavailable, "embed query")
	assert.False(t, notRetry.Retryable)
}

func TestHTTPStatusFor(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrInvalidArgument, http.StatusBadRequest},
		{ErrEmbeddingUnavailable, http.StatusServiceUnavailable},
		{ErrLanguageModelUnavailable, http.StatusServiceUnavailable},
		{ErrTimeout, http.StatusGatewayTimeout},
		{ErrSkillNotFound, http.StatusNotFound},
		{ErrorCode("UNKNOWN"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFor(tt.code))
		})
	}
}
