package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := Wrap(KindExecutionError, "executor", "query failed", errors.New("relation does not exist"))
	assert.Contains(t, err.Error(), "executor")
	assert.Contains(t, err.Error(), "execution_error")
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestKindOfThroughWrapping(t *testing.T) {
	inner := New(KindModelUnavailable, "llm", "endpoint unreachable")
	wrapped := fmt.Errorf("interpret: %w", inner)

	assert.Equal(t, KindModelUnavailable, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindModelUnavailable))
	assert.False(t, Is(wrapped, KindTimeout))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(KindConnectionError, "pool", "connect", cause)

	require.ErrorIs(t, err, cause)
}

func TestRetryability(t *testing.T) {
	assert.True(t, New(KindTimeout, "llm", "deadline").IsRetryable())
	assert.True(t, New(KindConnectionError, "pool", "refused").IsRetryable())
	assert.False(t, New(KindExecutionError, "executor", "bad sql").IsRetryable())
	assert.False(t, New(KindModelResponseUnparseable, "translator", "no sql section").IsRetryable())
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(fmt.Errorf("wrapped: %w", New(KindTimeout, "executor", "query deadline"))))
	assert.False(t, IsTimeout(New(KindExecutionError, "executor", "boom")))
}
