package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.class.String())
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"rate limited", ErrRateLimited, true},
		{"context deadline", context.DeadlineExceeded, true},
		{"wrapped transient", WrapTransient(errors.New("boom"), "Transport", "Send", "post payload"), true},
		{"wrapped invalid", WrapInvalid(errors.New("boom"), "Resolver", "Resolve", "coerce value"), false},
		{"timeout in message", errors.New("request timeout exceeded"), true},
		{"plain error", errors.New("something else entirely"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTransient(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrSubmissionNotFound))
	assert.True(t, IsFatal(ErrIntegrationNotFound))
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(WrapFatal(errors.New("boom"), "Worker", "Run", "load submission")))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(ErrConnectionTimeout))
}

func TestIsInvalid(t *testing.T) {
	assert.True(t, IsInvalid(ErrCoercionFailed))
	assert.True(t, IsInvalid(ErrTemplateFailed))
	assert.True(t, IsInvalid(fmt.Errorf("render: %w", ErrTemplateFailed)))
	assert.False(t, IsInvalid(nil))
	assert.False(t, IsInvalid(errors.New("plain")))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorFatal, Classify(ErrSubmissionNotFound))
	assert.Equal(t, ErrorInvalid, Classify(ErrCoercionFailed))
	assert.Equal(t, ErrorTransient, Classify(errors.New("mystery")))
	assert.Equal(t, ErrorTransient, Classify(nil))
}

func TestWrap_Format(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(base, "Pipeline", "Send", "deliver payload")
	require.Error(t, err)
	assert.Equal(t, "Pipeline.Send: deliver payload failed: boom", err.Error())
	assert.True(t, errors.Is(err, base))

	assert.Nil(t, Wrap(nil, "Pipeline", "Send", "deliver payload"))
	assert.Nil(t, WrapTransient(nil, "a", "b", "c"))
	assert.Nil(t, WrapFatal(nil, "a", "b", "c"))
	assert.Nil(t, WrapInvalid(nil, "a", "b", "c"))
}

func TestClassifiedError_Unwrap(t *testing.T) {
	base := errors.New("boom")
	err := WrapFatal(base, "Worker", "Run", "load config")

	var ce *ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrorFatal, ce.Class)
	assert.Equal(t, "Worker", ce.Component)
	assert.True(t, errors.Is(err, base))
}
