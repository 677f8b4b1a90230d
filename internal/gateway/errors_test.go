package gateway

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{401, KindUnauthorized},
		{403, KindForbidden},
		{404, KindNotFound},
		{429, KindRateLimited},
		{500, KindServerError},
		{502, KindServerError},
		{503, KindServerError},
		{400, KindUnknown},
		{409, KindUnknown},
		{422, KindUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, kindForStatus(tt.status), "status %d", tt.status)
	}
}

func TestIsRetryable_OnlyRateLimited(t *testing.T) {
	for _, kind := range []Kind{
		KindUnauthorized, KindForbidden, KindNotFound,
		KindServerError, KindNetworkError, KindTimeout, KindUnknown,
	} {
		err := &Error{Kind: kind}
		assert.False(t, err.IsRetryable(), "kind %s must not be retried", kind)
	}

	err := &Error{Kind: KindRateLimited}
	assert.True(t, err.IsRetryable())
}

func TestStatusError_TruncatesLongBody(t *testing.T) {
	body := strings.Repeat("x", 2000)
	err := statusError(500, body)

	assert.Equal(t, KindServerError, err.Kind)
	assert.Equal(t, 500, err.Status)
	assert.Len(t, err.Message, 503) // 500 chars plus "..."
	assert.True(t, strings.HasSuffix(err.Message, "..."))
}

func TestError_UnwrapExposesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := &Error{Kind: KindNetworkError, Message: "dial failed", Err: cause}

	assert.True(t, errors.Is(err, cause))

	var apiErr *Error
	assert.True(t, errors.As(fmt.Errorf("fetch sales: %w", err), &apiErr))
	assert.Equal(t, KindNetworkError, apiErr.Kind)
}

func TestError_MessageIncludesStatusWhenPresent(t *testing.T) {
	withStatus := &Error{Kind: KindNotFound, Status: 404, Message: "no such week"}
	assert.Contains(t, withStatus.Error(), "status 404")

	transport := &Error{Kind: KindTimeout, Message: "deadline exceeded"}
	assert.NotContains(t, transport.Error(), "status")
}
