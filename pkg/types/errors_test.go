package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllProvidersFailedError_NamesBothFailures(t *testing.T) {
	err := &AllProvidersFailedError{
		Primary:  AttemptFailure{Provider: ProviderSiliconFlow, Role: RolePrimary, Err: &ProviderError{Provider: ProviderSiliconFlow, StatusCode: 500, Body: "boom"}},
		Fallback: AttemptFailure{Provider: ProviderDify, Role: RoleFallback, Err: &TimeoutError{Provider: ProviderDify, Timeout: time.Second}},
	}

	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "timed out")
	assert.ErrorIs(t, err, ErrTimeout)

	var perr *ProviderError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, 500, perr.StatusCode)
}

func TestRateLimitError_Is(t *testing.T) {
	var err error = &RateLimitError{Provider: ProviderDify}
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestProviderError_Message(t *testing.T) {
	cause := errors.New("connection reset")
	err := &ProviderError{Provider: ProviderDify, Err: cause}
	assert.Equal(t, "dify: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
}
