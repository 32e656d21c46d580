package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoRetry_WrapsError(t *testing.T) {
	base := errors.New("boom")
	err := NoRetry(base)

	var noRetry *NoRetryError
	require.ErrorAs(t, err, &noRetry)
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "no retry")
	assert.Contains(t, err.Error(), "boom")
}

func TestRetryAfter_WrapsErrorWithDelay(t *testing.T) {
	base := errors.New("rate limited")
	err := RetryAfter(5*time.Second, base)

	var retryAfter *RetryAfterError
	require.ErrorAs(t, err, &retryAfter)
	assert.Equal(t, 5*time.Second, retryAfter.Delay)
	assert.ErrorIs(t, err, base)
}

func TestWrappers_SurviveFurtherWrapping(t *testing.T) {
	base := errors.New("inner")
	err := fmt.Errorf("outer: %w", NoRetry(base))

	var noRetry *NoRetryError
	assert.ErrorAs(t, err, &noRetry)
	assert.ErrorIs(t, err, base)
}

func TestSentinels_HavePrefix(t *testing.T) {
	for _, err := range []error{
		ErrInvalidJobTypeName,
		ErrJobTypeNameTooLong,
		ErrInvalidQueueName,
		ErrQueueNameTooLong,
		ErrJobArgsTooLarge,
		ErrJobNotOwned,
		ErrJobNotFound,
		ErrDuplicateJob,
		ErrUniqueKeyTooLong,
	} {
		assert.Contains(t, err.Error(), "flowline:")
	}
}
