package dbutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyNetworkErrors(t *testing.T) {
	for _, msg := range []string{
		"dial tcp: connection refused",
		"read: connection reset by peer",
		"write: broken pipe",
		"use of closed network connection",
		"driver: bad connection",
		"packet sequence error",
		"unexpected EOF",
	} {
		assert.Equal(t, ClassNetwork, Classify(errors.New(msg)), msg)
	}
}

func TestClassifyDeadlock(t *testing.T) {
	assert.Equal(t, ClassDeadlock, Classify(errors.New("Error 1213: Deadlock found when trying to get lock")))
	assert.Equal(t, ClassDeadlock, Classify(errors.New("deadlock detected")))
}

func TestClassifyFatal(t *testing.T) {
	assert.Equal(t, ClassFatal, Classify(errors.New("syntax error near SELECT")))
	assert.Equal(t, ClassFatal, Classify(nil))
}

func TestWithConnReturnsFirstSuccess(t *testing.T) {
	calls := 0
	got, err := WithConn("op", func() (int, error) {
		calls++
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 1, calls)
}

func TestWithConnRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	got, err := WithConn("op", func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection reset")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestWithConnDoesNotRetryFatal(t *testing.T) {
	calls := 0
	_, err := WithConn("op", func() (struct{}, error) {
		calls++
		return struct{}{}, errors.New("constraint violation")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithConnGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := WithConn("op", func() (struct{}, error) {
		calls++
		return struct{}{}, errors.New("connection reset")
	})
	require.Error(t, err)
	assert.Equal(t, maxAttempts, calls)
}
