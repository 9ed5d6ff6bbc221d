package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapRoundTrip(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, CategoryIOFailure, "audit_append_failed", "check audit log permissions", true)
	require.Error(t, err)
	require.Equal(t, CategoryIOFailure, CategoryOf(err))
	require.Equal(t, "audit_append_failed", CodeOf(err))
	require.Equal(t, "check audit log permissions", HintOf(err))
	require.True(t, RetryableOf(err))
	require.ErrorIs(t, err, base)
}

func TestInvalidInputFormatsCause(t *testing.T) {
	err := InvalidInput("chain_empty", "chain requires at least %d agent", 1)
	require.EqualError(t, err, "chain requires at least 1 agent")
	require.Equal(t, CategoryInvalidInput, CategoryOf(err))
	require.Equal(t, "chain_empty", CodeOf(err))
	require.False(t, RetryableOf(err))
	require.NotEmpty(t, HintOf(err))
}

func TestUnknownErrorDefaults(t *testing.T) {
	err := stderrors.New("plain")
	require.Empty(t, CategoryOf(err))
	require.Empty(t, CodeOf(err))
	require.Empty(t, HintOf(err))
	require.False(t, RetryableOf(err))
}

func TestWrapNilCauseReturnsNil(t *testing.T) {
	require.NoError(t, Wrap(nil, CategoryInternalFailure, "internal_failure", "retry later", false))
}

func TestClassifiedErrorNilCauseDefaults(t *testing.T) {
	err := &classifiedError{category: CategoryPolicyBlocked, code: "policy_blocked"}
	require.Equal(t, "unknown error", err.Error())
	require.NoError(t, err.Unwrap())
}
