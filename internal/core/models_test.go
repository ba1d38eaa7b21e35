package core_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"skyreach/internal/core"
)

func TestApprovalStatusTerminal(t *testing.T) {
	t.Parallel()

	require.False(t, core.StatusPending.Terminal())
	require.True(t, core.StatusApproved.Terminal())
	require.True(t, core.StatusRejected.Terminal())
	require.True(t, core.StatusExpired.Terminal())
}

func TestApprovalStatusCanTransition(t *testing.T) {
	t.Parallel()

	for _, next := range []core.ApprovalStatus{core.StatusApproved, core.StatusRejected, core.StatusExpired} {
		require.True(t, core.StatusPending.CanTransition(next))
	}

	// Terminal states accept nothing, not even themselves.
	for _, from := range []core.ApprovalStatus{core.StatusApproved, core.StatusRejected, core.StatusExpired} {
		for _, next := range []core.ApprovalStatus{core.StatusPending, core.StatusApproved, core.StatusRejected, core.StatusExpired} {
			require.False(t, from.CanTransition(next), "%s -> %s", from, next)
		}
	}

	require.False(t, core.StatusPending.CanTransition(core.StatusPending))
}
