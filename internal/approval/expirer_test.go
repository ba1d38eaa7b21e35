package approval_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skyreach/internal/approval"
	"skyreach/internal/config"
	"skyreach/internal/core"
)

func TestSweepExpiresStalePending(t *testing.T) {
	t.Parallel()

	approvals := newMemApprovals()
	seen := &memSeen{marks: map[string]core.SeenPost{}}
	notifier := &noopNotifier{}

	expirer := &approval.Expirer{
		Logger:    slog.New(slog.DiscardHandler),
		Config:    &config.Config{ApprovalTimeout: 4 * time.Hour},
		Approvals: approvals,
		Seen:      seen,
		Notifier:  notifier,
	}

	stale := pendingApproval("tok-stale")
	stale.CreatedAt = time.Now().Add(-5 * time.Hour)
	require.NoError(t, approvals.Create(t.Context(), stale))

	fresh := pendingApproval("tok-fresh")
	fresh.PostID = "at://did:plc:abc/app.bsky.feed.post/2"
	require.NoError(t, approvals.Create(t.Context(), fresh))

	require.NoError(t, expirer.Sweep(t.Context()))

	record, err := approvals.Get(t.Context(), "tok-stale")
	require.NoError(t, err)
	require.Equal(t, core.StatusExpired, record.Status)

	// Expired candidates are never proposed again.
	mark, ok := seen.marks[stale.PostID]
	require.True(t, ok)
	require.False(t, mark.Responded)

	// Fresh ones are untouched.
	record, err = approvals.Get(t.Context(), "tok-fresh")
	require.NoError(t, err)
	require.Equal(t, core.StatusPending, record.Status)
	require.NotContains(t, seen.marks, fresh.PostID)

	require.Equal(t, []bool{false}, notifier.resolved)
}

func TestSweepExpiredCannotBeApproved(t *testing.T) {
	t.Parallel()

	approvals := newMemApprovals()

	expirer := &approval.Expirer{
		Logger:    slog.New(slog.DiscardHandler),
		Config:    &config.Config{ApprovalTimeout: time.Hour},
		Approvals: approvals,
		Seen:      &memSeen{marks: map[string]core.SeenPost{}},
		Notifier:  &noopNotifier{},
	}

	stale := pendingApproval("tok-late")
	stale.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, approvals.Create(t.Context(), stale))
	require.NoError(t, expirer.Sweep(t.Context()))

	// A late callback for an expired token resolves nothing.
	_, err := approvals.Resolve(t.Context(), "tok-late", core.StatusApproved, time.Now())
	require.ErrorIs(t, err, core.ErrApprovalResolved)
}
