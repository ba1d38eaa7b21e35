package approval_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"skyreach/internal/approval"
	"skyreach/internal/config"
	"skyreach/internal/core"
)

func newManual(t *testing.T, input string) (*approval.Manual, *bytes.Buffer) {
	t.Helper()

	out := &bytes.Buffer{}
	manual := &approval.Manual{
		Logger:   slog.New(slog.DiscardHandler),
		Notifier: &noopNotifier{},
		In:       strings.NewReader(input),
		Out:      out,
	}
	require.NoError(t, manual.Init(t.Context()))

	return manual, out
}

var replyDecision = core.Decision{
	Action: core.ActionReply,
	Style:  core.StyleCTA,
	Draft:  "Check out our guide!",
}

func TestManualApproveYes(t *testing.T) {
	t.Parallel()

	manual, out := newManual(t, "y\n")

	verdict, err := manual.Approve(t.Context(), candidatePost(), replyDecision)
	require.NoError(t, err)
	require.True(t, verdict.Granted)
	require.False(t, verdict.Deferred)
	require.Equal(t, "Check out our guide!", verdict.Text)
	require.Contains(t, out.String(), "REPLY APPROVAL REQUIRED")
}

func TestManualApproveNo(t *testing.T) {
	t.Parallel()

	manual, _ := newManual(t, "n\n")

	verdict, err := manual.Approve(t.Context(), candidatePost(), replyDecision)
	require.NoError(t, err)
	require.False(t, verdict.Granted)
}

func TestManualApproveEdit(t *testing.T) {
	t.Parallel()

	manual, _ := newManual(t, "e\nMy Own Reply\n")

	verdict, err := manual.Approve(t.Context(), candidatePost(), replyDecision)
	require.NoError(t, err)
	require.True(t, verdict.Granted)
	require.Equal(t, "My Own Reply", verdict.Text)
}

func TestManualApproveReshare(t *testing.T) {
	t.Parallel()

	manual, out := newManual(t, "y\n")

	verdict, err := manual.Approve(t.Context(), candidatePost(), core.Decision{Action: core.ActionReshare})
	require.NoError(t, err)
	require.True(t, verdict.Granted)
	require.Empty(t, verdict.Text)
	require.Contains(t, out.String(), "RESHARE APPROVAL REQUIRED")
}

func TestManualApproveSendsButtonlessFYI(t *testing.T) {
	t.Parallel()

	notifier := &noopNotifier{}
	manual := &approval.Manual{
		Logger:   slog.New(slog.DiscardHandler),
		Notifier: notifier,
		In:       strings.NewReader("n\n"),
		Out:      &bytes.Buffer{},
	}
	require.NoError(t, manual.Init(t.Context()))

	_, err := manual.Approve(t.Context(), candidatePost(), replyDecision)
	require.NoError(t, err)

	// Manual mode has no callback to resolve a token, so the channel
	// gets an FYI without Approve/Reject buttons.
	require.Equal(t, 1, notifier.manualReviews)
	require.Zero(t, notifier.requests)
}

func TestManualApproveEOFDenies(t *testing.T) {
	t.Parallel()

	manual, _ := newManual(t, "")

	verdict, err := manual.Approve(t.Context(), candidatePost(), replyDecision)
	require.NoError(t, err)
	require.False(t, verdict.Granted)
}

func TestRemoteApproveDefers(t *testing.T) {
	t.Parallel()

	approvals := newMemApprovals()
	remote := &approval.Remote{
		Logger:    slog.New(slog.DiscardHandler),
		Config:    &config.Config{},
		Approvals: approvals,
		Notifier:  &noopNotifier{},
	}
	require.NoError(t, remote.Init(t.Context()))

	post := candidatePost()

	verdict, err := remote.Approve(t.Context(), post, replyDecision)
	require.NoError(t, err)
	require.True(t, verdict.Deferred)
	require.False(t, verdict.Granted)

	pending, err := approvals.HasPending(t.Context(), post.ID, post.Platform)
	require.NoError(t, err)
	require.True(t, pending)
}

func candidatePost() core.CandidatePost {
	return core.CandidatePost{
		ID:           "at://did:plc:abc/app.bsky.feed.post/1",
		CID:          "bafy123",
		Text:         "thinking about rooftop solar",
		AuthorHandle: "alice.bsky.social",
		Platform:     core.PlatformBluesky,
	}
}
