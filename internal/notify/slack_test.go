package notify_test

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"skyreach/internal/config"
	"skyreach/internal/core"
	"skyreach/internal/notify"
)

type webhook struct {
	payload map[string]any
}

func newSlack(t *testing.T) (*notify.Slack, *webhook) {
	t.Helper()

	hook := &webhook{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hook.payload = map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&hook.payload))
		fmt.Fprint(w, "ok")
	}))
	t.Cleanup(srv.Close)

	slack := &notify.Slack{
		Logger: slog.New(slog.DiscardHandler),
		Config: &config.Config{SlackWebhookURL: srv.URL},
	}
	require.NoError(t, slack.Init(t.Context()))
	t.Cleanup(func() { slack.Shutdown(t.Context()) }) //nolint:errcheck

	return slack, hook
}

func blockTypes(t *testing.T, payload map[string]any) []string {
	t.Helper()

	blocks, ok := payload["blocks"].([]any)
	require.True(t, ok)

	types := make([]string, 0, len(blocks))
	for _, block := range blocks {
		types = append(types, block.(map[string]any)["type"].(string))
	}
	return types
}

func approvalFor(token string) core.PendingApproval {
	return core.PendingApproval{
		Token:        token,
		PostID:       "at://did:plc:abc/app.bsky.feed.post/1",
		Platform:     core.PlatformBluesky,
		AuthorHandle: "alice.bsky.social",
		PostText:     "thinking about rooftop solar",
		Action:       core.ActionReply,
		ReplyText:    "take a look at our guide!",
		Status:       core.StatusPending,
	}
}

func TestApprovalRequestCarriesButtons(t *testing.T) {
	t.Parallel()

	slack, hook := newSlack(t)

	require.NoError(t, slack.ApprovalRequest(t.Context(), approvalFor("tok-1")))

	require.Contains(t, blockTypes(t, hook.payload), "actions")

	raw, err := json.Marshal(hook.payload)
	require.NoError(t, err)
	require.Contains(t, string(raw), "approve_tok-1")
	require.Contains(t, string(raw), "reject_tok-1")
}

func TestManualReviewHasNoButtons(t *testing.T) {
	t.Parallel()

	slack, hook := newSlack(t)

	require.NoError(t, slack.ManualReview(t.Context(), approvalFor("")))

	// Nothing clickable: the verdict is given at the terminal, so a
	// button here could never resolve.
	require.NotContains(t, blockTypes(t, hook.payload), "actions")

	raw, err := json.Marshal(hook.payload)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "approve_")
	require.NotContains(t, string(raw), "reject_")
}

func TestResolvedThreadsUnderOriginalMessage(t *testing.T) {
	t.Parallel()

	slack, hook := newSlack(t)

	approval := approvalFor("tok-1")
	approval.Status = core.StatusApproved

	require.NoError(t, slack.Resolved(t.Context(), approval, "1725.0001", true))
	require.Equal(t, "1725.0001", hook.payload["thread_ts"])

	require.NoError(t, slack.Resolved(t.Context(), approval, "", true))
	require.NotContains(t, hook.payload, "thread_ts")
}
