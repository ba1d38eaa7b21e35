package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"resty.dev/v3"

	"skyreach/internal/config"
	"skyreach/internal/core"
)

// Slack posts Block Kit messages to an incoming webhook: approval
// requests with Approve/Reject buttons, button-less manual review and
// ignored-post FYIs, and threaded resolution notices. With no webhook configured it degrades to a warning
// and stays silent; notification failures never propagate into the
// pipeline.
type Slack struct {
	Logger *slog.Logger
	Config *config.Config

	client *resty.Client
}

func (s *Slack) Init(_ context.Context) error {
	s.Logger = s.Logger.With("component", "notify.Slack")

	if s.Config.SlackWebhookURL == "" {
		s.Logger.Warn("no Slack webhook URL configured, notifications disabled")
	}

	s.client = resty.New().
		SetHeader("Content-Type", "application/json")

	return nil
}

func (s *Slack) Shutdown(_ context.Context) error {
	return s.client.Close()
}

func (s *Slack) ApprovalRequest(ctx context.Context, approval core.PendingApproval) error {
	label := actionLabel(approval)

	blocks := append(requestBlocks(approval, fmt.Sprintf("%s REQUEST - approval needed", label)),
		map[string]any{
			"type":     "actions",
			"block_id": "approval_" + approval.Token,
			"elements": []any{
				button("Approve", "primary", "approve_"+approval.Token, "approve_action"),
				button("Reject", "danger", "reject_"+approval.Token, "reject_action"),
			},
		},
		contextBlock(postURL(approval)),
	)

	return s.post(ctx, map[string]any{
		"text":   fmt.Sprintf("%s REQUEST - approval needed", label),
		"blocks": blocks,
	})
}

// ManualReview is the FYI counterpart of ApprovalRequest: same content,
// no buttons. The verdict is given at the operator's terminal, so
// nothing here is clickable.
func (s *Slack) ManualReview(ctx context.Context, approval core.PendingApproval) error {
	label := actionLabel(approval)

	blocks := append(requestBlocks(approval, fmt.Sprintf("%s REQUEST - awaiting terminal verdict", label)),
		contextBlock(postURL(approval)),
	)

	return s.post(ctx, map[string]any{
		"text":   fmt.Sprintf("%s REQUEST - awaiting terminal verdict", label),
		"blocks": blocks,
	})
}

func actionLabel(approval core.PendingApproval) string {
	if approval.Action == core.ActionReply {
		return "REPLY"
	}
	return "RESHARE"
}

func requestBlocks(approval core.PendingApproval, title string) []any {
	blocks := []any{
		header(title),
		fields(
			fmt.Sprintf("*Author:* @%s", approval.AuthorHandle),
			fmt.Sprintf("*Sentiment:* %s", approval.Sentiment),
			fmt.Sprintf("*Platform:* %s", approval.Platform),
			fmt.Sprintf("*Score:* %d/10", approval.Score),
		),
		section(fmt.Sprintf("*Original post:*\n> %s", clip(approval.PostText, 500))),
	}

	if approval.Action == core.ActionReply && approval.ReplyText != "" {
		blocks = append(blocks, section(fmt.Sprintf("*Proposed reply:*\n```%s```", approval.ReplyText)))
	}

	return append(blocks, section(fmt.Sprintf("*Reasoning:*\n_%s_", approval.Reason)))
}

func (s *Slack) IgnoredPost(ctx context.Context, post core.CandidatePost, decision core.Decision) error {
	return s.post(ctx, map[string]any{
		"text": fmt.Sprintf("Ignored post from @%s", post.AuthorHandle),
		"blocks": []any{
			section(fmt.Sprintf(
				"*Ignored* post from @%s (sentiment: %s)\n> %s\n_%s_",
				post.AuthorHandle, decision.Sentiment, clip(post.Text, 300), decision.Reason,
			)),
		},
	})
}

func (s *Slack) Resolved(ctx context.Context, approval core.PendingApproval, messageTS string, executed bool) error {
	var text string
	switch {
	case approval.Status == core.StatusApproved && executed:
		text = "APPROVED & POSTED"
	case approval.Status == core.StatusApproved:
		text = "APPROVED - but posting failed, check logs"
	case approval.Status == core.StatusRejected:
		text = "REJECTED - will not be posted"
	case approval.Status == core.StatusExpired:
		text = "EXPIRED - no response in time, will not be posted"
	}

	payload := map[string]any{
		"text": fmt.Sprintf("Approval for @%s: %s", approval.AuthorHandle, text),
	}
	if messageTS != "" {
		payload["thread_ts"] = messageTS
	}
	return s.post(ctx, payload)
}

func (s *Slack) post(ctx context.Context, payload map[string]any) error {
	if s.Config.SlackWebhookURL == "" {
		return nil
	}

	resp, err := s.client.R().
		WithContext(ctx).
		SetBody(payload).
		Post(s.Config.SlackWebhookURL)
	if err != nil {
		s.Logger.Error("failed to send Slack notification", "error", err)
		return nil
	}
	if resp.IsError() {
		s.Logger.Error("Slack webhook rejected notification", "status", resp.StatusCode())
	}
	return nil
}

func postURL(approval core.PendingApproval) string {
	// at://did:plc:xxx/app.bsky.feed.post/rkey -> bsky.app profile URL
	if i := strings.LastIndex(approval.PostID, "/app.bsky.feed.post/"); i >= 0 {
		rkey := approval.PostID[i+len("/app.bsky.feed.post/"):]
		return fmt.Sprintf("<https://bsky.app/profile/%s/post/%s|View on Bluesky>", approval.AuthorHandle, rkey)
	}
	return "URL not available"
}

func header(text string) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{"type": "plain_text", "text": text},
	}
}

func section(text string) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{"type": "mrkdwn", "text": text},
	}
}

func fields(texts ...string) map[string]any {
	items := make([]any, 0, len(texts))
	for _, text := range texts {
		items = append(items, map[string]any{"type": "mrkdwn", "text": text})
	}
	return map[string]any{"type": "section", "fields": items}
}

func contextBlock(text string) map[string]any {
	return map[string]any{
		"type":     "context",
		"elements": []any{map[string]any{"type": "mrkdwn", "text": text}},
	}
}

func button(text, style, value, actionID string) map[string]any {
	return map[string]any{
		"type":      "button",
		"text":      map[string]any{"type": "plain_text", "text": text},
		"style":     style,
		"value":     value,
		"action_id": actionID,
	}
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
