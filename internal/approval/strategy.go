package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"skyreach/internal/config"
	"skyreach/internal/core"
)

// Manual blocks the poll loop on an operator decision at the terminal:
// y posts as drafted, n skips, e edits the text first. Acceptable because
// in manual mode no callback handler runs concurrently.
type Manual struct {
	Logger   *slog.Logger
	Notifier core.Notifier

	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

func (m *Manual) Init(_ context.Context) error {
	m.Logger = m.Logger.With("component", "approval.Manual")
	if m.In == nil {
		m.In = os.Stdin
	}
	if m.Out == nil {
		m.Out = os.Stdout
	}
	m.scanner = bufio.NewScanner(m.In)
	return nil
}

func (m *Manual) Approve(ctx context.Context, post core.CandidatePost, decision core.Decision) (core.Verdict, error) {
	// FYI notification even in manual mode, so the channel has a record.
	// No buttons: the verdict comes from the terminal, not a callback.
	_ = m.Notifier.ManualReview(ctx, pendingFromDecision(post, decision, ""))

	if decision.Action == core.ActionReshare {
		fmt.Fprintf(m.Out, "\nRESHARE APPROVAL REQUIRED\n")
		fmt.Fprintf(m.Out, "Post from @%s: %s\n", post.AuthorHandle, clip(post.Text, 200))
		fmt.Fprintf(m.Out, "Reason: %s\n", decision.Reason)
		fmt.Fprintf(m.Out, "\nReshare this post? (y/n): ")

		if m.readLine() == "y" {
			return core.Verdict{Granted: true}, nil
		}
		m.Logger.Info("reshare skipped by operator")
		return core.Verdict{}, nil
	}

	fmt.Fprintf(m.Out, "\nREPLY APPROVAL REQUIRED (%s)\n", strings.ToUpper(string(decision.Style)))
	fmt.Fprintf(m.Out, "Post from @%s: %s\n", post.AuthorHandle, clip(post.Text, 100))
	fmt.Fprintf(m.Out, "Proposed reply: %s\n", decision.Draft)
	fmt.Fprintf(m.Out, "\nPost this reply? (y/n/e=edit): ")

	text := decision.Draft
	answer := m.readLine()
	if answer == "e" {
		fmt.Fprintf(m.Out, "Enter new reply: ")
		text = m.readRaw()
		answer = "y"
	}

	if answer != "y" {
		m.Logger.Info("reply skipped by operator")
		return core.Verdict{}, nil
	}
	return core.Verdict{Granted: true, Text: text}, nil
}

func (m *Manual) readLine() string {
	return strings.ToLower(m.readRaw())
}

// readRaw keeps the operator's casing, for edited reply text.
func (m *Manual) readRaw() string {
	if !m.scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(m.scanner.Text())
}

// Remote parks the decision as a pending approval and notifies Slack with
// Approve/Reject buttons. The poll loop moves on immediately; resolution
// arrives later through the callback server.
type Remote struct {
	Logger    *slog.Logger
	Config    *config.Config
	Approvals core.ApprovalRepository
	Notifier  core.Notifier
}

func (r *Remote) Init(_ context.Context) error {
	r.Logger = r.Logger.With("component", "approval.Remote")
	return nil
}

func (r *Remote) Approve(ctx context.Context, post core.CandidatePost, decision core.Decision) (core.Verdict, error) {
	approval := pendingFromDecision(post, decision, uuid.NewString())

	if err := r.Approvals.Create(ctx, &approval); err != nil {
		return core.Verdict{}, err
	}

	_ = r.Notifier.ApprovalRequest(ctx, approval)

	r.Logger.Info("approval request sent", "token", approval.Token, "action", approval.Action, "author", post.AuthorHandle)
	return core.Verdict{Deferred: true}, nil
}

func pendingFromDecision(post core.CandidatePost, decision core.Decision, token string) core.PendingApproval {
	return core.PendingApproval{
		Token:        token,
		PostID:       post.ID,
		PostCID:      post.CID,
		Platform:     post.Platform,
		AuthorHandle: post.AuthorHandle,
		PostText:     post.Text,
		Action:       decision.Action,
		Style:        decision.Style,
		ReplyText:    decision.Draft,
		Sentiment:    decision.Sentiment,
		Reason:       decision.Reason,
		Score:        decision.Score,
		Status:       core.StatusPending,
		CreatedAt:    time.Now(),
	}
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
