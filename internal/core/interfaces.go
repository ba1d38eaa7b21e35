package core

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"
)

type DB interface {
	Model(a any) *gorm.DB
	EstimatedCount(tableName string) (int64, error)
	DB() (*sql.DB, error)
}

// SeenStore answers "have we already acted on this post?".
type SeenStore interface {
	HasSeen(ctx context.Context, postID, platform string) (bool, error)
	// MarkSeen is an idempotent insert. An existing mark is left untouched.
	MarkSeen(ctx context.Context, post SeenPost) error
	HasResponded(ctx context.Context, postID, platform string) (bool, error)
	MarkResponded(ctx context.Context, postID, platform string) error
}

// ResponseLog is the append-only record of executed actions. Rate windows
// are derived from it, never stored separately.
type ResponseLog interface {
	Append(ctx context.Context, entry ResponseLogEntry) error
	CountSince(ctx context.Context, platform string, since time.Time) (int64, error)
	LastPostedAt(ctx context.Context, platform string) (*time.Time, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ApprovalRepository interface {
	Create(ctx context.Context, approval *PendingApproval) error
	Get(ctx context.Context, token string) (*PendingApproval, error)
	HasPending(ctx context.Context, postID, platform string) (bool, error)
	// Resolve transitions pending -> status atomically. It returns
	// ErrApprovalResolved if the record already left the pending state
	// and ErrApprovalNotFound if no record exists for the token.
	Resolve(ctx context.Context, token string, status ApprovalStatus, at time.Time) (*PendingApproval, error)
	// ExpireBefore transitions every pending approval created before the
	// cutoff to expired and returns the expired records.
	ExpireBefore(ctx context.Context, cutoff time.Time) ([]PendingApproval, error)
	CountPending(ctx context.Context, platform string) (int64, error)
}

// RateLimiter admits or defers a new action based on trailing windows.
type RateLimiter interface {
	CanAct(ctx context.Context, now time.Time) (bool, error)
}

// DecisionEngine classifies a candidate and drafts a response when
// applicable. Failures and timeouts come back as ErrDecisionUnavailable.
type DecisionEngine interface {
	Decide(ctx context.Context, post CandidatePost) (Decision, error)
}

// PlatformClient is the social platform collaborator.
type PlatformClient interface {
	Search(ctx context.Context, keyword string, limit int) ([]CandidatePost, error)
	// Profile looks up an author's public profile by handle or DID.
	Profile(ctx context.Context, actor string) (AuthorProfile, error)
	// Self reports the authenticated account, for own-post guards.
	Self() AuthorProfile
	Reply(ctx context.Context, post CandidatePost, text string) error
	Reshare(ctx context.Context, post CandidatePost) error
}

// Notifier dispatches human-facing notifications. Fire and forget:
// delivery failures are logged, never propagated into the pipeline.
type Notifier interface {
	ApprovalRequest(ctx context.Context, approval PendingApproval) error
	// ManualReview announces a decision awaiting a verdict at the
	// terminal. No buttons: the operator decides at the console.
	ManualReview(ctx context.Context, approval PendingApproval) error
	IgnoredPost(ctx context.Context, post CandidatePost, decision Decision) error
	// Resolved announces the outcome of an approval. When messageTS is
	// set the notice is threaded under the original approval message.
	Resolved(ctx context.Context, approval PendingApproval, messageTS string, executed bool) error
}

// Verdict is the outcome of one approval attempt.
type Verdict struct {
	// Granted means the action may be executed now, with Text as the
	// final reply text (possibly edited by the operator).
	Granted bool
	Text    string
	// Deferred means resolution arrives later through the callback
	// handler; the candidate's state must stay untouched.
	Deferred bool
}

// Approver turns a decision into a verdict. Implementations are selected
// by configuration: terminal prompt or remote Slack buttons.
type Approver interface {
	Approve(ctx context.Context, post CandidatePost, decision Decision) (Verdict, error)
}
