package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"skyreach/internal/config"
	"skyreach/internal/core"
	"skyreach/pkg/backoff"
)

var (
	postsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyreach_posts_processed_total",
		Help: "The total number of processed candidate posts, by outcome.",
	}, []string{"outcome"})

	decisionsMade = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyreach_decisions_total",
		Help: "The total number of decisions, by action.",
	}, []string{"action"})
)

// Processor runs one candidate through the pipeline:
// dedup -> quality filter -> classify -> admit -> approve -> act -> record.
// The decision engine is only ever called for fresh, unseen candidates,
// and the seen mark is the last thing written for an ignored post and the
// first thing written after a successful action.
type Processor struct {
	Logger    *slog.Logger
	Config    *config.Config
	Seen      core.SeenStore
	Log       core.ResponseLog
	Approvals core.ApprovalRepository
	Limiter   core.RateLimiter
	Engine    core.DecisionEngine
	Platform  core.PlatformClient
	Notifier  core.Notifier
	Approver  core.Approver
}

func (p *Processor) Init(_ context.Context) error {
	p.Logger = p.Logger.With("component", "engagement.Processor")
	return nil
}

func (p *Processor) Process(ctx context.Context, post core.CandidatePost) error {
	logger := p.Logger.With("post", post.ID, "author", post.AuthorHandle)

	skip, err := p.alreadyHandled(ctx, post)
	if err != nil {
		return err
	}
	if skip {
		logger.Debug("already handled")
		postsProcessed.WithLabelValues("duplicate").Inc()
		return nil
	}

	// Cheap local filters run before the external call. Filtered posts
	// stay unseen: a stale post keeps failing this check for free until
	// the search window leaves it behind.
	if err := p.qualityFilter(post); err != nil {
		logger.Debug("filtered out", "reason", err)
		postsProcessed.WithLabelValues("filtered").Inc()
		return err
	}

	decision, err := p.Engine.Decide(ctx, post)
	if err != nil {
		// Unseen on purpose: the post is retried next cycle.
		postsProcessed.WithLabelValues("decision_unavailable").Inc()
		return err
	}

	decisionsMade.WithLabelValues(string(decision.Action)).Inc()

	if decision.Action == core.ActionIgnore {
		if err := p.markSeen(ctx, post, false); err != nil {
			return err
		}
		_ = p.Notifier.IgnoredPost(ctx, post, decision)
		postsProcessed.WithLabelValues("ignored").Inc()
		return nil
	}

	ok, err := p.Limiter.CanAct(ctx, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		// Deferral: left unseen, re-proposed next cycle until it ages out.
		postsProcessed.WithLabelValues("rate_limited").Inc()
		return core.ErrRateLimited
	}

	verdict, err := p.Approver.Approve(ctx, post, decision)
	if err != nil {
		return err
	}

	if verdict.Deferred {
		// Remote mode: resolution arrives through the callback handler.
		postsProcessed.WithLabelValues("deferred").Inc()
		return nil
	}

	if !verdict.Granted {
		// Rejected by the operator: seen, so it is not proposed again.
		postsProcessed.WithLabelValues("rejected").Inc()
		return p.markSeen(ctx, post, false)
	}

	return p.execute(ctx, post, decision, verdict.Text)
}

// execute performs the platform action, then marks the post seen and
// appends the response log entry, in that order. A crash between the
// action and the seen mark is the only window where a duplicate could
// occur; accepted residual risk.
func (p *Processor) execute(ctx context.Context, post core.CandidatePost, decision core.Decision, text string) error {
	policy := backoff.Policy{
		MaxAttempts: p.Config.ActionRetries,
		Budget:      p.Config.ActionRetryBudget,
		BaseDelay:   2 * time.Second,
		MaxDelay:    time.Minute,
	}

	actErr := policy.Do(ctx, func(ctx context.Context) error {
		if decision.Action == core.ActionReshare {
			return p.Platform.Reshare(ctx, post)
		}
		return p.Platform.Reply(ctx, post, text)
	})

	if actErr != nil {
		// Retries exhausted: permanent skip so a consistently failing
		// post can not cause a retry storm. No log entry.
		if err := p.markSeen(ctx, post, false); err != nil {
			return err
		}
		postsProcessed.WithLabelValues("action_failed").Inc()
		return fmt.Errorf("%w: %w", core.ErrActionFailed, actErr)
	}

	if err := p.markSeen(ctx, post, true); err != nil {
		return err
	}

	logText := text
	if decision.Action == core.ActionReshare {
		logText = "[RESHARED]"
	}

	err := p.Log.Append(ctx, core.ResponseLogEntry{
		PostID:       post.ID,
		Platform:     post.Platform,
		AuthorHandle: post.AuthorHandle,
		Action:       decision.Action,
		Sentiment:    decision.Sentiment,
		ResponseText: logText,
		PostedAt:     time.Now(),
	})
	if err != nil {
		return err
	}

	postsProcessed.WithLabelValues("executed").Inc()
	p.Logger.Info("action executed", "post", post.ID, "action", decision.Action)
	return nil
}

func (p *Processor) alreadyHandled(ctx context.Context, post core.CandidatePost) (bool, error) {
	seen, err := p.Seen.HasSeen(ctx, post.ID, post.Platform)
	if err != nil || seen {
		return seen, err
	}

	responded, err := p.Seen.HasResponded(ctx, post.ID, post.Platform)
	if err != nil || responded {
		return responded, err
	}

	// An open approval holds the post without marking it seen.
	return p.Approvals.HasPending(ctx, post.ID, post.Platform)
}

func (p *Processor) qualityFilter(post core.CandidatePost) error {
	if post.Text == "" {
		return fmt.Errorf("%w: no text", core.ErrQualityFiltered)
	}
	if post.IsReply {
		return fmt.Errorf("%w: reply post", core.ErrQualityFiltered)
	}
	if post.AuthorHandle == p.Config.BlueskyHandle ||
		(post.AuthorDID != "" && post.AuthorDID == p.Platform.Self().DID) {
		return fmt.Errorf("%w: own post", core.ErrQualityFiltered)
	}
	if post.AuthorFollowers > 0 && post.AuthorFollowers < p.Config.MinFollowers {
		return fmt.Errorf("%w: author has %d followers", core.ErrQualityFiltered, post.AuthorFollowers)
	}
	if !post.CreatedAt.IsZero() && time.Since(post.CreatedAt) > p.Config.MaxPostAge {
		return fmt.Errorf("%w: posted %s ago", core.ErrStalePost, time.Since(post.CreatedAt).Round(time.Minute))
	}
	return nil
}

func (p *Processor) markSeen(ctx context.Context, post core.CandidatePost, responded bool) error {
	return p.Seen.MarkSeen(ctx, core.SeenPost{
		PostID:       post.ID,
		Platform:     post.Platform,
		AuthorHandle: post.AuthorHandle,
		Responded:    responded,
		SeenAt:       time.Now(),
	})
}

// Skippable reports whether a per-post error is an expected skip rather
// than a failure worth a warning.
func Skippable(err error) bool {
	return errors.Is(err, core.ErrQualityFiltered) ||
		errors.Is(err, core.ErrStalePost) ||
		errors.Is(err, core.ErrRateLimited)
}
