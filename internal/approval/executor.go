package approval

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"skyreach/internal/config"
	"skyreach/internal/core"
	inats "skyreach/internal/nats"
	"skyreach/pkg/backoff"
)

var (
	resolutionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyreach_resolutions_processed_total",
		Help: "The total number of processed approval resolutions.",
	}, []string{"choice", "outcome"})
)

const rateLimitedRetryDelay = 5 * time.Minute

// Executor consumes verified resolutions and carries them out: it makes
// the pending -> approved|rejected transition (first one wins), re-checks
// the rate limiter at execution time, performs the platform action with
// bounded backoff, and records the outcome. Rate-limited approvals are
// redelivered later rather than dropped.
type Executor struct {
	Logger    *slog.Logger
	Config    *config.Config
	NATS      *inats.NATS
	Approvals core.ApprovalRepository
	Seen      core.SeenStore
	Log       core.ResponseLog
	Limiter   core.RateLimiter
	Platform  core.PlatformClient
	Notifier  core.Notifier
}

func (e *Executor) Init(_ context.Context) error {
	e.Logger = e.Logger.With("component", "approval.Executor")
	return nil
}

func (e *Executor) Run(ctx context.Context) error {
	cons, err := e.NATS.Consumer(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			e.Logger.Error("fetch failed, retrying", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for msg := range batch.Messages() {
			e.consume(ctx, msg)
		}
	}
}

func (e *Executor) consume(ctx context.Context, msg jetstream.Msg) {
	var resolution core.Resolution
	if err := json.Unmarshal(msg.Data(), &resolution); err != nil {
		e.Logger.Error("dropping malformed resolution", "error", err)
		msg.Ack() //nolint:errcheck
		return
	}

	err := e.Handle(ctx, resolution)
	switch {
	case errors.Is(err, core.ErrRateLimited):
		e.Logger.Info("approved action rate limited, will retry", "token", resolution.Token)
		msg.NakWithDelay(rateLimitedRetryDelay) //nolint:errcheck
	case errors.Is(err, core.ErrStoreUnavailable):
		e.Logger.Error("store unavailable, will retry", "error", err)
		msg.NakWithDelay(time.Minute) //nolint:errcheck
	case err != nil:
		e.Logger.Error("failed to process resolution", "error", err, "token", resolution.Token)
		msg.Ack() //nolint:errcheck
	default:
		msg.Ack() //nolint:errcheck
	}
}

// Handle applies one resolution. It is idempotent: redelivery of an
// already-resolved token changes nothing.
func (e *Executor) Handle(ctx context.Context, resolution core.Resolution) error {
	if resolution.Choice == "reject" {
		return e.reject(ctx, resolution)
	}
	return e.approve(ctx, resolution)
}

func (e *Executor) reject(ctx context.Context, resolution core.Resolution) error {
	approval, err := e.Approvals.Resolve(ctx, resolution.Token, core.StatusRejected, time.Now())
	if err != nil {
		if errors.Is(err, core.ErrApprovalResolved) {
			if err := e.ensureSeen(ctx, resolution.Token); err != nil {
				return err
			}
			resolutionsProcessed.WithLabelValues("reject", "duplicate").Inc()
			return nil
		}
		return err
	}

	// Rejected posts are marked seen so they are not proposed again.
	err = e.Seen.MarkSeen(ctx, core.SeenPost{
		PostID:       approval.PostID,
		Platform:     approval.Platform,
		AuthorHandle: approval.AuthorHandle,
		SeenAt:       time.Now(),
	})
	if err != nil {
		return err
	}

	_ = e.Notifier.Resolved(ctx, *approval, resolution.MessageTS, false)
	resolutionsProcessed.WithLabelValues("reject", "resolved").Inc()
	e.Logger.Info("approval rejected", "token", resolution.Token, "post", approval.PostID)
	return nil
}

// ensureSeen backfills the seen mark for an already-resolved token.
// A redelivery can reach this point because the first delivery lost the
// CAS race, but also because it won and then failed to mark the post
// seen; the mark has to be in place before the message is acked for
// good, or the post becomes proposable again.
func (e *Executor) ensureSeen(ctx context.Context, token string) error {
	approval, err := e.Approvals.Get(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrApprovalNotFound) {
			return nil
		}
		return err
	}

	seen, err := e.Seen.HasSeen(ctx, approval.PostID, approval.Platform)
	if err != nil || seen {
		return err
	}

	return e.Seen.MarkSeen(ctx, core.SeenPost{
		PostID:       approval.PostID,
		Platform:     approval.Platform,
		AuthorHandle: approval.AuthorHandle,
		SeenAt:       time.Now(),
	})
}

func (e *Executor) approve(ctx context.Context, resolution core.Resolution) error {
	// Admission happens now, not when the decision was made: time has
	// passed since the approval request went out.
	ok, err := e.Limiter.CanAct(ctx, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrRateLimited
	}

	approval, err := e.Approvals.Resolve(ctx, resolution.Token, core.StatusApproved, time.Now())
	if err != nil {
		if errors.Is(err, core.ErrApprovalResolved) {
			if err := e.ensureSeen(ctx, resolution.Token); err != nil {
				return err
			}
			resolutionsProcessed.WithLabelValues("approve", "duplicate").Inc()
			return nil
		}
		return err
	}

	post := core.CandidatePost{
		ID:           approval.PostID,
		CID:          approval.PostCID,
		Platform:     approval.Platform,
		AuthorHandle: approval.AuthorHandle,
		Text:         approval.PostText,
	}

	policy := backoff.Policy{
		MaxAttempts: e.Config.ActionRetries,
		Budget:      e.Config.ActionRetryBudget,
		BaseDelay:   2 * time.Second,
		MaxDelay:    time.Minute,
	}

	actErr := policy.Do(ctx, func(ctx context.Context) error {
		if approval.Action == core.ActionReshare {
			return e.Platform.Reshare(ctx, post)
		}
		return e.Platform.Reply(ctx, post, approval.ReplyText)
	})

	err = e.Seen.MarkSeen(ctx, core.SeenPost{
		PostID:       approval.PostID,
		Platform:     approval.Platform,
		AuthorHandle: approval.AuthorHandle,
		Responded:    actErr == nil,
		SeenAt:       time.Now(),
	})
	if err != nil {
		return err
	}

	if actErr != nil {
		// Retries exhausted: permanent skip, no log entry.
		e.Logger.Warn("approved action failed permanently", "token", resolution.Token, "post", approval.PostID, "error", actErr)
		_ = e.Notifier.Resolved(ctx, *approval, resolution.MessageTS, false)
		resolutionsProcessed.WithLabelValues("approve", "action_failed").Inc()
		return nil
	}

	text := approval.ReplyText
	if approval.Action == core.ActionReshare {
		text = "[RESHARED]"
	}

	err = e.Log.Append(ctx, core.ResponseLogEntry{
		PostID:       approval.PostID,
		Platform:     approval.Platform,
		AuthorHandle: approval.AuthorHandle,
		Action:       approval.Action,
		Sentiment:    approval.Sentiment,
		ResponseText: text,
		PostedAt:     time.Now(),
	})
	if err != nil {
		return err
	}

	_ = e.Notifier.Resolved(ctx, *approval, resolution.MessageTS, true)
	resolutionsProcessed.WithLabelValues("approve", "executed").Inc()
	e.Logger.Info("approved action executed", "token", resolution.Token, "post", approval.PostID, "action", approval.Action)
	return nil
}
