package approval

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"skyreach/internal/config"
	"skyreach/internal/core"
)

var (
	approvalsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skyreach_approvals_expired_total",
		Help: "The total number of pending approvals that timed out.",
	})
)

// Expirer sweeps pending approvals past the timeout into the expired
// state. Expired candidates are marked seen so they are not proposed
// again, and no action or log entry ever results from them.
type Expirer struct {
	Logger    *slog.Logger
	Config    *config.Config
	Approvals core.ApprovalRepository
	Seen      core.SeenStore
	Notifier  core.Notifier
}

func (e *Expirer) Init(_ context.Context) error {
	e.Logger = e.Logger.With("component", "approval.Expirer")
	return nil
}

func (e *Expirer) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.Sweep(ctx); err != nil {
				e.Logger.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

func (e *Expirer) Sweep(ctx context.Context) error {
	expired, err := e.Approvals.ExpireBefore(ctx, time.Now().Add(-e.Config.ApprovalTimeout))
	if err != nil {
		return err
	}

	for _, approval := range expired {
		err := e.Seen.MarkSeen(ctx, core.SeenPost{
			PostID:       approval.PostID,
			Platform:     approval.Platform,
			AuthorHandle: approval.AuthorHandle,
			SeenAt:       time.Now(),
		})
		if err != nil {
			return err
		}

		_ = e.Notifier.Resolved(ctx, approval, "", false)
		approvalsExpired.Inc()
		e.Logger.Info("approval expired", "token", approval.Token, "post", approval.PostID)
	}

	return nil
}
