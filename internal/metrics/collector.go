package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm/schema"

	"skyreach/internal/core"
)

var (
	tableCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "skyreach_table_estimated_count",
		Help: "Estimated record count for a table.",
	}, []string{"table"})

	windowUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "skyreach_rate_window_usage",
		Help: "Actions taken inside a trailing rate limit window.",
	}, []string{"window"})

	pendingApprovals = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skyreach_pending_approvals",
		Help: "Pending approvals awaiting a resolution.",
	})
)

// Collector periodically samples storage-derived gauges: table sizes,
// rate window usage and the pending approval backlog.
type Collector struct {
	Logger    *slog.Logger
	DB        core.DB
	Log       core.ResponseLog
	Approvals core.ApprovalRepository
}

func (c *Collector) Init(_ context.Context) error {
	c.Logger = c.Logger.With("component", "metrics.Collector")
	return nil
}

func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.collect(ctx); err != nil {
				c.Logger.Warn("collection failed", "error", err)
			}
		}
	}
}

func (c *Collector) collect(ctx context.Context) error {
	for _, tabler := range []schema.Tabler{core.SeenPost{}, core.ResponseLogEntry{}, core.PendingApproval{}} {
		count, err := c.DB.EstimatedCount(tabler.TableName())
		if err != nil {
			return err
		}

		tableCount.WithLabelValues(tabler.TableName()).Set(float64(count))
	}

	now := time.Now()

	hourly, err := c.Log.CountSince(ctx, core.PlatformBluesky, now.Add(-time.Hour))
	if err != nil {
		return err
	}
	windowUsage.WithLabelValues("hour").Set(float64(hourly))

	daily, err := c.Log.CountSince(ctx, core.PlatformBluesky, now.Add(-24*time.Hour))
	if err != nil {
		return err
	}
	windowUsage.WithLabelValues("day").Set(float64(daily))

	pending, err := c.Approvals.CountPending(ctx, core.PlatformBluesky)
	if err != nil {
		return err
	}
	pendingApprovals.Set(float64(pending))

	return nil
}
