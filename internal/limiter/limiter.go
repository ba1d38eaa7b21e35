package limiter

import (
	"context"
	"log/slog"
	"time"

	"skyreach/internal/config"
	"skyreach/internal/core"
)

// Limiter admits actions based on trailing windows over the response log:
// an hourly cap, a daily cap, and a minimum gap between consecutive
// actions. Windows slide with the log timestamps, there are no calendar
// buckets. Denial is deferral, not failure: the candidate is retried on
// a later cycle until it ages out.
type Limiter struct {
	Logger *slog.Logger
	Config *config.Config
	Log    core.ResponseLog
}

func (l *Limiter) Init(_ context.Context) error {
	l.Logger = l.Logger.With("component", "limiter")
	return nil
}

func (l *Limiter) CanAct(ctx context.Context, now time.Time) (bool, error) {
	hourly, err := l.Log.CountSince(ctx, core.PlatformBluesky, now.Add(-time.Hour))
	if err != nil {
		return false, err
	}
	if hourly >= int64(l.Config.MaxPerHour) {
		l.Logger.Warn("hourly limit reached", "count", hourly, "cap", l.Config.MaxPerHour)
		return false, nil
	}

	daily, err := l.Log.CountSince(ctx, core.PlatformBluesky, now.Add(-24*time.Hour))
	if err != nil {
		return false, err
	}
	if daily >= int64(l.Config.MaxPerDay) {
		l.Logger.Warn("daily limit reached", "count", daily, "cap", l.Config.MaxPerDay)
		return false, nil
	}

	if l.Config.MinActionGap > 0 {
		last, err := l.Log.LastPostedAt(ctx, core.PlatformBluesky)
		if err != nil {
			return false, err
		}
		if last != nil && now.Sub(*last) < l.Config.MinActionGap {
			l.Logger.Debug("too soon since last action", "since", now.Sub(*last), "gap", l.Config.MinActionGap)
			return false, nil
		}
	}

	return true, nil
}
