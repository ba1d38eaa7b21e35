package engagement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/zhulik/pips"
	"github.com/zhulik/pips/apply"

	"skyreach/internal/config"
	"skyreach/internal/core"
)

// Orchestrator drives the polling cycle: search each keyword, enrich the
// candidates with follower counts, and feed them one by one through the
// processor. Cycles are strictly sequential, a slow cycle delays the next
// tick rather than overlapping it.
type Orchestrator struct {
	Logger    *slog.Logger
	Config    *config.Config
	Platform  core.PlatformClient
	Processor core.CandidateProcessor
	Log       core.ResponseLog
}

func (o *Orchestrator) Init(_ context.Context) error {
	o.Logger = o.Logger.With("component", "engagement.Orchestrator")
	return nil
}

func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.Config.PollInterval)
	defer ticker.Stop()

	for {
		if err := o.cycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			o.Logger.Error("cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) cycle(ctx context.Context) error {
	started := time.Now()

	posts, err := o.fetch(ctx)
	if err != nil {
		return err
	}

	o.Logger.Info("cycle started", "candidates", len(posts))

	processed := 0

	for _, post := range posts {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := o.Processor.Process(ctx, post)

		switch {
		case err == nil:
			processed++
		case errors.Is(err, core.ErrStoreUnavailable):
			// Without the store every dedup check is blind, stop the
			// whole cycle rather than risk duplicate actions.
			return err
		case Skippable(err):
		default:
			o.Logger.Warn("candidate failed", "post", post.ID, "error", err)
		}
	}

	o.cleanup(ctx)

	o.Logger.Info("cycle finished", "processed", processed, "elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

// fetch fans the configured keywords out through the platform search and
// collects the deduplicated union of results.
func (o *Orchestrator) fetch(ctx context.Context) ([]core.CandidatePost, error) {
	var (
		posts []core.CandidatePost
		ids   = map[string]struct{}{}
	)

	ch := make(chan pips.D[string])

	go func() {
		defer close(ch)

		for _, keyword := range o.Config.Keywords {
			select {
			case <-ctx.Done():
				return
			case ch <- pips.NewD(keyword):
			}
		}
	}()

	err := pips.New[string, any]().
		Then(
			apply.Map(func(ctx context.Context, keyword string) ([]core.CandidatePost, error) {
				found, err := o.Platform.Search(ctx, keyword, o.Config.FetchLimit)
				if err != nil {
					o.Logger.Warn("search failed", "keyword", keyword, "error", err)
					return nil, nil
				}
				return found, nil
			}),
		).
		Then(
			apply.Each(func(_ context.Context, batch []core.CandidatePost) error {
				for _, post := range batch {
					if _, ok := ids[post.ID]; ok {
						continue
					}
					ids[post.ID] = struct{}{}
					posts = append(posts, post)
				}
				return nil
			}),
		).
		Run(ctx, ch).
		Wait(ctx)
	if err != nil {
		return nil, err
	}

	o.enrich(ctx, posts)

	return posts, nil
}

// enrich fills in profile fields the search response did not carry.
// Lookup failures leave the follower count at zero, which the quality
// filter treats as unknown.
func (o *Orchestrator) enrich(ctx context.Context, posts []core.CandidatePost) {
	profiles := map[string]core.AuthorProfile{}

	for i, post := range posts {
		if post.AuthorFollowers > 0 && post.AuthorHandle != "" {
			continue
		}

		profile, ok := profiles[post.AuthorDID]
		if !ok {
			var err error

			profile, err = o.Platform.Profile(ctx, post.AuthorDID)
			if err != nil {
				o.Logger.Debug("profile lookup failed", "actor", post.AuthorDID, "error", err)
				profile = core.AuthorProfile{}
			}

			profiles[post.AuthorDID] = profile
		}

		if posts[i].AuthorFollowers == 0 {
			posts[i].AuthorFollowers = profile.Followers
		}
		if posts[i].AuthorHandle == "" {
			posts[i].AuthorHandle = profile.Handle
		}
	}
}

// cleanup trims response log entries past the retention horizon. Best
// effort, once per cycle.
func (o *Orchestrator) cleanup(ctx context.Context) {
	if o.Config.RetentionDays <= 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -o.Config.RetentionDays)

	deleted, err := o.Log.DeleteBefore(ctx, cutoff)
	if err != nil {
		o.Logger.Warn("retention cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		o.Logger.Info("retention cleanup", "deleted", deleted)
	}
}
