package cmd

import (
	"context"
	"time"

	"github.com/k0kubun/pp"
	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"skyreach/internal/cmd/flags"
	"skyreach/internal/core"
	"skyreach/internal/persistence"
	"skyreach/internal/persistence/approvals"
	"skyreach/internal/persistence/responses"
	"skyreach/internal/persistence/seen"
)

var statsCmd = &cli.Command{
	Name:  "stats",
	Usage: "Print engagement activity counters",
	Flags: []cli.Flag{
		flags.DatabaseURL,
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		return run(ctx, c,
			pal.Provide[core.DB](&persistence.DB{}),
			pal.Provide[core.SeenStore](&seen.Repository{}),
			pal.Provide[core.ResponseLog](&responses.Repository{}),
			pal.Provide[core.ApprovalRepository](&approvals.Repository{}),
			pal.Provide(&statsPrinter{}),
		)
	},
}

type statsPrinter struct {
	DB        core.DB
	Log       core.ResponseLog
	Approvals core.ApprovalRepository
}

func (s *statsPrinter) Run(ctx context.Context) error {
	stats, err := s.collect(ctx)
	if err != nil {
		return err
	}

	pp.Println(stats)
	return nil
}

func (s *statsPrinter) collect(ctx context.Context) (core.Stats, error) {
	var stats core.Stats

	err := s.DB.Model(core.SeenPost{}).WithContext(ctx).Count(&stats.TotalSeen).Error
	if err != nil {
		return stats, err
	}

	err = s.DB.Model(core.ResponseLogEntry{}).WithContext(ctx).Count(&stats.TotalResponses).Error
	if err != nil {
		return stats, err
	}

	now := time.Now()

	stats.ResponsesToday, err = s.Log.CountSince(ctx, core.PlatformBluesky, now.Add(-24*time.Hour))
	if err != nil {
		return stats, err
	}

	stats.LastHour, err = s.Log.CountSince(ctx, core.PlatformBluesky, now.Add(-time.Hour))
	if err != nil {
		return stats, err
	}

	stats.PendingCount, err = s.Approvals.CountPending(ctx, core.PlatformBluesky)
	if err != nil {
		return stats, err
	}

	return stats, nil
}
