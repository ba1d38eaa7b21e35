package cmd

import (
	"context"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"skyreach/internal/approval"
	"skyreach/internal/bluesky"
	"skyreach/internal/cmd/flags"
	"skyreach/internal/core"
	"skyreach/internal/metrics"
	"skyreach/internal/nats"
)

var approverCmd = &cli.Command{
	Name:  "approver",
	Usage: "Receive Slack approval callbacks and execute resolved actions",
	Flags: []cli.Flag{
		flags.DatabaseURL,
		flags.NATSUrl,
		flags.InitNATS,
		flags.MetricsAddr,
		flags.MaxPerHour,
		flags.MaxPerDay,
		flags.MinActionGap,
		flags.ApprovalTimeout,
		flags.CallbackAddr,
		flags.SlackWebhookURL,
		flags.SlackSigningSecret,
		flags.BlueskyHost,
		flags.BlueskyHandle,
		flags.BlueskyAppPassword,
		flags.ActionRetries,
		flags.ActionRetryBudget,
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		return run(ctx, c,
			storage(),
			acting(),
			nats.Provide(),
			pal.Provide[core.PlatformClient](&bluesky.Client{}),
			pal.Provide(&approval.Server{}),
			pal.Provide(&approval.Executor{}),
			pal.Provide(&approval.Expirer{}),
			pal.Provide(&metrics.Server{}),
			pal.Provide(&metrics.Collector{}),
		)
	},
}
