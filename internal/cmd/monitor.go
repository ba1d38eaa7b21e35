package cmd

import (
	"context"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"skyreach/internal/approval"
	"skyreach/internal/bluesky"
	"skyreach/internal/cmd/flags"
	"skyreach/internal/core"
	"skyreach/internal/decision"
	"skyreach/internal/engagement"
	"skyreach/internal/metrics"
)

var monitorCmd = &cli.Command{
	Name:  "monitor",
	Usage: "Poll Bluesky for keyword matches and engage with approved posts",
	Flags: []cli.Flag{
		flags.DatabaseURL,
		flags.MetricsAddr,
		flags.Keywords,
		flags.PollInterval,
		flags.FetchLimit,
		flags.MaxPostAge,
		flags.MinFollowers,
		flags.MaxPerHour,
		flags.MaxPerDay,
		flags.MinActionGap,
		flags.ApprovalMode,
		flags.SlackWebhookURL,
		flags.AnthropicAPIKey,
		flags.AnthropicBaseURL,
		flags.AnthropicModel,
		flags.DecisionTimeout,
		flags.BlueskyHost,
		flags.BlueskyHandle,
		flags.BlueskyAppPassword,
		flags.BotUsername,
		flags.WebsiteURL,
		flags.MaxReplyChars,
		flags.ActionRetries,
		flags.ActionRetryBudget,
		flags.RetentionDays,
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		var approver pal.ServiceDef
		if c.String("approval-mode") == "manual" {
			approver = pal.Provide[core.Approver](&approval.Manual{})
		} else {
			approver = pal.Provide[core.Approver](&approval.Remote{})
		}

		return run(ctx, c,
			storage(),
			acting(),
			approver,
			pal.Provide[core.DecisionEngine](&decision.Engine{}),
			pal.Provide[core.PlatformClient](&bluesky.Client{}),
			pal.Provide[core.CandidateProcessor](&engagement.Processor{}),
			pal.Provide(&engagement.Orchestrator{}),
			pal.Provide(&metrics.Server{}),
			pal.Provide(&metrics.Collector{}),
		)
	},
}
