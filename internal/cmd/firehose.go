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
	"skyreach/internal/nats"
)

// The firehose process has no terminal, so approvals are always remote.
var firehoseCmd = &cli.Command{
	Name:  "firehose",
	Usage: "Match keyword posts live from the Bluesky jetstream",
	Flags: []cli.Flag{
		flags.DatabaseURL,
		flags.NATSUrl,
		flags.InitNATS,
		flags.MetricsAddr,
		flags.Keywords,
		flags.MaxPostAge,
		flags.MinFollowers,
		flags.MaxPerHour,
		flags.MaxPerDay,
		flags.MinActionGap,
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
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		return run(ctx, c,
			storage(),
			acting(),
			nats.Provide(),
			pal.Provide[core.Approver](&approval.Remote{}),
			pal.Provide[core.DecisionEngine](&decision.Engine{}),
			pal.Provide[core.PlatformClient](&bluesky.Client{}),
			pal.Provide[core.FirehoseSource](&bluesky.Firehose{}),
			pal.Provide[core.CandidateProcessor](&engagement.Processor{}),
			pal.Provide(&engagement.Matcher{}),
			pal.Provide(&metrics.Server{}),
		)
	},
}
