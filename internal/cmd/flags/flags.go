package flags

import (
	"fmt"
	"slices"
	"time"

	libnats "github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

var validApprovalModes = []string{"manual", "remote"}

var LogLevel = &cli.StringFlag{
	Name:    "log-level",
	Aliases: []string{"l"},
	Usage:   "The level of the logs",
	Value:   "info",
	Validator: func(value string) error {
		if !slices.Contains(validLogLevels, value) {
			return fmt.Errorf("invalid log level: %s, allowed values are: %s", value, validLogLevels)
		}
		return nil
	},
	Sources: cli.EnvVars("LOG_LEVEL"),
}

var DatabaseURL = &cli.StringFlag{
	Name:    "database-url",
	Usage:   "The URL of the PostgreSQL database",
	Value:   "postgres://localhost:5432/skyreach?sslmode=disable",
	Sources: cli.EnvVars("DATABASE_URL"),
}

var NATSUrl = &cli.StringFlag{
	Name:    "nats-url",
	Aliases: []string{"n"},
	Usage:   "The URL of the NATS server",
	Value:   libnats.DefaultURL,
	Sources: cli.EnvVars("NATS_URL"),
}

var InitNATS = &cli.BoolFlag{
	Name:        "nats-init",
	Aliases:     []string{"i"},
	Usage:       "Initialize the NATS server: create streams, consumers, etc.",
	DefaultText: "false",
	Value:       false,
	Sources:     cli.EnvVars("NATS_INIT"),
}

var MetricsAddr = &cli.StringFlag{
	Name:    "metrics-addr",
	Usage:   "The address the metrics server listens on",
	Value:   ":8080",
	Sources: cli.EnvVars("METRICS_ADDR"),
}

var Keywords = &cli.StringSliceFlag{
	Name:     "keywords",
	Aliases:  []string{"k"},
	Usage:    "Keywords to search posts for",
	Required: true,
	Sources:  cli.EnvVars("KEYWORDS"),
}

var PollInterval = &cli.DurationFlag{
	Name:    "poll-interval",
	Usage:   "How often to poll for new posts",
	Value:   5 * time.Minute,
	Sources: cli.EnvVars("POLL_INTERVAL"),
}

var FetchLimit = &cli.IntFlag{
	Name:    "fetch-limit",
	Usage:   "How many posts to fetch per keyword per cycle",
	Value:   25,
	Sources: cli.EnvVars("FETCH_LIMIT"),
}

var MaxPostAge = &cli.DurationFlag{
	Name:    "max-post-age",
	Usage:   "Posts older than this are never considered",
	Value:   2 * time.Hour,
	Sources: cli.EnvVars("MAX_POST_AGE"),
}

var MinFollowers = &cli.IntFlag{
	Name:    "min-followers",
	Usage:   "Authors with fewer followers are skipped, 0 disables the check",
	Value:   25,
	Sources: cli.EnvVars("MIN_FOLLOWERS"),
}

var MaxPerHour = &cli.IntFlag{
	Name:    "max-per-hour",
	Usage:   "Maximum actions in a trailing hour",
	Value:   20,
	Sources: cli.EnvVars("MAX_PER_HOUR"),
}

var MaxPerDay = &cli.IntFlag{
	Name:    "max-per-day",
	Usage:   "Maximum actions in a trailing day",
	Value:   150,
	Sources: cli.EnvVars("MAX_PER_DAY"),
}

var MinActionGap = &cli.DurationFlag{
	Name:    "min-action-gap",
	Usage:   "Minimum pause between two actions",
	Value:   2 * time.Minute,
	Sources: cli.EnvVars("MIN_ACTION_GAP"),
}

var ApprovalMode = &cli.StringFlag{
	Name:  "approval-mode",
	Usage: "Where actions are approved: manual (terminal) or remote (Slack)",
	Value: "manual",
	Validator: func(value string) error {
		if !slices.Contains(validApprovalModes, value) {
			return fmt.Errorf("invalid approval mode: %s, allowed values are: %s", value, validApprovalModes)
		}
		return nil
	},
	Sources: cli.EnvVars("APPROVAL_MODE"),
}

var ApprovalTimeout = &cli.DurationFlag{
	Name:    "approval-timeout",
	Usage:   "Pending approvals older than this expire",
	Value:   4 * time.Hour,
	Sources: cli.EnvVars("APPROVAL_TIMEOUT"),
}

var CallbackAddr = &cli.StringFlag{
	Name:    "callback-addr",
	Usage:   "The address the approval callback server listens on",
	Value:   ":3000",
	Sources: cli.EnvVars("CALLBACK_ADDR"),
}

var SlackWebhookURL = &cli.StringFlag{
	Name:    "slack-webhook-url",
	Usage:   "Slack incoming webhook URL for notifications",
	Sources: cli.EnvVars("SLACK_WEBHOOK_URL"),
}

var SlackSigningSecret = &cli.StringFlag{
	Name:    "slack-signing-secret",
	Usage:   "Slack signing secret for callback verification",
	Sources: cli.EnvVars("SLACK_SIGNING_SECRET"),
}

var AnthropicAPIKey = &cli.StringFlag{
	Name:    "anthropic-api-key",
	Usage:   "Anthropic API key",
	Sources: cli.EnvVars("ANTHROPIC_API_KEY"),
}

var AnthropicBaseURL = &cli.StringFlag{
	Name:    "anthropic-base-url",
	Usage:   "Anthropic API base URL",
	Value:   "https://api.anthropic.com",
	Sources: cli.EnvVars("ANTHROPIC_BASE_URL"),
}

var AnthropicModel = &cli.StringFlag{
	Name:    "anthropic-model",
	Usage:   "The model used for classification and drafting",
	Value:   "claude-sonnet-4-20250514",
	Sources: cli.EnvVars("ANTHROPIC_MODEL"),
}

var DecisionTimeout = &cli.DurationFlag{
	Name:    "decision-timeout",
	Usage:   "Per-candidate budget for the decision engine",
	Value:   30 * time.Second,
	Sources: cli.EnvVars("DECISION_TIMEOUT"),
}

var BlueskyHost = &cli.StringFlag{
	Name:    "bluesky-host",
	Usage:   "The Bluesky PDS host",
	Value:   "https://bsky.social",
	Sources: cli.EnvVars("BLUESKY_HOST"),
}

var BlueskyHandle = &cli.StringFlag{
	Name:    "bluesky-handle",
	Usage:   "The handle the bot posts as",
	Sources: cli.EnvVars("BLUESKY_HANDLE"),
}

var BlueskyAppPassword = &cli.StringFlag{
	Name:    "bluesky-app-password",
	Usage:   "The app password for the bot account",
	Sources: cli.EnvVars("BLUESKY_APP_PASSWORD"),
}

var BotUsername = &cli.StringFlag{
	Name:    "bot-username",
	Usage:   "Display name used in notifications",
	Value:   "skyreach",
	Sources: cli.EnvVars("BOT_USERNAME"),
}

var WebsiteURL = &cli.StringFlag{
	Name:    "website-url",
	Usage:   "Website linked from call-to-action replies",
	Sources: cli.EnvVars("WEBSITE_URL"),
}

var MaxReplyChars = &cli.IntFlag{
	Name:    "max-reply-chars",
	Usage:   "Maximum reply length in characters",
	Value:   300,
	Sources: cli.EnvVars("MAX_REPLY_CHARS"),
}

var ActionRetries = &cli.IntFlag{
	Name:    "action-retries",
	Usage:   "How many times a failed platform action is retried",
	Value:   3,
	Sources: cli.EnvVars("ACTION_RETRIES"),
}

var ActionRetryBudget = &cli.DurationFlag{
	Name:    "action-retry-budget",
	Usage:   "Total time budget for retrying one platform action",
	Value:   2 * time.Minute,
	Sources: cli.EnvVars("ACTION_RETRY_BUDGET"),
}

var RetentionDays = &cli.IntFlag{
	Name:    "retention-days",
	Usage:   "Response log entries older than this are deleted, 0 disables cleanup",
	Value:   90,
	Sources: cli.EnvVars("RETENTION_DAYS"),
}
