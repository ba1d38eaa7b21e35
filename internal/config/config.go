package config

import "time"

type Config struct {
	DatabaseURL string `flag:"database-url"`
	NATSURL     string `flag:"nats-url"`
	NATSInit    bool   `flag:"nats-init"`
	LogLevel    string `flag:"log-level"`
	MetricsAddr string `flag:"metrics-addr"`

	Keywords     []string      `flag:"keywords"`
	PollInterval time.Duration `flag:"poll-interval"`
	FetchLimit   int           `flag:"fetch-limit"`

	MaxPostAge   time.Duration `flag:"max-post-age"`
	MinFollowers int           `flag:"min-followers"`

	MaxPerHour   int           `flag:"max-per-hour"`
	MaxPerDay    int           `flag:"max-per-day"`
	MinActionGap time.Duration `flag:"min-action-gap"`

	ApprovalMode    string        `flag:"approval-mode"`
	ApprovalTimeout time.Duration `flag:"approval-timeout"`
	CallbackAddr    string        `flag:"callback-addr"`

	SlackWebhookURL    string `flag:"slack-webhook-url"`
	SlackSigningSecret string `flag:"slack-signing-secret"`

	AnthropicAPIKey  string        `flag:"anthropic-api-key"`
	AnthropicBaseURL string        `flag:"anthropic-base-url"`
	AnthropicModel   string        `flag:"anthropic-model"`
	DecisionTimeout  time.Duration `flag:"decision-timeout"`

	BlueskyHost        string `flag:"bluesky-host"`
	BlueskyHandle      string `flag:"bluesky-handle"`
	BlueskyAppPassword string `flag:"bluesky-app-password"`

	BotUsername   string `flag:"bot-username"`
	WebsiteURL    string `flag:"website-url"`
	MaxReplyChars int    `flag:"max-reply-chars"`

	ActionRetries     int           `flag:"action-retries"`
	ActionRetryBudget time.Duration `flag:"action-retry-budget"`
	RetentionDays     int           `flag:"retention-days"`
}

// ManualApproval reports whether the operator approves at the terminal.
func (c *Config) ManualApproval() bool {
	return c.ApprovalMode == "manual"
}
