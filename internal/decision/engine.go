package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"resty.dev/v3"

	"skyreach/internal/config"
	"skyreach/internal/core"
)

const anthropicVersion = "2023-06-01"

// Engine asks Claude to classify a candidate post and, for replies, to
// draft the response. Two stages: first whether to engage at all, then
// how. Transport failures and deadline overruns surface as
// ErrDecisionUnavailable so the orchestrator retries the post next
// cycle; malformed or unrecognized model output degrades to ignore,
// never to a reply.
type Engine struct {
	Logger *slog.Logger
	Config *config.Config

	client *resty.Client
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type stageOneResult struct {
	ShouldEngage bool   `json:"should_engage"`
	Sentiment    string `json:"sentiment"`
	Reason       string `json:"reason"`
}

type stageTwoResult struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
	Score  int    `json:"engagement_score"`
}

func (e *Engine) Init(_ context.Context) error {
	e.Logger = e.Logger.With("component", "decision.Engine")

	e.client = resty.New().
		SetBaseURL(e.Config.AnthropicBaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-API-Key", e.Config.AnthropicAPIKey).
		SetHeader("Anthropic-Version", anthropicVersion)

	return nil
}

func (e *Engine) Shutdown(_ context.Context) error {
	return e.client.Close()
}

func (e *Engine) Decide(ctx context.Context, post core.CandidatePost) (core.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Config.DecisionTimeout)
	defer cancel()

	decision := core.Decision{
		PostID:    post.ID,
		Action:    core.ActionIgnore,
		DecidedAt: time.Now(),
	}

	var stage1 stageOneResult
	err := e.completeJSON(ctx, e.stageOnePrompt(post), &stage1)
	if err != nil {
		return decision, err
	}

	decision.Sentiment = stage1.Sentiment
	decision.Reason = stage1.Reason

	if !stage1.ShouldEngage {
		e.Logger.Info("ignoring post", "author", post.AuthorHandle, "sentiment", stage1.Sentiment, "reason", stage1.Reason)
		return decision, nil
	}

	var stage2 stageTwoResult
	err = e.completeJSON(ctx, e.stageTwoPrompt(post, stage1.Sentiment), &stage2)
	if err != nil {
		return decision, err
	}

	decision.Reason = stage1.Reason + " | " + stage2.Reason
	decision.Score = stage2.Score

	switch stage2.Action {
	case "reshare":
		decision.Action = core.ActionReshare
	case "reply_casual":
		decision.Action = core.ActionReply
		decision.Style = core.StyleCasual
	case "reply_with_cta":
		decision.Action = core.ActionReply
		decision.Style = core.StyleCTA
	default:
		// Anything unrecognized is an ignore. Never guess a reply.
		e.Logger.Warn("unrecognized action from model, ignoring", "action", stage2.Action)
		decision.Action = core.ActionIgnore
		return decision, nil
	}

	if decision.Action == core.ActionReply {
		draft, err := e.draft(ctx, post, decision.Style)
		if err != nil {
			return decision, err
		}
		decision.Draft = draft
	}

	e.Logger.Info("decision made",
		"author", post.AuthorHandle, "action", decision.Action,
		"sentiment", decision.Sentiment, "score", decision.Score)

	return decision, nil
}

func (e *Engine) draft(ctx context.Context, post core.CandidatePost, style core.ReplyStyle) (string, error) {
	text, err := e.complete(ctx, e.draftPrompt(post, style))
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if max := e.Config.MaxReplyChars; max > 0 && utf8.RuneCountInString(text) > max {
		// Cut on a rune boundary, never mid-codepoint.
		runes := []rune(text)
		if max > 3 {
			text = string(runes[:max-3]) + "..."
		} else {
			text = string(runes[:max])
		}
	}
	return text, nil
}

// completeJSON runs one completion and decodes the model's JSON answer.
// Decode failures leave out at its zero value: stage results default to
// not engaging.
func (e *Engine) completeJSON(ctx context.Context, prompt string, out any) error {
	text, err := e.complete(ctx, prompt)
	if err != nil {
		return err
	}

	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	if err := json.Unmarshal([]byte(text), out); err != nil {
		e.Logger.Error("model returned unparseable JSON", "error", err, "text", truncate(text, 120))
	}
	return nil
}

func (e *Engine) complete(ctx context.Context, prompt string) (string, error) {
	var result messagesResponse

	resp, err := e.client.R().
		WithContext(ctx).
		SetBody(messagesRequest{
			Model:     e.Config.AnthropicModel,
			MaxTokens: 300,
			Messages:  []message{{Role: "user", Content: prompt}},
		}).
		SetResult(&result).
		Post("/v1/messages")
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrDecisionUnavailable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: status %d", core.ErrDecisionUnavailable, resp.StatusCode())
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("%w: empty completion", core.ErrDecisionUnavailable)
	}

	return result.Content[0].Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
