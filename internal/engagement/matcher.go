package engagement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bluesky-social/jetstream/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	"github.com/zhulik/pips"
	"github.com/zhulik/pips/apply"

	"skyreach/internal/config"
	"skyreach/internal/core"
)

var firehoseMatches = promauto.NewCounter(prometheus.CounterOpts{
	Name: "skyreach_firehose_matches_total",
	Help: "The total number of firehose posts matching a keyword.",
})

// Matcher consumes the live firehose and feeds keyword-matching post
// creations straight into the processor, skipping the polling delay.
type Matcher struct {
	Logger    *slog.Logger
	Config    *config.Config
	Firehose  core.FirehoseSource
	Platform  core.PlatformClient
	Processor core.CandidateProcessor

	keywords []string
}

type postRecord struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Reply     *struct{} `json:"reply"`
}

func (m *Matcher) Init(_ context.Context) error {
	m.Logger = m.Logger.With("component", "engagement.Matcher")

	m.keywords = lo.Map(m.Config.Keywords, func(keyword string, _ int) string {
		return strings.ToLower(keyword)
	})

	return nil
}

func (m *Matcher) Run(ctx context.Context) error {
	return pips.New[*core.BlueskyEvent, any]().
		Then(apply.Filter(m.matches)).
		Then(apply.Map(m.toCandidate)).
		Then(
			apply.Map(func(ctx context.Context, post core.CandidatePost) (any, error) {
				firehoseMatches.Inc()

				err := m.Processor.Process(ctx, post)
				if err != nil && !Skippable(err) {
					m.Logger.Warn("firehose candidate failed", "post", post.ID, "error", err)
				}

				return nil, nil
			}),
		).
		Run(ctx, m.Firehose.C()).
		Wait(ctx)
}

func (m *Matcher) matches(_ context.Context, event *core.BlueskyEvent) (bool, error) {
	if event.Kind != models.EventKindCommit || event.Commit == nil {
		return false, nil
	}

	commit := event.Commit
	if commit.Operation != models.CommitOperationCreate ||
		commit.Collection != "app.bsky.feed.post" ||
		commit.Record == nil {
		return false, nil
	}

	// Never engage our own posts.
	if event.Did == m.Platform.Self().DID {
		return false, nil
	}

	var record postRecord
	if err := json.Unmarshal(commit.Record, &record); err != nil {
		return false, nil
	}

	text := strings.ToLower(record.Text)

	for _, keyword := range m.keywords {
		if strings.Contains(text, keyword) {
			return true, nil
		}
	}

	return false, nil
}

func (m *Matcher) toCandidate(ctx context.Context, event *core.BlueskyEvent) (core.CandidatePost, error) {
	commit := event.Commit

	var record postRecord
	if err := json.Unmarshal(commit.Record, &record); err != nil {
		return core.CandidatePost{}, err
	}

	// Firehose commits identify the author only by DID. The profile
	// lookup supplies the handle and follower count; on failure both
	// stay at their unknown zero values.
	profile, err := m.Platform.Profile(ctx, event.Did)
	if err != nil {
		m.Logger.Debug("profile lookup failed", "actor", event.Did, "error", err)
		profile = core.AuthorProfile{}
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.UnixMicro(event.TimeUS)
	}

	return core.CandidatePost{
		ID:              fmt.Sprintf("at://%s/app.bsky.feed.post/%s", event.Did, commit.RKey),
		CID:             commit.CID,
		Text:            record.Text,
		AuthorDID:       event.Did,
		AuthorHandle:    profile.Handle,
		AuthorFollowers: profile.Followers,
		IsReply:         record.Reply != nil,
		CreatedAt:       createdAt,
		Platform:        core.PlatformBluesky,
	}, nil
}
