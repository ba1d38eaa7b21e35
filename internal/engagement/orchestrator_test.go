package engagement_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skyreach/internal/config"
	"skyreach/internal/core"
	"skyreach/internal/engagement"
)

type collectingProcessor struct {
	mu    sync.Mutex
	posts []core.CandidatePost
	done  chan struct{}
	want  int
}

func (c *collectingProcessor) Process(_ context.Context, post core.CandidatePost) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.posts = append(c.posts, post)
	if len(c.posts) == c.want {
		close(c.done)
	}
	return nil
}

type searchPlatform struct {
	results  map[string][]core.CandidatePost
	profiles map[string]core.AuthorProfile
	self     core.AuthorProfile
}

func (s *searchPlatform) Search(_ context.Context, keyword string, _ int) ([]core.CandidatePost, error) {
	return s.results[keyword], nil
}

func (s *searchPlatform) Profile(_ context.Context, actor string) (core.AuthorProfile, error) {
	return s.profiles[actor], nil
}

func (s *searchPlatform) Self() core.AuthorProfile { return s.self }

func (s *searchPlatform) Reply(context.Context, core.CandidatePost, string) error { return nil }

func (s *searchPlatform) Reshare(context.Context, core.CandidatePost) error { return nil }

func TestOrchestratorCycle(t *testing.T) {
	t.Parallel()

	solar := core.CandidatePost{ID: "at://a/post/1", AuthorDID: "did:plc:a", Platform: core.PlatformBluesky}
	wind := core.CandidatePost{ID: "at://b/post/2", AuthorDID: "did:plc:b", Platform: core.PlatformBluesky}

	platform := &searchPlatform{
		results: map[string][]core.CandidatePost{
			// The duplicate across keywords must be processed once.
			"solar": {solar, wind},
			"wind":  {wind},
		},
		profiles: map[string]core.AuthorProfile{
			"did:plc:a": {DID: "did:plc:a", Handle: "a.bsky.social", Followers: 100},
			"did:plc:b": {DID: "did:plc:b", Handle: "b.bsky.social", Followers: 200},
		},
	}

	processor := &collectingProcessor{done: make(chan struct{}), want: 2}

	orchestrator := &engagement.Orchestrator{
		Logger: slog.New(slog.DiscardHandler),
		Config: &config.Config{
			Keywords:     []string{"solar", "wind"},
			PollInterval: time.Hour,
			FetchLimit:   25,
		},
		Platform:  platform,
		Processor: processor,
		Log:       &fakeLog{},
	}
	require.NoError(t, orchestrator.Init(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	finished := make(chan error, 1)
	go func() { finished <- orchestrator.Run(ctx) }()

	select {
	case <-processor.done:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle did not process the expected posts")
	}

	cancel()
	require.NoError(t, <-finished)

	processor.mu.Lock()
	defer processor.mu.Unlock()

	require.Len(t, processor.posts, 2)

	byID := map[string]core.CandidatePost{}
	for _, post := range processor.posts {
		byID[post.ID] = post
	}

	// Profiles were enriched before processing: follower counts and
	// the handles the search response did not carry.
	require.Equal(t, 100, byID["at://a/post/1"].AuthorFollowers)
	require.Equal(t, "a.bsky.social", byID["at://a/post/1"].AuthorHandle)
	require.Equal(t, 200, byID["at://b/post/2"].AuthorFollowers)
	require.Equal(t, "b.bsky.social", byID["at://b/post/2"].AuthorHandle)
}
