package bluesky

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"resty.dev/v3"

	"skyreach/internal/config"
	"skyreach/internal/core"
)

// Client talks XRPC to a Bluesky PDS with an app-password session.
type Client struct {
	Logger *slog.Logger
	Config *config.Config

	client *resty.Client

	mu      sync.Mutex
	session session
}

type session struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

type searchResponse struct {
	Posts []postView `json:"posts"`
}

type postView struct {
	URI    string `json:"uri"`
	CID    string `json:"cid"`
	Author struct {
		DID    string `json:"did"`
		Handle string `json:"handle"`
	} `json:"author"`
	Record struct {
		Text      string `json:"text"`
		CreatedAt string `json:"createdAt"`
		Reply     any    `json:"reply"`
	} `json:"record"`
	LikeCount   int `json:"likeCount"`
	RepostCount int `json:"repostCount"`
}

type profileView struct {
	DID            string `json:"did"`
	Handle         string `json:"handle"`
	FollowersCount int    `json:"followersCount"`
}

type strongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

func (c *Client) Init(ctx context.Context) error {
	c.Logger = c.Logger.With("component", "bluesky.Client")

	c.client = resty.New().
		SetBaseURL(c.Config.BlueskyHost).
		SetHeader("Content-Type", "application/json")

	return c.login(ctx)
}

func (c *Client) Shutdown(_ context.Context) error {
	return c.client.Close()
}

func (c *Client) login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sess session
	resp, err := c.client.R().
		WithContext(ctx).
		SetBody(map[string]string{
			"identifier": c.Config.BlueskyHandle,
			"password":   c.Config.BlueskyAppPassword,
		}).
		SetResult(&sess).
		Post("/xrpc/com.atproto.server.createSession")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("bluesky login failed: status %d", resp.StatusCode())
	}

	c.session = sess
	c.Logger.Info("logged into Bluesky", "handle", sess.Handle)
	return nil
}

func (c *Client) accessJwt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.AccessJwt
}

func (c *Client) did() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.DID
}

// do runs one authenticated request, refreshing the session once on 401.
func (c *Client) do(ctx context.Context, build func(r *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	req := func() (*resty.Response, error) {
		return build(c.client.R().WithContext(ctx).SetAuthToken(c.accessJwt()))
	}

	resp, err := req()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == 401 {
		if err := c.login(ctx); err != nil {
			return nil, err
		}
		return req()
	}
	return resp, nil
}

func (c *Client) Search(ctx context.Context, keyword string, limit int) ([]core.CandidatePost, error) {
	var result searchResponse

	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetQueryParam("q", keyword).
			SetQueryParam("limit", fmt.Sprintf("%d", limit)).
			SetResult(&result).
			Get("/xrpc/app.bsky.feed.searchPosts")
	})
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("searchPosts %q: status %d", keyword, resp.StatusCode())
	}

	posts := make([]core.CandidatePost, 0, len(result.Posts))
	for _, view := range result.Posts {
		createdAt, err := time.Parse(time.RFC3339, view.Record.CreatedAt)
		if err != nil {
			createdAt = time.Time{}
		}

		posts = append(posts, core.CandidatePost{
			ID:           view.URI,
			CID:          view.CID,
			Text:         view.Record.Text,
			AuthorDID:    view.Author.DID,
			AuthorHandle: view.Author.Handle,
			Likes:        view.LikeCount,
			Shares:       view.RepostCount,
			IsReply:      view.Record.Reply != nil,
			CreatedAt:    createdAt,
			Platform:     core.PlatformBluesky,
		})
	}

	return posts, nil
}

// Profile fetches an author's public profile. Search results carry the
// handle but omit the follower count; the firehose carries neither, so
// candidates from both sources get filled in from here.
func (c *Client) Profile(ctx context.Context, actor string) (core.AuthorProfile, error) {
	var profile profileView

	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetQueryParam("actor", actor).
			SetResult(&profile).
			Get("/xrpc/app.bsky.actor.getProfile")
	})
	if err != nil {
		return core.AuthorProfile{}, err
	}
	if resp.IsError() {
		return core.AuthorProfile{}, fmt.Errorf("getProfile %q: status %d", actor, resp.StatusCode())
	}

	return core.AuthorProfile{
		DID:       profile.DID,
		Handle:    profile.Handle,
		Followers: profile.FollowersCount,
	}, nil
}

// Self reports the logged-in account from the current session.
func (c *Client) Self() core.AuthorProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return core.AuthorProfile{DID: c.session.DID, Handle: c.session.Handle}
}

func (c *Client) Reply(ctx context.Context, post core.CandidatePost, text string) error {
	ref := strongRef{URI: post.ID, CID: post.CID}
	record := map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      text,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
		"reply": map[string]any{
			"root":   ref,
			"parent": ref,
		},
	}

	return c.createRecord(ctx, "app.bsky.feed.post", record)
}

func (c *Client) Reshare(ctx context.Context, post core.CandidatePost) error {
	record := map[string]any{
		"$type":     "app.bsky.feed.repost",
		"subject":   strongRef{URI: post.ID, CID: post.CID},
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	}

	return c.createRecord(ctx, "app.bsky.feed.repost", record)
}

func (c *Client) createRecord(ctx context.Context, collection string, record map[string]any) error {
	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetBody(map[string]any{
				"repo":       c.did(),
				"collection": collection,
				"record":     record,
			}).
			Post("/xrpc/com.atproto.repo.createRecord")
	})
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("createRecord %s: status %d", collection, resp.StatusCode())
	}
	return nil
}
