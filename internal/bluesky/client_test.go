package bluesky_test

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skyreach/internal/bluesky"
	"skyreach/internal/config"
	"skyreach/internal/core"
)

type fakePDS struct {
	mux    *http.ServeMux
	logins atomic.Int64
}

func newFakePDS() *fakePDS {
	pds := &fakePDS{mux: http.NewServeMux()}

	pds.mux.HandleFunc("POST /xrpc/com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Identifier string `json:"identifier"`
			Password   string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Password != "app-password" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		pds.logins.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"accessJwt": "jwt-%d", "did": "did:plc:bot", "handle": %q}`, pds.logins.Load(), creds.Identifier)
	})

	return pds
}

func newClient(t *testing.T, handler http.Handler) *bluesky.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := &bluesky.Client{
		Logger: slog.New(slog.DiscardHandler),
		Config: &config.Config{
			BlueskyHost:        srv.URL,
			BlueskyHandle:      "bot.bsky.social",
			BlueskyAppPassword: "app-password",
		},
	}
	require.NoError(t, client.Init(t.Context()))
	t.Cleanup(func() { client.Shutdown(t.Context()) }) //nolint:errcheck

	return client
}

func TestInitLogsIn(t *testing.T) {
	t.Parallel()

	pds := newFakePDS()
	newClient(t, pds.mux)

	require.EqualValues(t, 1, pds.logins.Load())
}

func TestInitFailsOnBadCredentials(t *testing.T) {
	t.Parallel()

	pds := newFakePDS()
	srv := httptest.NewServer(pds.mux)
	defer srv.Close()

	client := &bluesky.Client{
		Logger: slog.New(slog.DiscardHandler),
		Config: &config.Config{
			BlueskyHost:        srv.URL,
			BlueskyHandle:      "bot.bsky.social",
			BlueskyAppPassword: "wrong",
		},
	}
	require.Error(t, client.Init(t.Context()))
}

func TestSearchMapsPosts(t *testing.T) {
	t.Parallel()

	pds := newFakePDS()
	pds.mux.HandleFunc("GET /xrpc/app.bsky.feed.searchPosts", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "solar", r.URL.Query().Get("q"))
		require.Equal(t, "25", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"posts": [
			{
				"uri": "at://did:plc:alice/app.bsky.feed.post/1",
				"cid": "bafy1",
				"author": {"did": "did:plc:alice", "handle": "alice.bsky.social"},
				"record": {"text": "going solar!", "createdAt": "2026-08-31T12:00:00Z"},
				"likeCount": 4,
				"repostCount": 1
			},
			{
				"uri": "at://did:plc:bob/app.bsky.feed.post/2",
				"cid": "bafy2",
				"author": {"did": "did:plc:bob", "handle": "bob.bsky.social"},
				"record": {"text": "replying", "createdAt": "2026-08-31T13:00:00Z", "reply": {"root": {}}}
			}
		]}`)
	})

	posts, err := newClient(t, pds.mux).Search(t.Context(), "solar", 25)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	require.Equal(t, "at://did:plc:alice/app.bsky.feed.post/1", posts[0].ID)
	require.Equal(t, "alice.bsky.social", posts[0].AuthorHandle)
	require.Equal(t, 4, posts[0].Likes)
	require.False(t, posts[0].IsReply)
	require.Equal(t, time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC), posts[0].CreatedAt)

	require.True(t, posts[1].IsReply)
}

func TestProfile(t *testing.T) {
	t.Parallel()

	pds := newFakePDS()
	pds.mux.HandleFunc("GET /xrpc/app.bsky.actor.getProfile", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "did:plc:alice", r.URL.Query().Get("actor"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"did": "did:plc:alice", "handle": "alice.bsky.social", "followersCount": 321}`)
	})

	profile, err := newClient(t, pds.mux).Profile(t.Context(), "did:plc:alice")
	require.NoError(t, err)
	require.Equal(t, "did:plc:alice", profile.DID)
	require.Equal(t, "alice.bsky.social", profile.Handle)
	require.Equal(t, 321, profile.Followers)
}

func TestSelfReportsSession(t *testing.T) {
	t.Parallel()

	pds := newFakePDS()

	self := newClient(t, pds.mux).Self()
	require.Equal(t, "did:plc:bot", self.DID)
	require.Equal(t, "bot.bsky.social", self.Handle)
}

func TestReplyCreatesRecord(t *testing.T) {
	t.Parallel()

	pds := newFakePDS()

	var created struct {
		Repo       string `json:"repo"`
		Collection string `json:"collection"`
		Record     struct {
			Text  string `json:"text"`
			Reply struct {
				Parent struct {
					URI string `json:"uri"`
					CID string `json:"cid"`
				} `json:"parent"`
			} `json:"reply"`
		} `json:"record"`
	}

	pds.mux.HandleFunc("POST /xrpc/com.atproto.repo.createRecord", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"uri": "at://did:plc:bot/app.bsky.feed.post/99", "cid": "bafy99"}`)
	})

	post := core.CandidatePost{ID: "at://did:plc:alice/app.bsky.feed.post/1", CID: "bafy1"}

	require.NoError(t, newClient(t, pds.mux).Reply(t.Context(), post, "nice!"))

	require.Equal(t, "did:plc:bot", created.Repo)
	require.Equal(t, "app.bsky.feed.post", created.Collection)
	require.Equal(t, "nice!", created.Record.Text)
	require.Equal(t, post.ID, created.Record.Reply.Parent.URI)
	require.Equal(t, post.CID, created.Record.Reply.Parent.CID)
}

func TestExpiredSessionRefreshesOnce(t *testing.T) {
	t.Parallel()

	pds := newFakePDS()

	var calls atomic.Int64
	pds.mux.HandleFunc("GET /xrpc/app.bsky.feed.searchPosts", func(w http.ResponseWriter, r *http.Request) {
		// First token is stale: force one re-login.
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.Equal(t, "Bearer jwt-2", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"posts": []}`)
	})

	posts, err := newClient(t, pds.mux).Search(t.Context(), "solar", 10)
	require.NoError(t, err)
	require.Empty(t, posts)
	require.EqualValues(t, 2, pds.logins.Load())
}
