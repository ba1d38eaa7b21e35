package approval

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skyreach/internal/config"
)

func interactionBody(value string) []byte {
	payload := fmt.Sprintf(`{"type":"block_actions","actions":[{"action_id":"approve_action","value":%q}],"message":{"ts":"1712345678.000100"}}`, value)
	form := url.Values{"payload": {payload}}
	return []byte(form.Encode())
}

func TestParseInteraction(t *testing.T) {
	t.Parallel()

	resolution, err := parseInteraction(interactionBody("approve_tok-123"))
	require.NoError(t, err)
	require.Equal(t, "tok-123", resolution.Token)
	require.Equal(t, "approve", resolution.Choice)
	require.Equal(t, "1712345678.000100", resolution.MessageTS)

	resolution, err = parseInteraction(interactionBody("reject_tok-456"))
	require.NoError(t, err)
	require.Equal(t, "reject", resolution.Choice)
}

func TestParseInteractionRejectsGarbage(t *testing.T) {
	t.Parallel()

	for name, body := range map[string][]byte{
		"not a form":     []byte("%zz"),
		"no payload":     []byte("foo=bar"),
		"bad json":       []byte(url.Values{"payload": {"{"}}.Encode()),
		"no actions":     []byte(url.Values{"payload": {`{"type":"block_actions"}`}}.Encode()),
		"unknown choice": interactionBody("defer_tok-1"),
		"empty token":    interactionBody("approve_"),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := parseInteraction(body)
			require.Error(t, err)
		})
	}
}

func TestHandleInteractiveRejectsBadSignature(t *testing.T) {
	t.Parallel()

	server := &Server{
		Logger: slog.New(slog.DiscardHandler),
		Config: &config.Config{SlackSigningSecret: "secret", CallbackAddr: ":0"},
	}
	require.NoError(t, server.Init(t.Context()))

	body := interactionBody("approve_tok-1")
	req := httptest.NewRequest("POST", "/slack/interactive", strings.NewReader(string(body)))
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("X-Slack-Signature", "v0=0000000000000000000000000000000000000000000000000000000000000000")

	rec := httptest.NewRecorder()
	server.handleInteractive(rec, req)

	require.Equal(t, 403, rec.Code)
}

func TestHandleInteractiveRejectsMalformedPayload(t *testing.T) {
	t.Parallel()

	secret := "secret"
	server := &Server{
		Logger: slog.New(slog.DiscardHandler),
		Config: &config.Config{SlackSigningSecret: secret, CallbackAddr: ":0"},
	}
	require.NoError(t, server.Init(t.Context()))

	body := []byte("foo=bar")
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", ts, body)

	req := httptest.NewRequest("POST", "/slack/interactive", strings.NewReader(string(body)))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))

	rec := httptest.NewRecorder()
	server.handleInteractive(rec, req)

	// Authenticated but unparseable: rejected before anything is queued.
	require.Equal(t, 400, rec.Code)
}

func TestServerRoutes(t *testing.T) {
	t.Parallel()

	server := &Server{
		Logger: slog.New(slog.DiscardHandler),
		Config: &config.Config{SlackSigningSecret: "secret", CallbackAddr: ":0"},
	}
	require.NoError(t, server.Init(t.Context()))

	mux := server.server.Handler

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, 200, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), `"ok"`)

	// Liveness is read-only.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/healthz", nil))
	require.Equal(t, 405, rec.Code)

	// The interactive endpoint is reachable through the mux and still
	// verifies signatures first.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/slack/interactive", strings.NewReader(string(interactionBody("approve_tok-1"))))
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("X-Slack-Signature", "v0=beef")
	mux.ServeHTTP(rec, req)
	require.Equal(t, 403, rec.Code)
}

func TestServerRequiresSigningSecret(t *testing.T) {
	t.Parallel()

	server := &Server{
		Logger: slog.New(slog.DiscardHandler),
		Config: &config.Config{},
	}
	require.Error(t, server.Init(t.Context()))
}
