package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Jeffail/gabs"
	"github.com/go-chi/chi/v5"
	libnats "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"skyreach/internal/config"
	"skyreach/internal/core"
	inats "skyreach/internal/nats"
)

var (
	callbacksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyreach_callbacks_total",
		Help: "The total number of approval callbacks, by result.",
	}, []string{"result"})
)

// Server is the always-on callback listener. It verifies each request's
// signature and timestamp before touching any state, then forwards the
// resolution to the executor over JetStream with the approval token as
// message ID, so duplicate Slack deliveries collapse at the broker.
// Liveness (/healthz) is independent of the poll loop.
type Server struct {
	Logger *slog.Logger
	Config *config.Config
	NATS   *inats.NATS

	verifier Verifier
	server   *http.Server
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) Init(_ context.Context) error {
	s.Logger = s.Logger.With("component", "approval.Server")

	if s.Config.SlackSigningSecret == "" {
		return errors.New("no Slack signing secret configured, refusing to accept callbacks")
	}

	s.verifier = Verifier{
		Secret: s.Config.SlackSigningSecret,
		Skew:   5 * time.Minute,
	}

	r := chi.NewMux()

	r.Use(
		// json content type
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				next.ServeHTTP(w, r)
			})
		},

		// Logging
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				start := time.Now()
				sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

				next.ServeHTTP(sw, r)

				s.Logger.Info("request",
					"method", r.Method, "path", r.URL.Path,
					"duration", time.Since(start), "status", sw.status)
			})
		},

		// Recovering panics and logging
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer func() {
					if err := recover(); err != nil {
						s.Logger.Error("panic recovered", "error", err)
						http.Error(w, `{"message": "Internal Server Error"}`, http.StatusInternalServerError)
					}
				}()
				next.ServeHTTP(w, r)
			})
		},
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status": "ok"}`)
	})
	r.Post("/slack/interactive", s.handleInteractive)

	s.server = &http.Server{
		Handler:           r,
		Addr:              s.Config.CallbackAddr,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       time.Minute,
	}

	return nil
}

func (s *Server) Run(ctx context.Context) error {
	s.Logger.Info("Starting callback server", "addr", s.server.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleInteractive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, `{"error": "bad request"}`, http.StatusBadRequest)
		return
	}

	// Signature first. Nothing is looked up for unauthenticated requests.
	err = s.verifier.Verify(body,
		r.Header.Get("X-Slack-Request-Timestamp"),
		r.Header.Get("X-Slack-Signature"),
	)
	if err != nil {
		s.Logger.Warn("rejected callback", "error", err, "remote", r.RemoteAddr)
		callbacksReceived.WithLabelValues("signature_invalid").Inc()
		http.Error(w, `{"error": "invalid signature"}`, http.StatusForbidden)
		return
	}

	resolution, err := parseInteraction(body)
	if err != nil {
		s.Logger.Warn("unparseable callback payload", "error", err)
		callbacksReceived.WithLabelValues("malformed").Inc()
		http.Error(w, `{"error": "bad payload"}`, http.StatusBadRequest)
		return
	}

	payload, err := json.Marshal(resolution)
	if err != nil {
		http.Error(w, `{"error": "internal"}`, http.StatusInternalServerError)
		return
	}

	msg := &libnats.Msg{
		Subject: inats.ApprovalsSubject,
		Data:    payload,
		Header: libnats.Header{
			libnats.MsgIdHdr: []string{resolution.Token},
		},
	}
	if _, err := s.NATS.JS.PublishMsg(r.Context(), msg); err != nil {
		s.Logger.Error("failed to enqueue resolution", "error", err, "token", resolution.Token)
		callbacksReceived.WithLabelValues("enqueue_failed").Inc()
		http.Error(w, `{"error": "internal"}`, http.StatusInternalServerError)
		return
	}

	s.Logger.Info("resolution accepted", "token", resolution.Token, "choice", resolution.Choice)
	callbacksReceived.WithLabelValues("accepted").Inc()
	w.WriteHeader(http.StatusOK)
}

// parseInteraction digs the button value out of Slack's form-encoded
// interaction payload.
func parseInteraction(body []byte) (core.Resolution, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return core.Resolution{}, err
	}

	payload := form.Get("payload")
	if payload == "" {
		return core.Resolution{}, errors.New("no payload field")
	}

	parsed, err := gabs.ParseJSON([]byte(payload))
	if err != nil {
		return core.Resolution{}, err
	}

	value, ok := parsed.Path("actions").Index(0).Path("value").Data().(string)
	if !ok {
		return core.Resolution{}, errors.New("no action value")
	}

	choice, token, found := strings.Cut(value, "_")
	if !found || token == "" || (choice != "approve" && choice != "reject") {
		return core.Resolution{}, fmt.Errorf("unexpected action value %q", value)
	}

	messageTS, _ := parsed.Path("message.ts").Data().(string)

	return core.Resolution{
		Token:      token,
		Choice:     choice,
		MessageTS:  messageTS,
		ReceivedAt: time.Now(),
	}, nil
}
