// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/toolhive-marketplace/httperr"
	"github.com/stacklok/toolhive-marketplace/logging"
	"github.com/stacklok/toolhive-marketplace/metrics"
	"github.com/stacklok/toolhive-marketplace/recovery"
)

// MaxBodySize caps webhook request bodies.
const MaxBodySize = 64 << 10

// Routes.
const (
	PathGitHub  = "/webhooks/github"
	PathResend  = "/webhooks/resend"
	PathHealth  = "/healthz"
	PathMetrics = "/metrics"
)

const (
	jobName         = "validate-sync"
	shutdownTimeout = 10 * time.Second
)

// PushHandler is run on the worker for each accepted push.
type PushHandler func(ctx context.Context, ev *github.PushEvent) error

// Config configures a Server.
type Config struct {
	// GitHubSecret enables the GitHub endpoint
	GitHubSecret string
	// ResendSecret enables the Resend endpoint; a "whsec_" Svix secret
	ResendSecret string
	// Branch overrides the repository default branch reported by GitHub
	Branch string
	// OnPush runs the validate and sync job
	OnPush PushHandler
}

// Server is the webhook HTTP service.
type Server struct {
	cfg      Config
	github   *GitHubVerifier
	svix     *SvixVerifier
	queue    *Queue
	logger   *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records events and serves them from gatherer at /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// NewServer returns a server for cfg. At least one secret must be set.
func NewServer(cfg Config, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg, logger: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "webhook")

	if cfg.GitHubSecret == "" && cfg.ResendSecret == "" {
		return nil, errors.New("no webhook secret configured")
	}
	var err error
	if cfg.GitHubSecret != "" {
		if cfg.OnPush == nil {
			return nil, errors.New("github webhook requires a push handler")
		}
		if s.github, err = NewGitHubVerifier(cfg.GitHubSecret); err != nil {
			return nil, err
		}
	}
	if cfg.ResendSecret != "" {
		if s.svix, err = NewSvixVerifier(cfg.ResendSecret); err != nil {
			return nil, err
		}
	}
	s.queue = NewQueue(s.logger, s.metrics)
	return s, nil
}

// Queue returns the job queue.
func (s *Server) Queue() *Queue {
	return s.queue
}

// Handler returns the HTTP handler of every route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.github != nil {
		mux.HandleFunc("POST "+PathGitHub, s.handleGitHub)
	}
	if s.svix != nil {
		mux.HandleFunc("POST "+PathResend, s.handleResend)
	}
	mux.HandleFunc("GET "+PathHealth, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, status{Status: "ok"})
	})
	if s.gatherer != nil {
		mux.Handle("GET "+PathMetrics, metrics.Handler(s.gatherer))
	}
	return recovery.Middleware(s.logger)(mux)
}

// ListenAndServe serves on addr and runs the job worker until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.queue.Run(gctx)
		return nil
	})
	g.Go(func() error {
		s.logger.Info("webhook server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type status struct {
	Status string `json:"status"`
	Job    string `json:"job,omitempty"`
}

func (s *Server) handleGitHub(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	if err := s.github.Verify(r.Header, body); err != nil {
		s.logger.Warn("rejected github delivery", "delivery", github.DeliveryID(r), "error", err)
		httperr.Write(w, httperr.WithCode(err, http.StatusUnauthorized))
		return
	}

	event := github.WebHookType(r)
	s.metrics.WebhookEvent("github", event)
	logger := s.logger.With("event", event, "delivery", github.DeliveryID(r))

	switch event {
	case "ping":
		logger.Info("github ping")
		writeJSON(w, http.StatusOK, status{Status: "pong"})
	case "push":
		payload, err := github.ParseWebHook(event, body)
		ev, ok := payload.(*github.PushEvent)
		if err != nil || !ok {
			if err == nil {
				err = fmt.Errorf("unexpected payload %T", payload)
			}
			httperr.Write(w, httperr.WithCode(fmt.Errorf("invalid push payload: %w", err), http.StatusBadRequest))
			return
		}
		branch := s.cfg.Branch
		if branch == "" {
			branch = ev.GetRepo().GetDefaultBranch()
		}
		if ev.GetDeleted() || PushBranch(ev) == "" || PushBranch(ev) != branch {
			logger.Debug("ignoring push", "ref", ev.GetRef())
			writeJSON(w, http.StatusOK, status{Status: "ignored"})
			return
		}
		queued := s.queue.Enqueue(Job{
			Name:   jobName,
			Reason: fmt.Sprintf("push %s@%s", ev.GetRepo().GetFullName(), ev.GetAfter()),
			Run: func(ctx context.Context) error {
				return s.cfg.OnPush(ctx, ev)
			},
		})
		st := status{Status: "queued", Job: jobName}
		if !queued {
			st.Status = "coalesced"
		}
		writeJSON(w, http.StatusAccepted, st)
	default:
		logger.Debug("ignoring github event")
		writeJSON(w, http.StatusOK, status{Status: "ignored"})
	}
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	if err := s.svix.Verify(r.Header, body); err != nil {
		s.logger.Warn("rejected resend delivery", "svix_id", r.Header.Get(HeaderSvixID), "error", err)
		httperr.Write(w, httperr.WithCode(err, http.StatusUnauthorized))
		return
	}

	var ev EmailEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.Type == "" {
		if err == nil {
			err = errors.New("missing event type")
		}
		httperr.Write(w, httperr.WithCode(fmt.Errorf("invalid resend payload: %w", err), http.StatusBadRequest))
		return
	}
	s.metrics.WebhookEvent("resend", ev.Type)
	s.logger.Info("resend event",
		"type", ev.Type,
		"email_id", ev.Data.EmailID,
		"subject", ev.Data.Subject,
		"recipients", len(ev.Data.To),
	)
	writeJSON(w, http.StatusOK, status{Status: "received"})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, httperr.New("request body too large", http.StatusRequestEntityTooLarge)
		}
		return nil, httperr.WithCode(fmt.Errorf("reading request body: %w", err), http.StatusBadRequest)
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
