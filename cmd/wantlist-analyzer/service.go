package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/3faceees/discogs-backend/internal/config"
	"github.com/3faceees/discogs-backend/pkg/analysis"
	"github.com/3faceees/discogs-backend/pkg/cache"
	"github.com/3faceees/discogs-backend/pkg/discogs"
	"github.com/3faceees/discogs-backend/pkg/listing"
	"github.com/3faceees/discogs-backend/pkg/metrics"
	"github.com/3faceees/discogs-backend/pkg/ratelimit"
	"github.com/3faceees/discogs-backend/pkg/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Inbound limit on starting analyses, per client address.
const (
	startsPerMinute = 6
	startBurst      = 3
)

// service holds the wired pipeline and the HTTP state around it.
type service struct {
	engine   *analysis.Engine
	sessions *analysis.Sessions
	tracker  *ratelimit.Tracker
	window   *ratelimit.Window
	redis    *redis.Client
	starts   *clientLimiter
	proxied  bool
	logger   zerolog.Logger

	// runCtx outlives the HTTP request that started a run.
	runCtx context.Context
}

// newService wires config → limiter → client → cache → fetcher → scheduler →
// engine. Runs started over HTTP are bound to ctx.
func newService(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*service, error) {
	window, err := ratelimit.New(cfg.RateLimitPerMinute)
	if err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}
	tracker := ratelimit.NewTracker(window, logger.With().Str("component", "ratelimit").Logger())

	dcfg := cfg.Discogs()
	dcfg.Limiter = window
	dcfg.Tracker = tracker
	client, err := discogs.New(dcfg)
	if err != nil {
		return nil, fmt.Errorf("create marketplace client: %w", err)
	}

	svc := &service{
		tracker: tracker,
		window:  window,
		starts:  newClientLimiter(rate.Limit(float64(startsPerMinute)/60), startBurst),
		proxied: cfg.TrustProxy,
		logger:  logger.With().Str("component", "http").Logger(),
		runCtx:  ctx,
	}

	fcfg := cfg.Fetcher()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		svc.redis = redis.NewClient(opts)
		store, err := cache.NewRedisStore(svc.redis, cfg.Cache())
		if err != nil {
			return nil, err
		}
		fcfg.Cache = store
	} else {
		store, err := cache.NewMemoryStore(cfg.Cache())
		if err != nil {
			return nil, err
		}
		fcfg.Cache = store
	}

	fetcher, err := listing.New(client, window, fcfg, logger.With().Str("component", "listing-fetcher").Logger())
	if err != nil {
		return nil, fmt.Errorf("create listing fetcher: %w", err)
	}

	sched, err := scheduler.New(fetcher, cfg.Scheduler(), logger.With().Str("component", "scheduler").Logger())
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	svc.engine, err = analysis.New(client, sched, cfg.Engine(), logger.With().Str("component", "analysis").Logger())
	if err != nil {
		return nil, fmt.Errorf("create analysis engine: %w", err)
	}

	svc.sessions, err = analysis.NewSessions(cfg.SessionCapacity)
	if err != nil {
		return nil, err
	}

	return svc, nil
}

// Close releases the Redis connection.
func (s *service) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
}

func (s *service) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.proxied {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)
	r.Get("/ready", s.readyHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/analyses", func(r chi.Router) {
		r.With(s.limitStarts).Post("/", s.startAnalysis)
		r.Get("/{id}", s.getAnalysis)
	})

	r.Get("/ratelimit", s.rateLimitStatus)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *service) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "Redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

type startResponse struct {
	ID    string         `json:"id"`
	State analysis.State `json:"state"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Reason analysis.Reason   `json:"reason,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (s *service) startAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}

	session, err := s.engine.Start(s.runCtx, req)
	if err != nil {
		resp := errorResponse{Error: err.Error()}
		var runErr *analysis.Error
		if errors.As(err, &runErr) {
			resp.Reason = runErr.Reason
			resp.Fields = runErr.Fields
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	s.sessions.Add(session)

	s.logger.Info().
		Str("session_id", session.ID).
		Str("username", req.Username).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("Analysis accepted")

	w.Header().Set("Location", "/analyses/"+session.ID)
	writeJSON(w, http.StatusAccepted, startResponse{ID: session.ID, State: session.State()})
}

func (s *service) getAnalysis(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "analysis not found"})
		return
	}
	writeJSON(w, http.StatusOK, session.View())
}

type rateLimitResponse struct {
	Local    ratelimit.Stats          `json:"local"`
	Upstream ratelimit.RateLimitState `json:"upstream"`
}

func (s *service) rateLimitStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rateLimitResponse{
		Local:    s.window.Stats(),
		Upstream: s.tracker.GetState(),
	})
}

// limitStarts rejects clients that start analyses too quickly.
func (s *service) limitStarts(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.starts.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "10")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many analyses started, slow down"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// clientLimiter is a token bucket per client key. Idle keys expire.
type clientLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	return &clientLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](4096, nil, 30*time.Minute),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether key may proceed now.
func (c *clientLimiter) Allow(key string) bool {
	c.mu.Lock()
	limiter, ok := c.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(c.limit, c.burst)
		c.limiters.Add(key, limiter)
	}
	c.mu.Unlock()
	return limiter.Allow()
}
