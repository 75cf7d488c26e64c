// Package server provides the HTTP API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/fernweh-site/fernweh/internal/feed"
	"github.com/fernweh-site/fernweh/internal/metrics"
)

// FeedProvider is the feed surface the API exposes.
type FeedProvider interface {
	Combined(ctx context.Context, opts feed.Options) (*feed.Result, error)
	Articles(ctx context.Context, opts feed.Options) (*feed.Result, error)
	Places(ctx context.Context, opts feed.Options) (*feed.Result, error)
	Notes(ctx context.Context, opts feed.Options) (*feed.Result, error)
	ArticleByIdentifier(ctx context.Context, identifier string) (*feed.Item, error)
}

// Server is the HTTP server in front of the feed service.
type Server struct {
	feeds   FeedProvider
	metrics *metrics.Metrics
	log     *logrus.Logger
	router  chi.Router
	http    *http.Server
}

// New creates the server. metrics may be nil; /metrics then serves an empty
// registry.
func New(feeds FeedProvider, m *metrics.Metrics, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	s := &Server{
		feeds:   feeds,
		metrics: m,
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/feed", s.handleCollection(s.feeds.Combined))
		r.Get("/articles", s.handleCollection(s.feeds.Articles))
		r.Get("/articles/{identifier}", s.handleArticle)
		r.Get("/places", s.handleCollection(s.feeds.Places))
		r.Get("/notes", s.handleCollection(s.feeds.Notes))
	})

	s.router = r
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type collectionFunc func(ctx context.Context, opts feed.Options) (*feed.Result, error)

// handleCollection adapts one feed collection to the query-parameter surface
// shared by all list endpoints: tags, region, limit, cursor.
func (s *Server) handleCollection(fetch collectionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := parseOptions(r)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := fetch(r.Context(), opts)
		if err != nil {
			// Relay trouble degrades to an empty page rather than a broken
			// response; the client keeps whatever it already rendered.
			s.log.WithError(err).Warn("Feed request failed, serving empty page")
			s.writeJSON(w, http.StatusOK, &feed.Result{Items: []feed.Item{}})
			return
		}
		s.writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	item, err := s.feeds.ArticleByIdentifier(r.Context(), identifier)
	if err != nil {
		s.log.WithError(err).WithField("identifier", identifier).Error("Article lookup failed")
		s.writeError(w, http.StatusBadGateway, "upstream unavailable")
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

// --- Helpers ---

func parseOptions(r *http.Request) (feed.Options, error) {
	var opts feed.Options
	q := r.URL.Query()

	if tags := q.Get("tags"); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				opts.Topics = append(opts.Topics, t)
			}
		}
	}
	opts.Region = strings.TrimSpace(q.Get("region"))

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return opts, errInvalidParam("limit")
		}
		opts.Limit = n
	}
	if cursor := q.Get("cursor"); cursor != "" {
		until, err := feed.DecodeCursor(cursor)
		if err != nil {
			return opts, errInvalidParam("cursor")
		}
		opts.Until = until
	}
	return opts, nil
}

type errInvalidParam string

func (e errInvalidParam) Error() string { return "invalid " + string(e) + " parameter" }

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("Response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
