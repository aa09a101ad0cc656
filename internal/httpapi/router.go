// Package httpapi serves the suggestion engine over REST. It also answers the
// remote ranking wire format so one instance can rank for another.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/engine"
)

// Pinger reports backing store readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router wires handlers to routes.
type Router struct {
	engine *engine.Engine
	ready  Pinger
	logger *zap.Logger
}

// NewRouter creates a router. ready may be nil.
func NewRouter(eng *engine.Engine, ready Pinger, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{engine: eng, ready: ready, logger: logger}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(rt.logger))
	router.Use(chimiddleware.Timeout(30 * time.Second))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/healthz", rt.health)
	router.Get("/readyz", rt.readiness)

	h := &handlers{engine: rt.engine, logger: rt.logger}
	router.Route("/v1", func(r chi.Router) {
		r.Route("/entities", func(r chi.Router) {
			r.Post("/", h.registerEntities)
			r.Get("/{entityID}", h.getEntity)
			r.Get("/{entityID}/suggestions", h.suggestions)
		})
		r.Post("/links", h.link)
		r.Post("/feedback", h.feedback)
		r.Post("/interactions", h.interaction)
		r.Post("/rank", h.rank)
		r.Get("/stats", h.stats)
	})
	return router
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, rt.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readiness(w http.ResponseWriter, r *http.Request) {
	if rt.ready != nil {
		if err := rt.ready.Ping(r.Context()); err != nil {
			rt.logger.Warn("readiness check failed", zap.Error(err))
			respondError(w, rt.logger, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	respondJSON(w, rt.logger, http.StatusOK, map[string]string{"status": "ready"})
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

// Serve runs the REST listener until ctx ends.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("REST API listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
