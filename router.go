package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	httpapi "github.com/yourorg/listing-sync/http"
	httpv1 "github.com/yourorg/listing-sync/http/v1"
	"github.com/yourorg/listing-sync/internal/app"
	"github.com/yourorg/listing-sync/internal/config"
	"github.com/yourorg/listing-sync/internal/logger"
)

func BuildRouter(e *app.Env, sc config.ServerConfig, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, logger.Middleware(log), middleware.Recoverer)

	origins := sc.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", logger.RequestIDHeader},
		ExposedHeaders: []string{logger.RequestIDHeader},
		MaxAge:         300,
	}))

	perMinute := sc.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 100
	}
	r.Use(httprate.LimitByIP(perMinute, 1*time.Minute)) // protect upstream quota

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := e.Ping(ctx); err != nil {
			render.Status(req, http.StatusServiceUnavailable)
			render.JSON(w, req, map[string]any{"ok": false, "detail": err.Error()})
			return
		}
		render.JSON(w, req, map[string]any{"ok": true})
	})

	search := httpapi.SearchDeps{Finder: e.Finder, Events: e.Hub}

	// Long-lived stream; no request timeout.
	r.Group(func(r chi.Router) {
		httpapi.RegisterSearchEvents(r, search)
	})

	r.Group(func(r chi.Router) {
		timeout := sc.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		r.Use(middleware.Timeout(timeout))
		r.Use(render.SetContentType(render.ContentTypeJSON))

		httpapi.RegisterSearch(r, search)
		httpapi.RegisterListings(r, httpapi.ListingsDeps{Finder: e.Finder, Details: e.Zillow})
		httpapi.RegisterExport(r, httpapi.ExportDeps{
			Finder:           e.Finder,
			Gateway:          e.Gateway,
			AuthorizationURL: e.Flow.AuthorizationURL,
		})
		httpv1.RegisterOAuth(r, httpv1.OAuthDeps{
			Flow:           e.Flow,
			Tokens:         e.Tokens,
			PostConnectURL: sc.PostConnectURL,
		})
	})

	return r
}
