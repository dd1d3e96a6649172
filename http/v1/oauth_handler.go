package v1

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	httpapi "github.com/yourorg/listing-sync/http"
	"github.com/yourorg/listing-sync/internal/ghl"
	"github.com/yourorg/listing-sync/internal/logger"
	"github.com/yourorg/listing-sync/internal/tokenstore"
)

type OAuthDeps struct {
	Flow   *ghl.Flow
	Tokens *tokenstore.Store
	// PostConnectURL is where the callback sends the browser after a
	// successful exchange.
	PostConnectURL string
	Now            func() time.Time
}

func (d OAuthDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func RegisterOAuth(r chi.Router, d OAuthDeps) {
	r.Route("/v1/ghl", func(r chi.Router) {
		// Redirects to the consent page; ?redirect=false returns the URL instead.
		r.Get("/connect", func(w http.ResponseWriter, req *http.Request) {
			u, err := d.Flow.AuthorizationURL()
			if err != nil {
				httpapi.RenderError(w, req, err, nil)
				return
			}
			if req.URL.Query().Get("redirect") == "false" {
				render.JSON(w, req, map[string]any{"authorize_url": u})
				return
			}
			http.Redirect(w, req, u, http.StatusFound)
		})

		r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
			status(w, req, d)
		})

		r.Post("/disconnect", func(w http.ResponseWriter, req *http.Request) {
			if err := d.Tokens.Clear(req.Context()); err != nil {
				httpapi.RenderError(w, req, err, nil)
				return
			}
			logger.From(req.Context()).Info("crm disconnected")
			render.JSON(w, req, map[string]any{"ok": true, "connected": false})
		})
	})

	r.Get("/oauth/callback", func(w http.ResponseWriter, req *http.Request) {
		callback(w, req, d)
	})
}

// status re-reads the store and clears a bundle found to be expired.
func status(w http.ResponseWriter, req *http.Request, d OAuthDeps) {
	ctx := req.Context()
	b, ok, err := d.Tokens.Get(ctx)
	if err != nil {
		httpapi.RenderError(w, req, err, nil)
		return
	}
	if !ok {
		render.JSON(w, req, map[string]any{"connected": false})
		return
	}
	if !tokenstore.Valid(b, d.now()) {
		if err := d.Tokens.Clear(ctx); err != nil {
			logger.From(ctx).Warn("clearing expired token failed", zap.Error(err))
		}
		render.JSON(w, req, map[string]any{"connected": false, "expired": true})
		return
	}
	render.JSON(w, req, map[string]any{
		"connected":   true,
		"location_id": b.LocationID,
		"expires_at":  b.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// callback finishes the grant. The store is written only on success, and
// failures are reported without retrying.
func callback(w http.ResponseWriter, req *http.Request, d OAuthDeps) {
	ctx := req.Context()
	q := req.URL.Query()
	if e := q.Get("error"); e != "" {
		render.Status(req, http.StatusBadRequest)
		render.JSON(w, req, map[string]any{"error": "authorization_denied", "detail": e, "description": q.Get("error_description")})
		return
	}
	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		render.Status(req, http.StatusBadRequest)
		render.JSON(w, req, map[string]any{"error": "missing_code", "detail": "no authorization code in callback"})
		return
	}

	b, err := d.Flow.Exchange(ctx, code)
	if err != nil {
		httpapi.RenderError(w, req, err, nil)
		return
	}
	if err := d.Tokens.Set(ctx, b); err != nil {
		httpapi.RenderError(w, req, err, nil)
		return
	}
	logger.From(ctx).Info("crm connected", zap.String("location_id", b.LocationID), zap.Time("expires_at", b.ExpiresAt))

	target := d.PostConnectURL
	if target == "" {
		target = "/"
	}
	http.Redirect(w, req, target, http.StatusFound)
}
