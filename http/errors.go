package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/yourorg/listing-sync/internal/finder"
	"github.com/yourorg/listing-sync/internal/ghl"
	"github.com/yourorg/listing-sync/internal/listing"
	"github.com/yourorg/listing-sync/internal/logger"
	"github.com/yourorg/listing-sync/zillow"
)

// ErrorBody classifies err into a status and JSON body. Upstream status and
// body are passed through verbatim.
func ErrorBody(err error) (int, map[string]any) {
	var (
		ce *ghl.ConfigurationError
		se *zillow.SearchError
		xe *ghl.ExchangeError
		ee *ghl.ExportError
	)
	switch {
	case errors.As(err, &ce):
		return http.StatusInternalServerError, map[string]any{"error": "configuration_error", "missing": ce.Missing}
	case errors.Is(err, listing.ErrInvalidQuery):
		return http.StatusBadRequest, map[string]any{"error": "invalid_query", "detail": err.Error()}
	case errors.Is(err, finder.ErrNotFound):
		return http.StatusNotFound, map[string]any{"error": "not_found", "detail": err.Error()}
	case errors.Is(err, ghl.ErrAuthorizationRequired):
		return http.StatusUnauthorized, map[string]any{"error": "authorization_required"}
	case errors.As(err, &se):
		return http.StatusBadGateway, upstream("upstream_error", se.Status, se.Body, err)
	case errors.As(err, &xe):
		if xe.Status == 0 && xe.Err == nil {
			return http.StatusBadRequest, map[string]any{"error": "exchange_error", "detail": xe.Body}
		}
		return http.StatusBadGateway, upstream("exchange_error", xe.Status, xe.Body, err)
	case errors.As(err, &ee):
		return http.StatusBadGateway, upstream("export_error", ee.Status, ee.Body, err)
	case errors.Is(err, ghl.ErrAllExportsFailed):
		return http.StatusBadGateway, map[string]any{"error": "export_failed", "detail": err.Error()}
	}
	return http.StatusInternalServerError, map[string]any{"error": "internal_error", "detail": err.Error()}
}

func upstream(code string, status int, body string, err error) map[string]any {
	out := map[string]any{"error": code, "detail": err.Error()}
	if status != 0 {
		out["upstream_status"] = status
		out["upstream_body"] = body
	}
	return out
}

// RenderError writes err as JSON, merging extra into the body.
func RenderError(w http.ResponseWriter, req *http.Request, err error, extra map[string]any) {
	status, body := ErrorBody(err)
	for k, v := range extra {
		body[k] = v
	}
	log := logger.From(req.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Info("request rejected", zap.Int("status", status), zap.Error(err))
	}
	render.Status(req, status)
	render.JSON(w, req, body)
}

func badRequest(w http.ResponseWriter, req *http.Request, code, detail string) {
	render.Status(req, http.StatusBadRequest)
	render.JSON(w, req, map[string]any{"error": code, "detail": detail})
}
