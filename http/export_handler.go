package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/listing-sync/internal/finder"
	"github.com/yourorg/listing-sync/internal/ghl"
	"github.com/yourorg/listing-sync/internal/listing"
)

// Exporter is the CRM export gateway. *ghl.Gateway satisfies it.
type Exporter interface {
	ExportOne(ctx context.Context, l listing.Listing) (ghl.ExportResult, error)
	ExportMany(ctx context.Context, ls []listing.Listing) (ghl.BatchResult, error)
}

type ExportDeps struct {
	Finder  *finder.Finder
	Gateway Exporter
	// AuthorizationURL is attached to 401 responses so the caller can redirect.
	AuthorizationURL func() (string, error)
}

type ExportRequest struct {
	IDs []string `json:"ids,omitempty"`
}

type outcomeView struct {
	ListingID      string `json:"listingId"`
	OK             bool   `json:"ok"`
	ContactID      string `json:"contactId,omitempty"`
	Error          string `json:"error,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	UpstreamBody   string `json:"upstream_body,omitempty"`
}

func RegisterExport(r chi.Router, d ExportDeps) {
	r.Post("/v1/export/{listingID}", func(w http.ResponseWriter, req *http.Request) {
		l, err := d.Finder.Listing(chi.URLParam(req, "listingID"))
		if err != nil {
			RenderError(w, req, err, nil)
			return
		}
		res, err := d.Gateway.ExportOne(req.Context(), l)
		if err != nil {
			RenderError(w, req, err, d.authExtra(err))
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "result": res})
	})

	// Body is optional; no ids exports the whole active search.
	r.Post("/v1/export", func(w http.ResponseWriter, req *http.Request) {
		var body ExportRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			badRequest(w, req, "invalid_json", err.Error())
			return
		}
		ls, err := d.Finder.Listings(body.IDs)
		if err != nil {
			RenderError(w, req, err, nil)
			return
		}
		if len(ls) == 0 {
			badRequest(w, req, "no_listings", "there are no listings to export")
			return
		}
		batch, err := d.Gateway.ExportMany(req.Context(), ls)
		views := outcomeViews(batch)
		if err != nil {
			extra := d.authExtra(err)
			if extra == nil {
				extra = map[string]any{}
			}
			extra["outcomes"] = views
			RenderError(w, req, err, extra)
			return
		}
		render.JSON(w, req, map[string]any{
			"ok":        batch.Failed == 0,
			"succeeded": batch.Succeeded,
			"failed":    batch.Failed,
			"outcomes":  views,
		})
	})
}

func (d ExportDeps) authExtra(err error) map[string]any {
	if !errors.Is(err, ghl.ErrAuthorizationRequired) || d.AuthorizationURL == nil {
		return nil
	}
	u, uerr := d.AuthorizationURL()
	if uerr != nil {
		return nil
	}
	return map[string]any{"authorize_url": u}
}

func outcomeViews(b ghl.BatchResult) []outcomeView {
	out := make([]outcomeView, len(b.Outcomes))
	for i, o := range b.Outcomes {
		v := outcomeView{ListingID: o.ListingID, OK: o.OK, ContactID: o.Result.ContactID}
		if o.Err != nil {
			v.Error = o.Err.Error()
			var ee *ghl.ExportError
			if errors.As(o.Err, &ee) {
				v.UpstreamStatus = ee.Status
				v.UpstreamBody = ee.Body
			}
		}
		out[i] = v
	}
	return out
}
