package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/listing-sync/internal/finder"
	"github.com/yourorg/listing-sync/internal/listing"
)

// DetailsClient fetches a full property record. *zillow.Client satisfies it.
type DetailsClient interface {
	PropertyDetails(ctx context.Context, id string) (listing.Listing, error)
}

type ListingsDeps struct {
	Finder  *finder.Finder
	Details DetailsClient
}

func RegisterListings(r chi.Router, d ListingsDeps) {
	r.Get("/v1/listings", func(w http.ResponseWriter, req *http.Request) {
		ls, err := d.Finder.Listings(req.URL.Query()["id"])
		if err != nil {
			RenderError(w, req, err, nil)
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "count": len(ls), "properties": ls})
	})

	r.Get("/v1/listings/{listingID}", func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimSpace(chi.URLParam(req, "listingID"))
		if id == "" {
			badRequest(w, req, "listing_id_required", "listing id is required")
			return
		}
		l, err := d.Details.PropertyDetails(req.Context(), id)
		if err != nil {
			RenderError(w, req, err, nil)
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "property": l})
	})
}
