package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/yourorg/listing-sync/internal/events"
	"github.com/yourorg/listing-sync/internal/finder"
	"github.com/yourorg/listing-sync/internal/listing"
	"github.com/yourorg/listing-sync/internal/logger"
)

type SearchDeps struct {
	Finder *finder.Finder
	Events events.Publisher
	// Heartbeat is the SSE keep-alive interval; 0 means 15s.
	Heartbeat time.Duration
}

func RegisterSearch(r chi.Router, d SearchDeps) {
	// POST: JSON body
	r.Post("/v1/search", func(w http.ResponseWriter, req *http.Request) {
		var q listing.Query
		if err := json.NewDecoder(req.Body).Decode(&q); err != nil {
			badRequest(w, req, "invalid_json", err.Error())
			return
		}
		runSearch(w, req, d, q)
	})

	// GET: query params run a search; without a location it returns the
	// active search.
	r.Get("/v1/search", func(w http.ResponseWriter, req *http.Request) {
		v := req.URL.Query()
		if v.Get("location") == "" && v.Get("state") == "" {
			render.JSON(w, req, d.Finder.Current())
			return
		}
		q, err := queryFromValues(v)
		if err != nil {
			badRequest(w, req, "invalid_query", err.Error())
			return
		}
		runSearch(w, req, d, q)
	})
}

func runSearch(w http.ResponseWriter, req *http.Request, d SearchDeps, q listing.Query) {
	snap, err := d.Finder.Search(req.Context(), q)
	if err != nil {
		RenderError(w, req, err, nil)
		return
	}
	render.JSON(w, req, snap)
}

func queryFromValues(v map[string][]string) (listing.Query, error) {
	get := func(k string) string {
		if vals := v[k]; len(vals) > 0 {
			return strings.TrimSpace(vals[0])
		}
		return ""
	}
	q := listing.Query{
		Location: get("location"),
		State:    get("state"),
		Sort:     get("sort"),
	}
	for _, raw := range v["home_type"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				q.HomeTypes = append(q.HomeTypes, listing.PropertyType(t))
			}
		}
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"min_price", &q.MinPrice},
		{"max_price", &q.MaxPrice},
		{"beds", &q.Beds},
		{"baths", &q.Baths},
		{"min_sqft", &q.MinSqft},
		{"max_sqft", &q.MaxSqft},
		{"page", &q.Page},
	}
	for _, f := range ints {
		s := get(f.key)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return listing.Query{}, eris.Errorf("%s: %q is not a number", f.key, s)
		}
		*f.dst = n
	}
	return q, nil
}

// RegisterSearchEvents streams the active snapshot followed by one "agent"
// event per resolved listing.
func RegisterSearchEvents(r chi.Router, d SearchDeps) {
	r.Get("/v1/search/events", func(w http.ResponseWriter, req *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok || d.Events == nil {
			render.Status(req, http.StatusNotImplemented)
			render.JSON(w, req, map[string]any{"error": "streaming_unsupported"})
			return
		}
		ch, unsub := d.Events.SubscribeAgentResolved(64)
		defer unsub()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		log := logger.From(req.Context())
		if err := writeEvent(w, "snapshot", d.Finder.Current()); err != nil {
			log.Debug("sse write failed", zap.Error(err))
			return
		}
		flusher.Flush()

		hb := d.Heartbeat
		if hb <= 0 {
			hb = 15 * time.Second
		}
		ticker := time.NewTicker(hb)
		defer ticker.Stop()

		for {
			select {
			case <-req.Context().Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case evt, open := <-ch:
				if !open {
					return
				}
				if err := writeEvent(w, "agent", evt); err != nil {
					log.Debug("sse write failed", zap.Error(err))
					return
				}
				flusher.Flush()
			}
		}
	})
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, b)
	return err
}
