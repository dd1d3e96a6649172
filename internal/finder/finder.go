// Package finder owns the active search session: it runs the search, keeps
// the result set, and drives agent enrichment for it in the background.
package finder

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/yourorg/listing-sync/internal/enrich"
	"github.com/yourorg/listing-sync/internal/events"
	"github.com/yourorg/listing-sync/internal/listing"
)

// Searcher is the bulk listing search. *zillow.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, q listing.Query) (listing.Page, error)
}

var ErrNotFound = eris.New("finder: listing not in current search")

// Snapshot is a copy of the active search at one instant.
type Snapshot struct {
	SearchID uint64            `json:"searchId"`
	Query    listing.Query     `json:"query"`
	Total    int               `json:"total"`
	Listings []listing.Listing `json:"properties"`
	Pending  int               `json:"pending"`
}

type Finder struct {
	search Searcher
	seq    *enrich.Sequencer
	pub    events.Publisher
	log    *zap.Logger

	// bg outlives the request that started a search.
	bg     context.Context
	stopBg context.CancelFunc

	mu sync.RWMutex
	// issued counts searches started; searchID is the one installed.
	issued   uint64
	searchID uint64
	query    listing.Query
	total    int
	set      *listing.Set
	run      *enrich.Run
}

func New(s Searcher, seq *enrich.Sequencer, pub events.Publisher, log *zap.Logger) *Finder {
	if log == nil {
		log = zap.L()
	}
	bg, stop := context.WithCancel(context.Background())
	return &Finder{
		search: s,
		seq:    seq,
		pub:    pub,
		log:    log.Named("finder"),
		bg:     bg,
		stopBg: stop,
		set:    listing.NewSet(nil),
	}
}

// Search replaces the active result set and starts enriching it. The
// returned snapshot holds placeholder agents; resolved agents arrive as
// AgentResolved events. A search overtaken by a later one while waiting on
// the provider returns its page without replacing the active set.
func (f *Finder) Search(ctx context.Context, q listing.Query) (Snapshot, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return Snapshot{}, err
	}

	f.mu.Lock()
	f.issued++
	id := f.issued
	f.mu.Unlock()

	page, err := f.search.Search(ctx, q)
	if err != nil {
		return Snapshot{}, err
	}
	for i := range page.Listings {
		page.Listings[i].Agent = listing.LoadingAgent()
	}
	set := listing.NewSet(page.Listings)

	f.mu.Lock()
	if id != f.issued {
		f.mu.Unlock()
		f.log.Info("search superseded",
			zap.Uint64("search_id", id),
			zap.String("location", q.Location),
			zap.String("state", q.State))
		return newSnapshot(id, q, page.Total, set.Snapshot()), nil
	}
	f.searchID = id
	f.query = q
	f.total = page.Total
	f.set = set
	f.run = f.seq.Enrich(f.bg, set, f.sink(id))
	f.mu.Unlock()

	f.log.Info("search complete",
		zap.Uint64("search_id", id),
		zap.String("location", q.Location),
		zap.String("state", q.State),
		zap.Int("listings", set.Len()),
		zap.Int("total", page.Total))

	return f.snapshot(), nil
}

func (f *Finder) sink(searchID uint64) enrich.Sink {
	return func(id string, d listing.AgentDetail) {
		if f.pub == nil {
			return
		}
		f.pub.PublishAgentResolved(context.Background(), events.AgentResolved{
			SearchID:  searchID,
			ListingID: id,
			Agent:     d,
			YearBuilt: d.YearBuilt,
		})
	}
}

func (f *Finder) Current() Snapshot { return f.snapshot() }

func (f *Finder) snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return newSnapshot(f.searchID, f.query, f.total, f.set.Snapshot())
}

func newSnapshot(id uint64, q listing.Query, total int, items []listing.Listing) Snapshot {
	pending := 0
	for _, l := range items {
		if l.Agent.State == listing.AgentLoading {
			pending++
		}
	}
	return Snapshot{SearchID: id, Query: q, Total: total, Listings: items, Pending: pending}
}

func (f *Finder) Listing(id string) (listing.Listing, error) {
	f.mu.RLock()
	set := f.set
	f.mu.RUnlock()
	l, ok := set.Get(id)
	if !ok {
		return listing.Listing{}, eris.Wrapf(ErrNotFound, "listing %s", id)
	}
	return l, nil
}

// Listings returns the named listings in the order given, or every listing
// in search order when ids is empty.
func (f *Finder) Listings(ids []string) ([]listing.Listing, error) {
	f.mu.RLock()
	set := f.set
	f.mu.RUnlock()
	if len(ids) == 0 {
		return set.Snapshot(), nil
	}
	out := make([]listing.Listing, 0, len(ids))
	for _, id := range ids {
		l, ok := set.Get(id)
		if !ok {
			return nil, eris.Wrapf(ErrNotFound, "listing %s", id)
		}
		out = append(out, l)
	}
	return out, nil
}

// Wait blocks until the current enrichment run finishes.
func (f *Finder) Wait(ctx context.Context) error {
	f.mu.RLock()
	run := f.run
	f.mu.RUnlock()
	if run == nil {
		return nil
	}
	return run.Wait(ctx)
}

// Close stops any enrichment in flight.
func (f *Finder) Close() {
	f.seq.Stop()
	f.stopBg()
}
