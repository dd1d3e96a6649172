// Package enrich resolves listing-agent detail for a search result one
// listing at a time, delivering each result as soon as it lands.
package enrich

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yourorg/listing-sync/internal/listing"
)

// DetailFetcher is the per-listing agent endpoint. *zillow.Client satisfies it.
type DetailFetcher interface {
	AgentDetail(ctx context.Context, id string) (listing.AgentDetail, error)
}

// Sink receives each resolved detail. It runs under the sequencer's delivery
// lock and must not call Enrich or Stop.
type Sink func(id string, d listing.AgentDetail)

type Option func(*Sequencer)

// WithRate paces detail requests to rps per second; rps <= 0 disables pacing.
func WithRate(rps float64) Option {
	return func(s *Sequencer) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Sequencer) { s.log = l }
}

type Sequencer struct {
	fetcher DetailFetcher
	limiter *rate.Limiter
	log     *zap.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func New(f DetailFetcher, opts ...Option) *Sequencer {
	s := &Sequencer{fetcher: f, log: zap.L()}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.Named("enrich")
	return s
}

// Run tracks one Enrich call.
type Run struct {
	gen       uint64
	done      chan struct{}
	delivered atomic.Int64
}

// Done is closed when the run has finished or been superseded.
func (r *Run) Done() <-chan struct{} { return r.done }

// Delivered counts sink invocations so far.
func (r *Run) Delivered() int { return int(r.delivered.Load()) }

func (r *Run) Generation() uint64 { return r.gen }

// Wait blocks until the run finishes or ctx ends.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enrich starts resolving every listing in set, in set order, and returns
// immediately. Any previous run is cancelled; once Enrich returns, the
// previous run can no longer reach its sink.
func (s *Sequencer) Enrich(ctx context.Context, set *listing.Set, sink Sink) *Run {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	r := &Run{gen: s.gen, done: make(chan struct{})}
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(runCtx, cancel, set, sink, r)
	return r
}

// Stop cancels the active run and discards anything it has not delivered.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}

func (s *Sequencer) run(ctx context.Context, cancel context.CancelFunc, set *listing.Set, sink Sink, r *Run) {
	defer close(r.done)
	defer cancel()

	ids := set.IDs()
	s.log.Debug("enrichment started", zap.Uint64("generation", r.gen), zap.Int("listings", len(ids)))
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
		}
		d, err := s.fetcher.AgentDetail(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("agent detail unavailable", zap.String("listing_id", id), zap.Error(err))
			d = listing.UnavailableAgent()
		}
		if !s.deliver(ctx, r, set, sink, id, d) {
			return
		}
	}
	s.log.Debug("enrichment finished", zap.Uint64("generation", r.gen), zap.Int("delivered", r.Delivered()))
}

// deliver applies d and calls sink unless the run has been superseded. It
// reports whether the run is still current.
func (s *Sequencer) deliver(ctx context.Context, r *Run, set *listing.Set, sink Sink, id string, d listing.AgentDetail) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.gen != s.gen || ctx.Err() != nil {
		return false
	}
	if !set.Resolve(id, d) {
		return true
	}
	if d.State == "" {
		d.State = listing.AgentResolved
	}
	if sink != nil {
		sink(id, d)
	}
	r.delivered.Add(1)
	return true
}
