package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/listing-sync/internal/listing"
)

type stubFetcher struct {
	mu          sync.Mutex
	inflight    int
	maxInflight int
	calls       []string
	gates       map[string]chan struct{}
	started     chan string
	fail        map[string]bool
	years       map[string]int
}

func (f *stubFetcher) AgentDetail(_ context.Context, id string) (listing.AgentDetail, error) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.calls = append(f.calls, id)
	gate := f.gates[id]
	started := f.started
	f.mu.Unlock()

	if started != nil {
		started <- id
	}
	if gate != nil {
		<-gate
	} else {
		time.Sleep(2 * time.Millisecond)
	}

	f.mu.Lock()
	f.inflight--
	fail := f.fail[id]
	year := f.years[id]
	f.mu.Unlock()

	if fail {
		return listing.AgentDetail{}, errors.New("upstream 500")
	}
	return listing.AgentDetail{
		Name:       "Agent " + id,
		BrokerName: "Broker " + id,
		Phone:      "5551234567",
		Email:      id + "@example.com",
		YearBuilt:  year,
	}, nil
}

func newSet(ids ...string) *listing.Set {
	items := make([]listing.Listing, len(ids))
	for i, id := range ids {
		items[i] = listing.Listing{ID: id, YearBuilt: 1990, Agent: listing.LoadingAgent()}
	}
	return listing.NewSet(items)
}

type recorder struct {
	mu  sync.Mutex
	ids []string
	got map[string]listing.AgentDetail
}

func (r *recorder) sink(id string, d listing.AgentDetail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.got == nil {
		r.got = map[string]listing.AgentDetail{}
	}
	r.ids = append(r.ids, id)
	r.got[id] = d
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func waitRun(t *testing.T, r *Run) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
}

func TestEnrichDeliversEachListingOnceInOrder(t *testing.T) {
	f := &stubFetcher{}
	s := New(f, WithLogger(zap.NewNop()))
	set := newSet("a", "b", "c", "d", "e")
	rec := &recorder{}

	run := s.Enrich(context.Background(), set, rec.sink)
	waitRun(t, run)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, rec.snapshot())
	assert.Equal(t, 5, run.Delivered())
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, f.calls)
	assert.Equal(t, 1, f.maxInflight, "detail requests must never overlap")

	for _, l := range set.Snapshot() {
		assert.Equal(t, listing.AgentResolved, l.Agent.State, l.ID)
		assert.Equal(t, "Agent "+l.ID, l.Agent.Name)
	}
}

func TestEnrichStartsNextCallOnlyAfterResponse(t *testing.T) {
	f := &stubFetcher{
		gates:   map[string]chan struct{}{"a": make(chan struct{}), "b": make(chan struct{})},
		started: make(chan string, 2),
	}
	s := New(f, WithLogger(zap.NewNop()))
	run := s.Enrich(context.Background(), newSet("a", "b"), nil)

	assert.Equal(t, "a", <-f.started)
	select {
	case id := <-f.started:
		t.Fatalf("%s started before a responded", id)
	case <-time.After(20 * time.Millisecond):
	}
	close(f.gates["a"])
	assert.Equal(t, "b", <-f.started)
	close(f.gates["b"])
	waitRun(t, run)
	assert.Equal(t, 2, run.Delivered())
}

func TestEnrichFailureBecomesUnavailableAndContinues(t *testing.T) {
	f := &stubFetcher{fail: map[string]bool{"b": true}}
	s := New(f, WithLogger(zap.NewNop()))
	set := newSet("a", "b", "c")
	rec := &recorder{}

	waitRun(t, s.Enrich(context.Background(), set, rec.sink))

	assert.Equal(t, []string{"a", "b", "c"}, rec.snapshot())
	assert.Equal(t, listing.UnavailableAgent(), rec.got["b"])
	b, _ := set.Get("b")
	assert.Equal(t, listing.AgentUnavailable, b.Agent.State)
	assert.Equal(t, listing.NotAvailable, b.Agent.Phone)
	c, _ := set.Get("c")
	assert.Equal(t, listing.AgentResolved, c.Agent.State)
}

func TestEnrichAppliesYearBuiltCorrection(t *testing.T) {
	f := &stubFetcher{years: map[string]int{"a": 2004}}
	s := New(f, WithLogger(zap.NewNop()))
	set := newSet("a", "b")

	waitRun(t, s.Enrich(context.Background(), set, nil))

	a, _ := set.Get("a")
	assert.Equal(t, 2004, a.YearBuilt)
	b, _ := set.Get("b")
	assert.Equal(t, 1990, b.YearBuilt)
}

func TestNewRunDiscardsSupersededDeliveries(t *testing.T) {
	f := &stubFetcher{
		gates:   map[string]chan struct{}{"old-1": make(chan struct{})},
		started: make(chan string, 8),
	}
	s := New(f, WithLogger(zap.NewNop()))

	oldSet := newSet("old-1", "old-2")
	oldRec := &recorder{}
	first := s.Enrich(context.Background(), oldSet, oldRec.sink)
	require.Equal(t, "old-1", <-f.started)

	newRec := &recorder{}
	second := s.Enrich(context.Background(), newSet("new-1", "new-2"), newRec.sink)

	// The stale fetch completes after the new run has started.
	close(f.gates["old-1"])
	waitRun(t, first)
	waitRun(t, second)

	assert.Empty(t, oldRec.snapshot())
	assert.Equal(t, 0, first.Delivered())
	old1, _ := oldSet.Get("old-1")
	assert.Equal(t, listing.AgentLoading, old1.Agent.State)
	assert.Equal(t, []string{"new-1", "new-2"}, newRec.snapshot())
	assert.Greater(t, second.Generation(), first.Generation())
}

func TestStopEndsRunWithoutDelivery(t *testing.T) {
	f := &stubFetcher{
		gates:   map[string]chan struct{}{"a": make(chan struct{})},
		started: make(chan string, 2),
	}
	s := New(f, WithLogger(zap.NewNop()))
	rec := &recorder{}
	run := s.Enrich(context.Background(), newSet("a", "b"), rec.sink)
	<-f.started

	s.Stop()
	close(f.gates["a"])
	waitRun(t, run)
	assert.Empty(t, rec.snapshot())
}

func TestCallerCancellationStopsRun(t *testing.T) {
	f := &stubFetcher{
		gates:   map[string]chan struct{}{"a": make(chan struct{})},
		started: make(chan string, 2),
	}
	s := New(f, WithLogger(zap.NewNop()))
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	run := s.Enrich(ctx, newSet("a", "b"), rec.sink)
	<-f.started

	cancel()
	close(f.gates["a"])
	waitRun(t, run)
	assert.Empty(t, rec.snapshot())
	assert.Equal(t, []string{"a"}, f.calls)
}

func TestEnrichWithRateLimit(t *testing.T) {
	f := &stubFetcher{}
	s := New(f, WithLogger(zap.NewNop()), WithRate(50))
	start := time.Now()
	run := s.Enrich(context.Background(), newSet("a", "b", "c"), nil)
	waitRun(t, run)

	assert.Equal(t, 3, run.Delivered())
	// Burst of one: the second and third calls each wait ~20ms.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestEnrichEmptySet(t *testing.T) {
	s := New(&stubFetcher{}, WithLogger(zap.NewNop()))
	run := s.Enrich(context.Background(), listing.NewSet(nil), nil)
	waitRun(t, run)
	assert.Equal(t, 0, run.Delivered())
}
