package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/gurnameh-99/fact-den/internal/domain"
	"github.com/gurnameh-99/fact-den/internal/events"
	"github.com/gurnameh-99/fact-den/internal/verdictcache"
)

func TestReduceVerdictTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		state       VerdictState
		ev          verdictEvent
		wantState   VerdictState
		wantAllowed bool
	}{
		{"adopt from empty", StateNoVerdict, evAdopt, StateResolved, true},
		{"adopt over loading", StateLoading, evAdopt, StateResolved, true},
		{"expand from empty", StateNoVerdict, evExpand, StateLoading, true},
		{"expand while loading denied", StateLoading, evExpand, StateLoading, false},
		{"expand when resolved denied", StateResolved, evExpand, StateResolved, false},
		{"refresh when resolved", StateResolved, evRefresh, StateLoading, true},
		{"refresh from empty", StateNoVerdict, evRefresh, StateLoading, true},
		{"refresh while loading denied", StateLoading, evRefresh, StateLoading, false},
		{"fetch ok", StateLoading, evFetchOK, StateResolved, true},
		{"fetch fail", StateLoading, evFetchFail, StateNoVerdict, true},
		{"stale fetch ok discarded", StateResolved, evFetchOK, StateResolved, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, allowed := reduceVerdict(tc.state, tc.ev)
			if got != tc.wantState || allowed != tc.wantAllowed {
				t.Fatalf("reduceVerdict(%v, %v) = (%v, %v), want (%v, %v)",
					tc.state, tc.ev, got, allowed, tc.wantState, tc.wantAllowed)
			}
		})
	}
}

type fakeLedger struct {
	mu       sync.Mutex
	fetches  int
	stored   map[int64]domain.Verdict
	verdicts map[int64]*domain.Verdict
	fetchErr error
	storeOK  bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{stored: map[int64]domain.Verdict{}, verdicts: map[int64]*domain.Verdict{}, storeOK: true}
}

func (f *fakeLedger) Verdict(_ context.Context, postID int64) (*domain.Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.verdicts[postID], nil
}

func (f *fakeLedger) StoreVerdict(_ context.Context, postID int64, v domain.Verdict) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[postID] = v
	return f.storeOK, nil
}

func (f *fakeLedger) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type fakeSource struct {
	verdict domain.Verdict
	err     error
	calls   int
}

func (f *fakeSource) CheckClaim(context.Context, string, string) (domain.Verdict, error) {
	f.calls++
	if f.err != nil {
		return domain.Verdict{}, f.err
	}
	return f.verdict, nil
}

func newCache() *verdictcache.Cache {
	return verdictcache.New(newMemStore(), nil)
}

func TestEmbeddedVerdictResolvesWithoutFetch(t *testing.T) {
	t.Parallel()

	ledger := newFakeLedger()
	store := NewStore()
	embedded := domain.Verdict{Rating: domain.RatingMisleading, Confidence: "High"}
	post := domain.Post{ID: 42, Title: "X", AIVerdict: &embedded}
	store.Replace([]domain.Post{post})

	rec := NewReconciler(42, ledger, &fakeSource{}, newCache(), store, events.NewBus(), nil)
	rec.Sync(post)

	if rec.State() != StateResolved {
		t.Fatalf("state = %v, want resolved", rec.State())
	}
	if got := rec.Verdict(); got == nil || got.Rating != domain.RatingMisleading {
		t.Fatalf("verdict = %+v, want embedded value", got)
	}
	if ledger.fetchCount() != 0 {
		t.Fatalf("embedded verdict still issued %d fetches", ledger.fetchCount())
	}
}

func TestExpandFetchesOnceThenServesCache(t *testing.T) {
	t.Parallel()

	ledger := newFakeLedger()
	v := domain.Verdict{Rating: domain.RatingTrue, Confidence: "High"}
	ledger.verdicts[7] = &v

	cache := newCache()
	store := NewStore()
	store.Replace([]domain.Post{{ID: 7, Title: "claim"}})
	bus := events.NewBus()

	rec := NewReconciler(7, ledger, &fakeSource{}, cache, store, bus, nil)
	if err := rec.Expand(context.Background()); err != nil {
		t.Fatalf("expand: %v", err)
	}
	if rec.State() != StateResolved {
		t.Fatalf("state = %v, want resolved", rec.State())
	}
	if ledger.fetchCount() != 1 {
		t.Fatalf("expand issued %d fetches, want 1", ledger.fetchCount())
	}

	// A second viewer of the same post hits the cache, not the network.
	rec2 := NewReconciler(7, ledger, &fakeSource{}, cache, store, bus, nil)
	if err := rec2.Expand(context.Background()); err != nil {
		t.Fatalf("second expand: %v", err)
	}
	if ledger.fetchCount() != 1 {
		t.Fatalf("cache did not prevent a second fetch: %d", ledger.fetchCount())
	}
	if got := rec2.Verdict(); got == nil || got.Rating != domain.RatingTrue {
		t.Fatalf("second viewer verdict = %+v", got)
	}
}

func TestExpandAbsentVerdictIsResolvedNonError(t *testing.T) {
	t.Parallel()

	ledger := newFakeLedger() // Verdict returns nil, nil
	store := NewStore()
	store.Replace([]domain.Post{{ID: 5, Title: "claim"}})

	rec := NewReconciler(5, ledger, &fakeSource{}, newCache(), store, events.NewBus(), nil)
	if err := rec.Expand(context.Background()); err != nil {
		t.Fatalf("expand: %v", err)
	}
	if rec.State() != StateResolved {
		t.Fatalf("state = %v, want resolved (checked, none found)", rec.State())
	}
	if rec.Verdict() != nil {
		t.Fatalf("verdict = %+v, want nil", rec.Verdict())
	}
}

func TestExpandFailureReturnsToNoVerdict(t *testing.T) {
	t.Parallel()

	ledger := newFakeLedger()
	ledger.fetchErr = fmt.Errorf("upstream down")
	store := NewStore()
	store.Replace([]domain.Post{{ID: 5, Title: "claim"}})

	rec := NewReconciler(5, ledger, &fakeSource{}, newCache(), store, events.NewBus(), nil)
	if err := rec.Expand(context.Background()); err == nil {
		t.Fatalf("expected expand error")
	}
	if rec.State() != StateNoVerdict {
		t.Fatalf("state = %v, want no_verdict after failure", rec.State())
	}

	// The user can retry.
	ledger.fetchErr = nil
	if err := rec.Expand(context.Background()); err != nil {
		t.Fatalf("retry expand: %v", err)
	}
	if rec.State() != StateResolved {
		t.Fatalf("state = %v after retry", rec.State())
	}
}

func TestRefreshBroadcastConvergesOtherViews(t *testing.T) {
	t.Parallel()

	ledger := newFakeLedger()
	cache := newCache()
	store := NewStore()
	store.Replace([]domain.Post{{ID: 42, Title: "X", Content: "claim text"}})
	bus := events.NewBus()

	// The AI reply has no "Truth rating:" line, so the parsed verdict
	// degrades to Unknown placeholders; still a valid resolved value.
	source := &fakeSource{verdict: domain.Verdict{
		Rating:     domain.RatingUnknown,
		Confidence: "N/A",
		Evidence:   []string{},
		Sources:    []string{},
	}}

	viewA := NewReconciler(42, ledger, source, cache, store, bus, nil)
	viewB := NewReconciler(42, ledger, source, cache, store, bus, nil)

	got, err := viewA.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got.Rating != domain.RatingUnknown {
		t.Fatalf("rating = %v, want Unknown", got.Rating)
	}

	// The second view converged via broadcast, without its own fetch.
	if viewB.State() != StateResolved {
		t.Fatalf("view B state = %v, want resolved", viewB.State())
	}
	if v := viewB.Verdict(); v == nil || v.Rating != domain.RatingUnknown {
		t.Fatalf("view B verdict = %+v", v)
	}
	if ledger.fetchCount() != 0 {
		t.Fatalf("broadcast caused %d extra fetches", ledger.fetchCount())
	}

	// The fresh verdict was stored on the ledger and cached.
	if _, ok := ledger.stored[42]; !ok {
		t.Fatalf("refresh did not store the verdict on the ledger")
	}
	if _, ok := cache.Get(42); !ok {
		t.Fatalf("refresh did not populate the cache")
	}
}

func TestRefreshFailureKeepsPreviousVerdict(t *testing.T) {
	t.Parallel()

	ledger := newFakeLedger()
	store := NewStore()
	prev := domain.Verdict{Rating: domain.RatingTrue, Confidence: "High"}
	post := domain.Post{ID: 1, Title: "X", AIVerdict: &prev}
	store.Replace([]domain.Post{post})

	source := &fakeSource{err: errors.New("all candidate models failed")}
	rec := NewReconciler(1, ledger, source, newCache(), store, events.NewBus(), nil)
	rec.Sync(post)

	if _, err := rec.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	if rec.State() != StateResolved {
		t.Fatalf("state = %v, want resolved with previous verdict", rec.State())
	}
	if v := rec.Verdict(); v == nil || v.Rating != domain.RatingTrue {
		t.Fatalf("previous verdict lost: %+v", v)
	}
}

func TestClosedReconcilerDiscardsBroadcast(t *testing.T) {
	t.Parallel()

	store := NewStore()
	store.Replace([]domain.Post{{ID: 2, Title: "X"}})
	bus := events.NewBus()

	rec := NewReconciler(2, newFakeLedger(), &fakeSource{}, newCache(), store, bus, nil)
	rec.Close()

	bus.PublishVerdict(events.VerdictUpdated{PostID: 2, Verdict: domain.Verdict{Rating: domain.RatingTrue}})
	if rec.State() != StateNoVerdict {
		t.Fatalf("closed reconciler applied a broadcast")
	}
}
