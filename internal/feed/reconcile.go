package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gurnameh-99/fact-den/internal/domain"
	"github.com/gurnameh-99/fact-den/internal/events"
	"github.com/gurnameh-99/fact-den/internal/ports"
	"github.com/gurnameh-99/fact-den/internal/verdictcache"
)

// VerdictState is the per-post view state of the fact-check subsystem.
type VerdictState int

const (
	StateNoVerdict VerdictState = iota
	StateLoading
	StateResolved
)

func (s VerdictState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateResolved:
		return "resolved"
	default:
		return "no_verdict"
	}
}

type verdictEvent int

const (
	evAdopt verdictEvent = iota
	evExpand
	evRefresh
	evFetchOK
	evFetchFail
)

// reduceVerdict is the pure transition table. It returns the next state
// and whether the event is permitted in the current state. Keeping this
// free of I/O is what makes the machine testable without a network.
func reduceVerdict(state VerdictState, ev verdictEvent) (VerdictState, bool) {
	switch ev {
	case evAdopt:
		// An embedded or broadcast verdict is authoritative; adopt from
		// any state. A concurrent fetch completion is discarded by the
		// Loading check below.
		return StateResolved, true
	case evExpand:
		if state != StateNoVerdict {
			return state, false
		}
		return StateLoading, true
	case evRefresh:
		if state == StateLoading {
			return state, false
		}
		return StateLoading, true
	case evFetchOK:
		if state != StateLoading {
			return state, false
		}
		return StateResolved, true
	case evFetchFail:
		if state != StateLoading {
			return state, false
		}
		return StateNoVerdict, true
	}
	return state, false
}

// VerdictWriter is the slice of the ledger contract the reconciler needs
// beyond fetching.
type VerdictWriter interface {
	VerdictFetcher
	StoreVerdict(ctx context.Context, postID int64, verdict domain.Verdict) (bool, error)
}

// ErrVerdictInFlight reports a refresh dispatched while one is loading.
var ErrVerdictInFlight = errors.New("verdict request already in flight")

// Reconciler merges the three verdict sources for one post — embedded
// payload, cache, on-demand fetch — into one authoritative view value.
// It is the effect layer over the pure reduceVerdict table.
type Reconciler struct {
	postID int64
	ledger VerdictWriter
	source ports.VerdictSource
	cache  *verdictcache.Cache
	store  *Store
	bus    *events.Bus
	logger *slog.Logger

	mu          sync.Mutex
	state       VerdictState
	verdict     *domain.Verdict
	resolved    bool // Resolved with nil verdict means "checked, none found"
	closed      bool
	unsubscribe func()
}

// NewReconciler builds the per-post machine and subscribes it to
// cross-view verdict broadcasts.
func NewReconciler(postID int64, ledger VerdictWriter, source ports.VerdictSource, cache *verdictcache.Cache, store *Store, bus *events.Bus, logger *slog.Logger) *Reconciler {
	r := &Reconciler{
		postID: postID,
		ledger: ledger,
		source: source,
		cache:  cache,
		store:  store,
		bus:    bus,
		logger: logger,
		state:  StateNoVerdict,
	}
	if bus != nil {
		r.unsubscribe = bus.SubscribeVerdicts(func(ev events.VerdictUpdated) {
			if ev.PostID == postID {
				r.adopt(ev.Verdict)
			}
		})
	}
	return r
}

// Sync applies a fresh post payload. An embedded verdict is the cheapest
// and most authoritative source and is adopted without any fetch.
func (r *Reconciler) Sync(post domain.Post) {
	if post.ID != r.postID || post.AIVerdict == nil {
		return
	}
	r.adopt(*post.AIVerdict)
}

// Expand handles the first opening of the post details. Cache wins over
// the network; a fetch is only issued when neither payload nor cache had
// a verdict. Resolved with no verdict is a terminal non-error state.
func (r *Reconciler) Expand(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	if cached, ok := r.cache.Get(r.postID); ok && r.state == StateNoVerdict {
		r.applyLocked(cached)
		r.mu.Unlock()
		return nil
	}
	next, allowed := reduceVerdict(r.state, evExpand)
	if !allowed {
		r.mu.Unlock()
		return nil
	}
	r.state = next
	r.mu.Unlock()

	verdict, err := r.ledger.Verdict(ctx, r.postID)
	if err != nil {
		r.fail()
		return fmt.Errorf("fetch verdict for post %d: %w", r.postID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	next, allowed = reduceVerdict(r.state, evFetchOK)
	if r.closed || !allowed {
		// Completed after close or after an adopt won the race; discard.
		return nil
	}
	r.state = next
	r.resolved = true
	if verdict != nil {
		r.applyLocked(*verdict)
	}
	return nil
}

// Refresh always asks the AI source for a new verdict, ignoring cache,
// stores it on the ledger, and broadcasts it so every view holding this
// post converges. Its Loading guard is the only dedup mechanism.
func (r *Reconciler) Refresh(ctx context.Context) (domain.Verdict, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.Verdict{}, nil
	}
	next, allowed := reduceVerdict(r.state, evRefresh)
	if !allowed {
		r.mu.Unlock()
		return domain.Verdict{}, ErrVerdictInFlight
	}
	prevState, prevVerdict := r.state, r.verdict
	r.state = next
	post, _ := r.store.Get(r.postID)
	r.mu.Unlock()

	verdict, err := r.source.CheckClaim(ctx, post.Title, post.Content)
	if err != nil {
		r.restore(prevState, prevVerdict)
		return domain.Verdict{}, fmt.Errorf("request verdict for post %d: %w", r.postID, err)
	}

	if ok, storeErr := r.ledger.StoreVerdict(ctx, r.postID, verdict); storeErr != nil || !ok {
		// The verdict is still valid locally; losing the ledger copy
		// costs a regeneration on the next session.
		r.log().Warn("store verdict on ledger failed", "post", r.postID, "error", storeErr)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return verdict, nil
	}
	r.applyLocked(verdict)
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.PublishVerdict(events.VerdictUpdated{PostID: r.postID, Verdict: verdict})
	}
	return verdict, nil
}

// State reports the machine's current state.
func (r *Reconciler) State() VerdictState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Verdict returns the authoritative value, nil while unresolved or when
// a completed check found none.
func (r *Reconciler) Verdict() *domain.Verdict {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.verdict == nil {
		return nil
	}
	v := *r.verdict
	return &v
}

// Close detaches the reconciler from the bus; any in-flight fetch result
// arriving afterwards is discarded rather than applied.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	unsub := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (r *Reconciler) adopt(verdict domain.Verdict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	next, _ := reduceVerdict(r.state, evAdopt)
	r.state = next
	r.applyLocked(verdict)
}

// applyLocked records the verdict locally and mirrors it to the cache
// and the shared collection. Caller holds r.mu.
func (r *Reconciler) applyLocked(verdict domain.Verdict) {
	r.state = StateResolved
	r.resolved = true
	v := verdict
	r.verdict = &v
	r.cache.Put(r.postID, verdict)
	r.store.ApplyVerdict(r.postID, verdict)
}

func (r *Reconciler) fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if next, allowed := reduceVerdict(r.state, evFetchFail); allowed {
		r.state = next
	}
}

func (r *Reconciler) restore(state VerdictState, verdict *domain.Verdict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.state = state
	r.verdict = verdict
}

func (r *Reconciler) log() *slog.Logger {
	if r.logger == nil {
		return slog.Default()
	}
	return r.logger
}
