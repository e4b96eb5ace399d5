package feed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gurnameh-99/fact-den/internal/domain"
)

func TestToggleVoteTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		current   domain.VoteState
		clicked   domain.VoteState
		wantNext  domain.VoteState
		wantDelta int64
	}{
		{"none to up", domain.VoteNone, domain.VoteUp, domain.VoteUp, 1},
		{"none to down", domain.VoteNone, domain.VoteDown, domain.VoteDown, -1},
		{"up unvote", domain.VoteUp, domain.VoteUp, domain.VoteNone, -1},
		{"down unvote", domain.VoteDown, domain.VoteDown, domain.VoteNone, 1},
		{"up to down", domain.VoteUp, domain.VoteDown, domain.VoteDown, -2},
		{"down to up", domain.VoteDown, domain.VoteUp, domain.VoteUp, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, delta := toggleVote(tc.current, tc.clicked)
			if next != tc.wantNext {
				t.Fatalf("next = %v, want %v", next, tc.wantNext)
			}
			if delta != tc.wantDelta {
				t.Fatalf("delta = %d, want %d", delta, tc.wantDelta)
			}
		})
	}
}

type fakeCaster struct {
	mu        sync.Mutex
	deltas    []int64
	ok        bool
	err       error
	block     chan struct{}
	entered   chan struct{}
	enterOnce sync.Once
	userVal   domain.VoteState
}

func (f *fakeCaster) CastVote(_ context.Context, _ int64, delta int64) (bool, error) {
	if f.entered != nil {
		f.enterOnce.Do(func() { close(f.entered) })
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.deltas = append(f.deltas, delta)
	f.mu.Unlock()
	return f.ok, f.err
}

func (f *fakeCaster) UserVote(_ context.Context, _ int64) (domain.VoteState, error) {
	return f.userVal, nil
}

func (f *fakeCaster) calls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.deltas...)
}

func feedStoreWithPost(id int64, votes int64) *Store {
	s := NewStore()
	s.Replace([]domain.Post{{ID: id, Title: "x", Votes: votes}})
	return s
}

func TestVoterToggleRoundTrip(t *testing.T) {
	t.Parallel()

	caster := &fakeCaster{ok: true}
	store := feedStoreWithPost(7, 10)
	voter := NewVoter(7, caster, store)

	state, err := voter.Toggle(context.Background(), domain.VoteUp)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if state != domain.VoteUp {
		t.Fatalf("state = %v, want up", state)
	}
	if post, _ := store.Get(7); post.Votes != 11 {
		t.Fatalf("votes = %d, want 11", post.Votes)
	}

	state, err = voter.Toggle(context.Background(), domain.VoteUp)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if state != domain.VoteNone {
		t.Fatalf("state = %v, want none", state)
	}
	if post, _ := store.Get(7); post.Votes != 10 {
		t.Fatalf("votes = %d, want 10 after un-vote", post.Votes)
	}

	var net int64
	for _, d := range caster.calls() {
		net += d
	}
	if net != 0 {
		t.Fatalf("net delta = %d, want 0", net)
	}
}

func TestVoterRejectedMutationLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	caster := &fakeCaster{ok: false}
	store := feedStoreWithPost(3, 5)
	voter := NewVoter(3, caster, store)

	_, err := voter.Toggle(context.Background(), domain.VoteDown)
	if !errors.Is(err, ErrVoteRejected) {
		t.Fatalf("err = %v, want ErrVoteRejected", err)
	}
	if voter.State() != domain.VoteNone {
		t.Fatalf("state mutated on rejected vote")
	}
	if post, _ := store.Get(3); post.Votes != 5 {
		t.Fatalf("count mutated on rejected vote: %d", post.Votes)
	}
}

func TestVoterDoubleClickDoesNotDoubleSubmit(t *testing.T) {
	t.Parallel()

	caster := &fakeCaster{ok: true, block: make(chan struct{}), entered: make(chan struct{})}
	store := feedStoreWithPost(9, 0)
	voter := NewVoter(9, caster, store)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := voter.Toggle(context.Background(), domain.VoteUp); err != nil {
			t.Errorf("first toggle: %v", err)
		}
	}()

	// Second click while the first mutation is unresolved.
	<-caster.entered
	if _, err := voter.Toggle(context.Background(), domain.VoteUp); !errors.Is(err, ErrVoteInFlight) {
		t.Fatalf("err = %v, want ErrVoteInFlight", err)
	}

	close(caster.block)
	<-done

	if calls := caster.calls(); len(calls) != 1 {
		t.Fatalf("submitted %d mutations, want 1", len(calls))
	}
}

func TestVoterLoadSeedsServerState(t *testing.T) {
	t.Parallel()

	caster := &fakeCaster{ok: true, userVal: domain.VoteDown}
	voter := NewVoter(4, caster, feedStoreWithPost(4, 2))
	if err := voter.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if voter.State() != domain.VoteDown {
		t.Fatalf("state = %v, want down", voter.State())
	}
}
