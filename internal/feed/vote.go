package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gurnameh-99/fact-den/internal/domain"
)

// VoteCaster is the slice of the ledger contract the voter needs.
type VoteCaster interface {
	CastVote(ctx context.Context, postID int64, delta int64) (bool, error)
	UserVote(ctx context.Context, postID int64) (domain.VoteState, error)
}

// ErrVoteInFlight reports a toggle dispatched while a vote mutation is
// still awaiting acknowledgement.
var ErrVoteInFlight = errors.New("vote already in flight")

// ErrVoteRejected reports a mutation the server refused.
var ErrVoteRejected = errors.New("vote rejected by server")

// toggleVote is the pure transition: clicking the current direction
// un-votes, anything else moves to the clicked direction. The returned
// delta is relative to the previous state because the server keeps a
// running total, not a per-user overwrite.
func toggleVote(current, clicked domain.VoteState) (next domain.VoteState, delta int64) {
	next = clicked
	if current == clicked {
		next = domain.VoteNone
	}
	return next, int64(next) - int64(current)
}

// Voter drives the tri-state vote toggle for one (post, caller) pair.
// The local state and count mutate only after the server acknowledges
// the delta, so a rejected mutation needs no rollback.
type Voter struct {
	postID int64
	ledger VoteCaster
	store  *Store

	mu       sync.Mutex
	state    domain.VoteState
	inFlight bool
}

// NewVoter starts with the unvoted state; call Load to seed from server.
func NewVoter(postID int64, ledger VoteCaster, store *Store) *Voter {
	return &Voter{postID: postID, ledger: ledger, store: store, state: domain.VoteNone}
}

// Load seeds the caller's last-known vote from the ledger.
func (v *Voter) Load(ctx context.Context) error {
	state, err := v.ledger.UserVote(ctx, v.postID)
	if err != nil {
		return fmt.Errorf("load vote for post %d: %w", v.postID, err)
	}
	v.mu.Lock()
	v.state = state
	v.mu.Unlock()
	return nil
}

// Toggle handles a click on the up or down control. A second click
// before the first resolves returns ErrVoteInFlight and submits nothing.
func (v *Voter) Toggle(ctx context.Context, clicked domain.VoteState) (domain.VoteState, error) {
	if clicked != domain.VoteUp && clicked != domain.VoteDown {
		return v.State(), fmt.Errorf("invalid vote direction %d", clicked)
	}

	v.mu.Lock()
	if v.inFlight {
		v.mu.Unlock()
		return v.State(), ErrVoteInFlight
	}
	v.inFlight = true
	current := v.state
	v.mu.Unlock()

	next, delta := toggleVote(current, clicked)

	ok, err := v.ledger.CastVote(ctx, v.postID, delta)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.inFlight = false

	if err != nil {
		return v.state, fmt.Errorf("cast vote for post %d: %w", v.postID, err)
	}
	if !ok {
		return v.state, ErrVoteRejected
	}

	v.state = next
	v.store.ApplyVoteDelta(v.postID, delta)
	return v.state, nil
}

// State returns the caller's current vote on this post.
func (v *Voter) State() domain.VoteState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Reset returns the toggle to the unvoted state; used on identity change.
func (v *Voter) Reset() {
	v.mu.Lock()
	v.state = domain.VoteNone
	v.inFlight = false
	v.mu.Unlock()
}
