package domain

import "time"

// Post is the core feed entity as served by the ledger backend.
// ID is server-assigned, immutable, and globally unique.
type Post struct {
	ID        int64
	Title     string
	Content   string
	Author    Principal
	Votes     int64
	Comments  []Comment
	CreatedAt time.Time

	// AIVerdict is nil when no verdict was ever requested or fetched.
	// A resolved-but-inconclusive check carries RatingUnknown instead.
	AIVerdict *Verdict
}

// Principal is the opaque, stable identity token issued by the
// identity provider for an authenticated caller.
type Principal string

// Anonymous is the principal used before login and after logout.
const Anonymous Principal = "anonymous"

// IsAnonymous reports whether the principal denotes an unauthenticated caller.
func (p Principal) IsAnonymous() bool {
	return p == "" || p == Anonymous
}

// Comment is append-only from the client's perspective. The server owns
// id assignment; optimistic display uses a provisional local sequence
// number until the list is next reconciled.
type Comment struct {
	ID      int64
	Content string
	Author  Principal
}

// VoteState is the caller's last-known vote on a post.
type VoteState int

const (
	VoteDown VoteState = -1
	VoteNone VoteState = 0
	VoteUp   VoteState = 1
)

func (v VoteState) String() string {
	switch v {
	case VoteDown:
		return "down"
	case VoteUp:
		return "up"
	default:
		return "none"
	}
}
