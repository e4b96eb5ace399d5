package ports

import (
	"context"

	"github.com/gurnameh-99/fact-den/internal/domain"
)

// PostLedger is the request/response contract of the remote post service.
// Vote counts and comment ids are server-authoritative; the client only
// mirrors them.
type PostLedger interface {
	ListPosts(ctx context.Context) ([]domain.Post, error)
	CreatePost(ctx context.Context, title, content string) (domain.Post, error)
	AddComment(ctx context.Context, postID int64, content string) (bool, error)
	CastVote(ctx context.Context, postID int64, delta int64) (bool, error)
	UserVote(ctx context.Context, postID int64) (domain.VoteState, error)
	Verdict(ctx context.Context, postID int64) (*domain.Verdict, error)
	StoreVerdict(ctx context.Context, postID int64, verdict domain.Verdict) (bool, error)
}

// AuthorDirectory is the subset of the ledger consulted for display identities.
type AuthorDirectory interface {
	UserInfo(ctx context.Context, principal domain.Principal) (*domain.AuthorInfo, error)
	UpdateUserInfo(ctx context.Context, alias, avatarID string) (bool, error)
}

// VerdictSource produces fresh fact-check verdicts from an external
// natural-language model. Implementations must degrade parse failures to
// placeholder field values rather than returning an error.
type VerdictSource interface {
	CheckClaim(ctx context.Context, title, content string) (domain.Verdict, error)
}

// Identity wraps the remote authentication flow. Current never blocks on
// the network; Login and Logout do.
type Identity interface {
	Current() (domain.Principal, bool)
	Login(ctx context.Context) (domain.Principal, error)
	Logout(ctx context.Context) error
}

// SnapshotStore persists opaque cache snapshots under namespaced keys.
// Load returns (nil, nil) for an absent key.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// TitleResolver maps a source URL to a human-readable page title.
type TitleResolver interface {
	ResolveTitle(ctx context.Context, url string) (string, error)
}

// FeedRefresher re-synchronizes the shared post collection on a schedule.
type FeedRefresher interface {
	Start(ctx context.Context, job func()) error
	Stop(ctx context.Context) error
}
