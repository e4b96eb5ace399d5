package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gurnameh-99/fact-den/internal/authorcache"
	"github.com/gurnameh-99/fact-den/internal/domain"
	"github.com/gurnameh-99/fact-den/internal/events"
	"github.com/gurnameh-99/fact-den/internal/ports"
	"github.com/gurnameh-99/fact-den/internal/verdictcache"
)

// ErrUnauthenticated blocks actions that require a caller identity.
var ErrUnauthenticated = errors.New("not authenticated")

// ErrUnknownPost reports an operation against a post id not in the feed.
var ErrUnknownPost = errors.New("unknown post")

// ServiceDeps wires all collaborators into the feed service.
type ServiceDeps struct {
	Ledger         ports.PostLedger
	Source         ports.VerdictSource
	Identity       ports.Identity
	VerdictCache   *verdictcache.Cache
	Authors        *authorcache.Cache
	Bus            *events.Bus
	Logger         *slog.Logger
	Prefetcher     *Prefetcher
	Store          *Store
	Titles         ports.TitleResolver
	SampleFallback bool
}

// Service owns the shared post collection and the per-post state
// machines, and is the single entry point the gateway talks to.
type Service struct {
	ledger         ports.PostLedger
	source         ports.VerdictSource
	identity       ports.Identity
	verdicts       *verdictcache.Cache
	authors        *authorcache.Cache
	bus            *events.Bus
	logger         *slog.Logger
	prefetcher     *Prefetcher
	store          *Store
	titles         ports.TitleResolver
	sampleFallback bool

	mu          sync.Mutex
	reconcilers map[int64]*Reconciler
	voters      map[int64]*Voter
}

// NewService constructs the facade and hooks identity changes to cache
// lifecycle: the verdict cache reloads its per-identity snapshot and the
// author cache is cleared outright.
func NewService(deps ServiceDeps) *Service {
	s := &Service{
		ledger:         deps.Ledger,
		source:         deps.Source,
		identity:       deps.Identity,
		verdicts:       deps.VerdictCache,
		authors:        deps.Authors,
		bus:            deps.Bus,
		logger:         deps.Logger,
		prefetcher:     deps.Prefetcher,
		store:          deps.Store,
		titles:         deps.Titles,
		sampleFallback: deps.SampleFallback,
		reconcilers:    map[int64]*Reconciler{},
		voters:         map[int64]*Voter{},
	}
	if deps.Bus != nil {
		deps.Bus.SubscribeAuth(func(ev events.AuthChanged) {
			s.onAuthChanged(ev.Principal)
		})
	}
	return s
}

// Sync fetches the post list, replaces the shared collection, feeds
// embedded verdicts to their reconcilers, and kicks off prefetch for the
// rest.
func (s *Service) Sync(ctx context.Context) error {
	posts, err := s.ledger.ListPosts(ctx)
	if err != nil {
		return fmt.Errorf("sync feed: %w", err)
	}
	if len(posts) == 0 && s.sampleFallback {
		s.log().Info("ledger returned no posts, serving samples")
		posts = samplePosts()
	}

	s.store.Replace(posts)
	for _, post := range posts {
		s.reconcilerFor(post.ID).Sync(post)
	}
	s.prefetcher.Prefetch(ctx, posts)
	return nil
}

// Posts returns the feed filtered by an optional search query.
func (s *Service) Posts(query string) []domain.Post {
	return s.store.Search(query)
}

// Post returns one post by id.
func (s *Service) Post(id int64) (domain.Post, error) {
	post, ok := s.store.Get(id)
	if !ok {
		return domain.Post{}, ErrUnknownPost
	}
	return post, nil
}

// Create submits a new claim and optimistically inserts it at the head
// of the feed with the server-assigned id.
func (s *Service) Create(ctx context.Context, title, content string) (domain.Post, error) {
	principal, ok := s.identity.Current()
	if !ok {
		return domain.Post{}, ErrUnauthenticated
	}

	post, err := s.ledger.CreatePost(ctx, title, content)
	if err != nil {
		return domain.Post{}, fmt.Errorf("create post: %w", err)
	}
	if post.Author.IsAnonymous() {
		post.Author = principal
	}
	s.store.Insert(post)
	return post, nil
}

// Comment appends a comment optimistically after the ledger acknowledges
// it, using a provisional local sequence id.
func (s *Service) Comment(ctx context.Context, postID int64, content string) (domain.Comment, error) {
	principal, authed := s.identity.Current()
	if !authed {
		return domain.Comment{}, ErrUnauthenticated
	}
	if _, ok := s.store.Get(postID); !ok {
		return domain.Comment{}, ErrUnknownPost
	}

	ok, err := s.ledger.AddComment(ctx, postID, content)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("add comment: %w", err)
	}
	if !ok {
		return domain.Comment{}, fmt.Errorf("add comment: rejected by server")
	}

	comment, _ := s.store.AppendComment(postID, content, principal)
	return comment, nil
}

// Vote toggles the caller's vote in the clicked direction.
func (s *Service) Vote(ctx context.Context, postID int64, clicked domain.VoteState) (domain.VoteState, error) {
	if _, ok := s.identity.Current(); !ok {
		return domain.VoteNone, ErrUnauthenticated
	}
	if _, ok := s.store.Get(postID); !ok {
		return domain.VoteNone, ErrUnknownPost
	}
	return s.voterFor(postID).Toggle(ctx, clicked)
}

// Expand resolves the verdict view state for an opened post.
func (s *Service) Expand(ctx context.Context, postID int64) (*domain.Verdict, VerdictState, error) {
	if _, ok := s.store.Get(postID); !ok {
		return nil, StateNoVerdict, ErrUnknownPost
	}
	rec := s.reconcilerFor(postID)
	if post, ok := s.store.Get(postID); ok {
		rec.Sync(post)
	}
	if err := rec.Expand(ctx); err != nil {
		return nil, rec.State(), err
	}
	return rec.Verdict(), rec.State(), nil
}

// RefreshVerdict requests a brand new verdict from the AI source.
func (s *Service) RefreshVerdict(ctx context.Context, postID int64) (domain.Verdict, error) {
	if _, ok := s.identity.Current(); !ok {
		return domain.Verdict{}, ErrUnauthenticated
	}
	if _, ok := s.store.Get(postID); !ok {
		return domain.Verdict{}, ErrUnknownPost
	}
	return s.reconcilerFor(postID).Refresh(ctx)
}

// SourceLabels resolves the verdict source URLs of a post to display
// labels. Resolution is advisory; a failed lookup labels the source with
// its own URL.
func (s *Service) SourceLabels(ctx context.Context, postID int64) ([]string, error) {
	post, ok := s.store.Get(postID)
	if !ok {
		return nil, ErrUnknownPost
	}
	if post.AIVerdict == nil || len(post.AIVerdict.Sources) == 0 {
		return []string{}, nil
	}

	urls := post.AIVerdict.Sources
	labels := make([]string, len(urls))
	for i, u := range urls {
		labels[i] = u
		if s.titles == nil {
			continue
		}
		if title, err := s.titles.ResolveTitle(ctx, u); err == nil {
			labels[i] = title
		}
	}
	return labels, nil
}

// Author resolves the display identity of a principal via the session cache.
func (s *Service) Author(ctx context.Context, principal domain.Principal) domain.AuthorInfo {
	return s.authors.Resolve(ctx, principal)
}

func (s *Service) reconcilerFor(postID int64) *Reconciler {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.reconcilers[postID]
	if !ok {
		rec = NewReconciler(postID, s.ledger, s.source, s.verdicts, s.store, s.bus, s.logger)
		s.reconcilers[postID] = rec
	}
	return rec
}

func (s *Service) voterFor(postID int64) *Voter {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voters[postID]
	if !ok {
		v = NewVoter(postID, s.ledger, s.store)
		s.voters[postID] = v
	}
	return v
}

// onAuthChanged rescopes per-identity state: the verdict cache reloads
// its namespaced snapshot, the author cache and vote toggles reset.
func (s *Service) onAuthChanged(principal domain.Principal) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.verdicts.Reload(ctx, principal)
	s.authors.Clear()

	s.mu.Lock()
	voters := make([]*Voter, 0, len(s.voters))
	for _, v := range s.voters {
		voters = append(voters, v)
	}
	s.mu.Unlock()
	for _, v := range voters {
		v.Reset()
	}
}

func (s *Service) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}
