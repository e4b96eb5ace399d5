package feed

import (
	"sort"
	"strings"
	"sync"

	"github.com/gurnameh-99/fact-den/internal/domain"
)

// Store is the shared mutable post collection backing every view. All
// mutations are sparse patches addressed by post id, never positional,
// so concurrent edits to other posts are not clobbered.
type Store struct {
	mu    sync.RWMutex
	posts map[int64]*domain.Post
	order []int64
}

// NewStore builds an empty collection.
func NewStore() *Store {
	return &Store{posts: map[int64]*domain.Post{}}
}

// Replace swaps the whole collection for a fresh list fetch.
func (s *Store) Replace(posts []domain.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = make(map[int64]*domain.Post, len(posts))
	s.order = make([]int64, 0, len(posts))
	for i := range posts {
		p := posts[i]
		s.posts[p.ID] = &p
		s.order = append(s.order, p.ID)
	}
}

// Insert prepends a post to the feed; used for optimistic create.
func (s *Store) Insert(post domain.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.posts[post.ID]; exists {
		*s.posts[post.ID] = post
		return
	}
	s.posts[post.ID] = &post
	s.order = append([]int64{post.ID}, s.order...)
}

// Get returns a copy of the post, if present.
func (s *Store) Get(id int64) (domain.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return domain.Post{}, false
	}
	return clonePost(p), true
}

// List returns copies of all posts in feed order.
func (s *Store) List() []domain.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Post, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.posts[id]; ok {
			out = append(out, clonePost(p))
		}
	}
	return out
}

// Search returns posts whose title or content contains the query,
// case-insensitively. An empty query returns the whole feed.
func (s *Store) Search(query string) []domain.Post {
	all := s.List()
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return all
	}
	out := all[:0]
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Title), query) ||
			strings.Contains(strings.ToLower(p.Content), query) {
			out = append(out, p)
		}
	}
	return out
}

// ApplyVerdict patches the verdict of one post by id. Returns false when
// the post is no longer in the collection; the result is then dropped,
// an interleaved completion must never land on the wrong post.
func (s *Store) ApplyVerdict(id int64, verdict domain.Verdict) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return false
	}
	v := verdict
	p.AIVerdict = &v
	return true
}

// ApplyVoteDelta adjusts the running vote total of one post.
func (s *Store) ApplyVoteDelta(id int64, delta int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return false
	}
	p.Votes += delta
	return true
}

// AppendComment adds a comment with a provisional local sequence id for
// optimistic display; the server-owned id arrives with the next list sync.
func (s *Store) AppendComment(id int64, content string, author domain.Principal) (domain.Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return domain.Comment{}, false
	}
	comment := domain.Comment{
		ID:      int64(len(p.Comments) + 1),
		Content: content,
		Author:  author,
	}
	p.Comments = append(p.Comments, comment)
	return comment, true
}

// Principals returns the distinct authors across posts and comments,
// sorted, for author-info warmup.
func (s *Store) Principals() []domain.Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[domain.Principal]struct{}{}
	for _, p := range s.posts {
		seen[p.Author] = struct{}{}
		for _, cm := range p.Comments {
			seen[cm.Author] = struct{}{}
		}
	}
	out := make([]domain.Principal, 0, len(seen))
	for pr := range seen {
		if !pr.IsAnonymous() {
			out = append(out, pr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func clonePost(p *domain.Post) domain.Post {
	out := *p
	out.Comments = append([]domain.Comment(nil), p.Comments...)
	if p.AIVerdict != nil {
		v := *p.AIVerdict
		out.AIVerdict = &v
	}
	return out
}
