package feed

import (
	"testing"

	"github.com/gurnameh-99/fact-den/internal/domain"
)

func seedStore() *Store {
	s := NewStore()
	s.Replace([]domain.Post{
		{ID: 1, Title: "Moon landing", Content: "Apollo 11 landed in 1969", Author: "alice", Votes: 3},
		{ID: 2, Title: "Flat earth", Content: "The earth is flat", Author: "bob",
			Comments: []domain.Comment{{ID: 1, Content: "no", Author: "alice"}}},
		{ID: 3, Title: "Vaccines", Content: "Vaccines cause autism", Author: domain.Anonymous},
	})
	return s
}

func TestStoreInsertPrepends(t *testing.T) {
	t.Parallel()

	s := seedStore()
	s.Insert(domain.Post{ID: 9, Title: "Fresh"})

	got := s.List()
	if len(got) != 4 || got[0].ID != 9 {
		t.Fatalf("insert did not prepend: %+v", ids(got))
	}

	// Re-inserting an existing id replaces in place, order unchanged.
	s.Insert(domain.Post{ID: 2, Title: "Flat earth v2"})
	got = s.List()
	if len(got) != 4 {
		t.Fatalf("duplicate insert grew the feed: %v", ids(got))
	}
	if p, _ := s.Get(2); p.Title != "Flat earth v2" {
		t.Fatalf("duplicate insert did not replace: %q", p.Title)
	}
}

func TestStoreCopiesAreIsolated(t *testing.T) {
	t.Parallel()

	s := seedStore()
	p, ok := s.Get(2)
	if !ok {
		t.Fatalf("post 2 missing")
	}
	p.Title = "mutated"
	p.Comments[0].Content = "mutated"

	fresh, _ := s.Get(2)
	if fresh.Title != "Flat earth" || fresh.Comments[0].Content != "no" {
		t.Fatalf("caller mutation leaked into the store: %+v", fresh)
	}
}

func TestStoreApplyVerdictPatchesById(t *testing.T) {
	t.Parallel()

	s := seedStore()
	v := domain.Verdict{Rating: domain.RatingFalse, Confidence: "High"}
	if !s.ApplyVerdict(2, v) {
		t.Fatalf("patch for a present post rejected")
	}
	if s.ApplyVerdict(99, v) {
		t.Fatalf("patch for an absent post accepted")
	}

	got, _ := s.Get(2)
	if got.AIVerdict == nil || got.AIVerdict.Rating != domain.RatingFalse {
		t.Fatalf("verdict not applied: %+v", got.AIVerdict)
	}
	// Neighbors untouched.
	if other, _ := s.Get(1); other.AIVerdict != nil {
		t.Fatalf("patch leaked onto post 1")
	}
}

func TestStoreVoteDeltaAndComments(t *testing.T) {
	t.Parallel()

	s := seedStore()
	s.ApplyVoteDelta(1, -2)
	if p, _ := s.Get(1); p.Votes != 1 {
		t.Fatalf("votes = %d, want 1", p.Votes)
	}

	c, ok := s.AppendComment(2, "sources?", "carol")
	if !ok {
		t.Fatalf("append rejected")
	}
	if c.ID != 2 {
		t.Fatalf("provisional comment id = %d, want 2", c.ID)
	}
	if _, ok := s.AppendComment(99, "x", "carol"); ok {
		t.Fatalf("append to absent post accepted")
	}
}

func TestStoreSearch(t *testing.T) {
	t.Parallel()

	s := seedStore()
	if got := s.Search("EARTH"); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("title search: %v", ids(got))
	}
	if got := s.Search("autism"); len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("content search: %v", ids(got))
	}
	if got := s.Search("   "); len(got) != 3 {
		t.Fatalf("blank query should return the whole feed, got %v", ids(got))
	}
	if got := s.Search("nope"); len(got) != 0 {
		t.Fatalf("no-match query: %v", ids(got))
	}
}

func TestStorePrincipalsSkipsAnonymous(t *testing.T) {
	t.Parallel()

	s := seedStore()
	got := s.Principals()
	want := []domain.Principal{"alice", "bob"}
	if len(got) != len(want) {
		t.Fatalf("principals = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("principals = %v, want %v", got, want)
		}
	}
}

func ids(posts []domain.Post) []int64 {
	out := make([]int64, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}
