package feed

import (
	"time"

	"github.com/gurnameh-99/fact-den/internal/domain"
)

// samplePosts mirrors the demo feed shown when the ledger is empty, so a
// fresh deployment is not a blank page.
func samplePosts() []domain.Post {
	now := time.Now()
	return []domain.Post{
		{
			ID:      1,
			Title:   "Is climate change real?",
			Content: "Climate change is a serious concern backed by numerous scientific studies.",
			Author:  "default",
			Votes:   10,
			Comments: []domain.Comment{
				{ID: 1, Content: "Absolutely, we need to act now.", Author: "default"},
				{ID: 2, Content: "The evidence is overwhelming.", Author: "default"},
			},
			CreatedAt: now,
		},
		{
			ID:        2,
			Title:     "Do vaccines cause autism?",
			Content:   "A widely circulated claim with decades of studies behind the answer.",
			Author:    "default",
			Votes:     4,
			CreatedAt: now,
		},
	}
}
