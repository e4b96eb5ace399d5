package domain

import "strings"

// Rating is the structured truth assessment produced by the AI source.
type Rating string

const (
	RatingTrue       Rating = "True"
	RatingFalse      Rating = "False"
	RatingMisleading Rating = "Misleading"
	RatingPartlyTrue Rating = "Partly True"
	RatingUnknown    Rating = "Unknown"
)

// ParseRating maps free-form model output onto the closed rating set,
// ignoring case. Anything unrecognized degrades to RatingUnknown.
func ParseRating(s string) Rating {
	for _, r := range []Rating{RatingTrue, RatingFalse, RatingMisleading, RatingPartlyTrue, RatingUnknown} {
		if strings.EqualFold(s, string(r)) {
			return r
		}
	}
	return RatingUnknown
}

// Verdict is a fact-check result for a single post. Once obtained for a
// post it is treated as immutable within a session; an explicit refresh
// replaces it wholesale.
type Verdict struct {
	Rating     Rating   `json:"rating"`
	Confidence string   `json:"confidence"`
	Evidence   []string `json:"evidence"`
	Sources    []string `json:"sources"`
}

// Placeholder field values used when extraction from the model reply fails.
const DefaultConfidence = "N/A"
