package llm

import (
	"strings"

	"github.com/gurnameh-99/fact-den/internal/domain"
)

const (
	maxEvidence = 3
	maxSources  = 2
)

// ParseVerdict extracts the structured four-field answer from a model
// reply with best-effort pattern matching. Missing fields fall back to
// Unknown / "N/A" / empty rather than failing the request.
func ParseVerdict(reply string) domain.Verdict {
	verdict := domain.Verdict{
		Rating:     domain.RatingUnknown,
		Confidence: domain.DefaultConfidence,
		Evidence:   []string{},
		Sources:    []string{},
	}

	section := ""
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case hasFold(line, "Truth rating:"):
			verdict.Rating = domain.ParseRating(valueAfter(line, "Truth rating:"))
			section = ""
		case hasFold(line, "Confidence:"):
			if v := valueAfter(line, "Confidence:"); v != "" {
				verdict.Confidence = v
			}
			section = ""
		case hasFold(line, "Evidence:"):
			section = "evidence"
		case hasFold(line, "Sources:"):
			section = "sources"
		default:
			item := strings.TrimSpace(strings.TrimLeft(line, "-*• \t"))
			if item == "" {
				continue
			}
			switch section {
			case "evidence":
				if len(verdict.Evidence) < maxEvidence {
					verdict.Evidence = append(verdict.Evidence, item)
				}
			case "sources":
				if len(verdict.Sources) < maxSources && looksLikeURL(item) {
					verdict.Sources = append(verdict.Sources, item)
				}
			}
		}
	}

	return verdict
}

func hasFold(line, prefix string) bool {
	return len(line) >= len(prefix) && strings.EqualFold(line[:len(prefix)], prefix)
}

func valueAfter(line, prefix string) string {
	return strings.TrimSpace(line[len(prefix):])
}

func looksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
