package classify

import "strings"

// Aggregate combines the two providers' outputs into one verdict.
//
// The multi-input provider contributes every flagged item's categories whose
// per-category flag is set and whose score exceeds threshold; categories are
// merged under their root (anything after "/" stripped), keeping the highest
// score seen. The attribute provider then merges a category only when the
// first provider erred, the category is new, or its score is higher than the
// recorded one: it can fill gaps and raise confidence, but never lowers a
// score the first provider confirmed.
//
// An erring provider is excluded outright; the other still governs the
// verdict. Both erring yields an unflagged verdict with no scores.
func Aggregate(mod ModerationResponse, attrs AttributeResult, threshold float64) Verdict {
	scores := make(map[string]float64)
	flagged := false

	if !mod.Err {
		for _, item := range mod.Results {
			if !item.Flagged {
				continue
			}
			for category, score := range item.CategoryScores {
				if item.Categories[category] && score > threshold {
					root := strings.SplitN(category, "/", 2)[0]
					scores[root] = max(scores[root], score)
					flagged = true
				}
			}
		}
	}

	if !attrs.Err && attrs.Flagged {
		for category, score := range attrs.Scores {
			if mod.Err || scores[category] == 0 || score > scores[category] {
				flagged = true
				scores[category] = max(scores[category], score)
			}
		}
	}

	return Verdict{Flagged: flagged, Scores: scores}
}
