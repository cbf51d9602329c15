// Automod component for external content classification.
//
// Two independent providers are supported: a multi-input moderation API
// ("omni", one result per input item) and a per-attribute text scoring API
// ("perspective", one aggregate result). Both clients degrade to an
// error-tagged, non-flagged result on any failure: missing credentials,
// network faults, non-200 responses, and malformed bodies never propagate
// past this package, and never count as a flag.
package classify

// Verdict is the final outcome for one piece of content: whether it is
// flagged, and the per-category scores which justify that.
type Verdict struct {
	Flagged bool               `json:"flagged"`
	Scores  map[string]float64 `json:"scores"`
}

// ModerationResult is one item-level result from the multi-input provider.
type ModerationResult struct {
	Flagged        bool               `json:"flagged"`
	Categories     map[string]bool    `json:"categories"`
	CategoryScores map[string]float64 `json:"category_scores"`
}

// ModerationResponse is the multi-input provider's full response. Err marks
// the provider as non-authoritative for this event; its results are then
// excluded from aggregation entirely.
type ModerationResponse struct {
	Results []ModerationResult `json:"results"`
	Err     bool               `json:"-"`
}

// AttributeResult is the single aggregate result from the per-attribute
// provider, already thresholded into flagged categories.
type AttributeResult struct {
	Flagged    bool
	Categories map[string]bool
	Scores     map[string]float64
	Err        bool
}

func errAttributeResult() AttributeResult {
	return AttributeResult{
		Categories: map[string]bool{},
		Scores:     map[string]float64{},
		Err:        true,
	}
}

// Input is one item submitted to the multi-input provider.
type Input struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// BuildInputs assembles the provider input list from extracted text and
// image URLs, text first.
func BuildInputs(text string, imageURLs []string) []Input {
	var inputs []Input
	if text != "" {
		inputs = append(inputs, Input{Type: "text", Text: text})
	}
	for _, url := range imageURLs {
		inputs = append(inputs, Input{Type: "image_url", ImageURL: &ImageURL{URL: url}})
	}
	return inputs
}
