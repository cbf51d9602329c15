package engine

import (
	"fmt"
	"sort"
	"strings"
)

// The complete set of user-visible moderation notices. Raw errors are never
// surfaced to content authors; these fixed messages are all they see.

func rateLimitNotice(actorID string) string {
	return fmt.Sprintf("<@%s> you're sending messages too quickly, slow down!", actorID)
}

func repeatNotice(actorID string) string {
	return fmt.Sprintf("<@%s> you've already said that", actorID)
}

func flaggedNotice(actorID, reasons string) string {
	return fmt.Sprintf("<@%s> your message was flagged for: %s\nfurther infractions may and will lead to longer timeouts", actorID, reasons)
}

const selfHarmNotice = "help is available: if you're struggling with thoughts of self-harm, please know that help is available 24/7\n" +
	"International Crisis Helpline: call or text 988 (https://988lifeline.org)\n" +
	"Crisis Text Line: text HOME to 741741 (https://www.crisistextline.org)"

// FormatViolationReasons renders per-category scores as a stable
// human-readable reason string, e.g. "harassment (95.0%); hate (82.1%)".
func FormatViolationReasons(scores map[string]float64) string {
	categories := make([]string, 0, len(scores))
	for cat := range scores {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	parts := make([]string, 0, len(categories))
	for _, cat := range categories {
		parts = append(parts, fmt.Sprintf("%s (%.1f%%)", cat, scores[cat]*100))
	}
	return strings.Join(parts, "; ")
}
