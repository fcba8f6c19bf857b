package assessment

import (
	"log/slog"
	"strings"

	"github.com/sameera/osem-ladders-sub001/internal/models"
)

const (
	// KeySeparator joins category and competency in a flat response key.
	// Category titles and competency names must not contain it.
	KeySeparator = "|"

	evidencePrefix = "Evidence: "
	nextMarker     = "\nNext: "
)

// ResponseKey returns the flat key for a category/competency pair
func ResponseKey(category, competency string) string {
	return category + KeySeparator + competency
}

// SplitResponseKey splits a flat key on its first separator.
// ok is false when either side is empty.
func SplitResponseKey(key string) (category, competency string, ok bool) {
	category, competency, found := strings.Cut(key, KeySeparator)
	if !found || category == "" || competency == "" {
		return "", "", false
	}
	return category, competency, true
}

// ComposeFeedback renders level feedback into its wire string
func ComposeFeedback(fb models.LevelFeedback) string {
	return evidencePrefix + fb.Evidence + nextMarker + fb.NextLevelFeedback
}

// DecomposeFeedback recovers level feedback from its wire string.
// Text that itself contains the markers does not survive a round trip.
func DecomposeFeedback(s string) models.LevelFeedback {
	evidence, next, _ := strings.Cut(s, nextMarker)
	return models.LevelFeedback{
		Evidence:          strings.TrimPrefix(evidence, evidencePrefix),
		NextLevelFeedback: next,
	}
}

// ToResponses flattens UI selections and feedback into wire responses.
// Feedback is attached only when it exists for the selected level.
func ToResponses(selections models.Selections, feedback models.Feedback) models.Responses {
	responses := make(models.Responses)
	for category, comps := range selections {
		for competency, level := range comps {
			resp := models.CompetencyResponse{SelectedLevel: level}
			if fb, ok := feedback.Get(category, competency, level); ok {
				text := ComposeFeedback(fb)
				resp.Feedback = &text
			}
			responses[ResponseKey(category, competency)] = resp
		}
	}
	return responses
}

// FromResponses rebuilds UI selections and feedback from wire responses.
// Entries with a malformed key are logged and skipped.
func FromResponses(responses models.Responses) (models.Selections, models.Feedback) {
	selections := make(models.Selections)
	feedback := make(models.Feedback)

	for key, resp := range responses {
		category, competency, ok := SplitResponseKey(key)
		if !ok {
			slog.Warn("skipping response with malformed key", "key", key)
			continue
		}

		selections.Set(category, competency, resp.SelectedLevel)
		if resp.Feedback != nil {
			feedback.Set(category, competency, resp.SelectedLevel, DecomposeFeedback(*resp.Feedback))
		}
	}

	return selections, feedback
}
