package retrieval

import (
	"context"
	"strings"
)

const recommendLimit = 3

// Mood score bands mapped to the search phrases most likely to surface
// helpful material. Lower scores pull toward crisis and calming content,
// higher scores toward reinforcement.
func phrasesForScore(score float64) string {
	switch {
	case score <= 3:
		return "crisis emergencia apoyo depresión ansiedad"
	case score <= 5:
		return "ansiedad estrés apoyo atención plena respiración"
	case score <= 7:
		return "atención plena meditación oración paz"
	default:
		return "gratitud alabanza alegría celebración"
	}
}

// Recommend picks up to three documents suited to the user's mood level.
// The query is synthesized from the mood band's phrase set, the mood
// description, and the recent message history, then handed to Search.
func (s *Service) Recommend(ctx context.Context, moodScore float64, description string, history []string) []Result {
	parts := []string{phrasesForScore(moodScore)}
	if description != "" {
		parts = append(parts, description)
	}
	if len(history) > 0 {
		parts = append(parts, strings.Join(history, " "))
	}
	return s.Search(ctx, strings.Join(parts, " "), recommendLimit, "")
}
