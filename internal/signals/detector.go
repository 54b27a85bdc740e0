// Package signals detects emotional and topical signals in user text via
// fixed keyword tables.
package signals

import "strings"

const (
	EmotionNeutral = "neutral"

	baseIntensity = 5
	maxIntensity  = 10
)

// emotionKeywords is checked in declaration order; the first matching family
// names the primary emotion.
var emotionKeywords = []struct {
	emotion  string
	keywords []string
}{
	{"sadness", []string{"triste", "deprimido", "melancólico", "llorar"}},
	{"anxiety", []string{"ansioso", "nervioso", "preocupado", "estresado"}},
	{"anger", []string{"enojado", "furioso", "molesto", "irritado"}},
	{"fear", []string{"miedo", "terror", "pánico", "asustado"}},
	{"loneliness", []string{"solo", "aislado", "abandonado", "incomprendido"}},
	{"gratitude", []string{"agradecido", "bendecido", "feliz", "contento"}},
	{"hope", []string{"esperanzado", "optimista", "confiado", "fe"}},
}

var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{"anxiety", []string{"ansi", "nervios"}},
	{"sadness", []string{"trist", "deprim"}},
	{"spirituality", []string{"dios", "fe"}},
	{"relationships", []string{"familia", "relacion"}},
	{"stress", []string{"trabajo", "estr"}},
	{"loneliness", []string{"solo", "aislad"}},
}

var intensityMarkers = []string{
	"muy", "extremadamente", "completamente", "totalmente",
	"demasiado", "increíblemente", "terriblemente",
}

// DetectEmotion returns the primary emotion expressed in the text, or
// "neutral" when no emotion family matches.
func DetectEmotion(text string) string {
	lower := strings.ToLower(text)
	for _, family := range emotionKeywords {
		for _, kw := range family.keywords {
			if strings.Contains(lower, kw) {
				return family.emotion
			}
		}
	}
	return EmotionNeutral
}

// EstimateIntensity scores emotional intensity on a 1..10 scale from
// amplifier words, exclamation marks, and all-caps shouting.
func EstimateIntensity(text string) int {
	lower := strings.ToLower(text)
	intensity := baseIntensity

	for _, marker := range intensityMarkers {
		if strings.Contains(lower, marker) {
			intensity += 2
		}
	}
	intensity += strings.Count(text, "!")
	if len(text) > 5 && text == strings.ToUpper(text) && text != lower {
		intensity += 3
	}

	if intensity > maxIntensity {
		intensity = maxIntensity
	}
	return intensity
}

// DetectTopics returns the wellness topics present in the text, in table
// order, without duplicates.
func DetectTopics(text string) []string {
	lower := strings.ToLower(text)
	topics := make([]string, 0)
	for _, family := range topicKeywords {
		for _, kw := range family.keywords {
			if strings.Contains(lower, kw) {
				topics = append(topics, family.topic)
				break
			}
		}
	}
	return topics
}
