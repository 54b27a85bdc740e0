// Package aggregator assembles the full picture the responder works from:
// who the user is, what the conversation holds, which supportive content
// applies, and how risky the current message is.
package aggregator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/serenlab/serenia/internal/mood"
	"github.com/serenlab/serenia/internal/retrieval"
	"github.com/serenlab/serenia/internal/risk"
	"github.com/serenlab/serenia/internal/signals"
	"github.com/serenlab/serenia/internal/store"
)

const (
	moodLookback     = 30 * 24 * time.Hour
	moodSampleLimit  = 30
	historyTurnLimit = 20
)

// RecordStore is the persistence surface the aggregator reads from.
type RecordStore interface {
	RecentMoods(userID string, since time.Time, limit int) ([]store.MoodEntry, error)
	ConversationMessages(conversationID string) ([]store.Message, error)
	ActiveEmergencyResources() ([]store.EmergencyResource, error)
	RecentEscalations(userID string, limit int) ([]store.EscalationRecord, error)
	AppendSnapshot(snap *store.Snapshot) error
}

// UserContext describes the user's state and standing preferences.
type UserContext struct {
	UserID           string            `json:"user_id"`
	MoodPattern      mood.Pattern      `json:"mood_pattern"`
	RecentMoods      []mood.Sample     `json:"recent_moods"`
	Preferences      map[string]string `json:"preferences"`
	PreferredSupport []string          `json:"preferred_support"`
}

// Turn is one raw dialogue exchange, kept verbatim for the generator.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// JourneyPoint is the emotional read on a single user message.
type JourneyPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Emotion   string    `json:"emotion"`
	Intensity int       `json:"intensity"`
}

// ConversationContext carries the dialogue history and what it signals.
type ConversationContext struct {
	ConversationID   string         `json:"conversation_id"`
	TurnCount        int            `json:"turn_count"`
	RecentTurns      []Turn         `json:"recent_turns"`
	RecentTopics     []string       `json:"recent_topics"`
	EmotionalJourney []JourneyPoint `json:"emotional_journey"`
	AIObservations   []string       `json:"ai_observations"`
}

// WellnessContext holds supportive material matched to the message.
type WellnessContext struct {
	Content              []retrieval.Result        `json:"content"`
	RecommendedPractices []string                  `json:"recommended_practices"`
	EmergencyResources   []store.EmergencyResource `json:"emergency_resources"`
}

// RiskContext is the safety read on the current message plus history.
type RiskContext struct {
	Assessment  risk.Assessment          `json:"assessment"`
	Escalations []store.EscalationRecord `json:"escalations"`
}

// Context is one aggregated view over all four sub-contexts.
type Context struct {
	UserID         string              `json:"user_id"`
	ConversationID string              `json:"conversation_id"`
	Message        string              `json:"message"`
	User           UserContext         `json:"user"`
	Conversation   ConversationContext `json:"conversation"`
	Wellness       WellnessContext     `json:"wellness"`
	Risk           RiskContext         `json:"risk"`
	BuiltAt        time.Time           `json:"built_at"`
}

type Aggregator struct {
	store      RecordStore
	retriever  *retrieval.Service
	classifier *risk.Classifier
}

func New(recordStore RecordStore, retriever *retrieval.Service, classifier *risk.Classifier) *Aggregator {
	if classifier == nil {
		classifier = risk.NewClassifier(nil)
	}
	return &Aggregator{
		store:      recordStore,
		retriever:  retriever,
		classifier: classifier,
	}
}

// Build assembles the four sub-contexts concurrently. Content retrieval
// degrades to an empty list on its own; any store read failing fails the
// whole build.
func (a *Aggregator) Build(ctx context.Context, userID, conversationID, message string) (*Context, error) {
	result := &Context{
		UserID:         userID,
		ConversationID: conversationID,
		Message:        message,
		BuiltAt:        time.Now().UTC(),
	}

	var (
		wg   sync.WaitGroup
		errs [4]error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		result.User, errs[0] = a.buildUserContext(userID)
	}()
	go func() {
		defer wg.Done()
		result.Conversation, errs[1] = a.buildConversationContext(conversationID)
	}()
	go func() {
		defer wg.Done()
		result.Wellness, errs[2] = a.buildWellnessContext(ctx, userID, message)
	}()
	go func() {
		defer wg.Done()
		result.Risk, errs[3] = a.buildRiskContext(userID, message)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("build context for %s: %w", userID, err)
		}
	}
	return result, nil
}

func (a *Aggregator) buildUserContext(userID string) (UserContext, error) {
	entries, err := a.store.RecentMoods(userID, time.Now().Add(-moodLookback), moodSampleLimit)
	if err != nil {
		return UserContext{}, fmt.Errorf("recent moods: %w", err)
	}

	samples := make([]mood.Sample, 0, len(entries))
	for _, e := range entries {
		samples = append(samples, mood.Sample{
			Score:       e.Score,
			Description: e.Description,
			Tags:        e.Tags,
			CreatedAt:   e.CreatedAt,
		})
	}

	return UserContext{
		UserID:      userID,
		MoodPattern: mood.Analyze(samples),
		RecentMoods: samples,
		Preferences: map[string]string{
			"focus": "spiritual_focus",
			"tone":  "compassionate",
		},
		PreferredSupport: []string{"prayer", "scripture", "mindfulness"},
	}, nil
}

func (a *Aggregator) buildConversationContext(conversationID string) (ConversationContext, error) {
	if conversationID == "" {
		return ConversationContext{}, nil
	}

	messages, err := a.store.ConversationMessages(conversationID)
	if err != nil {
		return ConversationContext{}, fmt.Errorf("conversation messages: %w", err)
	}

	turnCount := len(messages)
	if len(messages) > historyTurnLimit {
		messages = messages[len(messages)-historyTurnLimit:]
	}

	turns := make([]Turn, 0, len(messages))
	topics := make([]string, 0)
	seen := make(map[string]bool)
	journey := make([]JourneyPoint, 0)
	observations := make([]string, 0)
	for _, m := range messages {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
		if m.Role == "assistant" {
			observations = append(observations, m.Observations...)
			continue
		}
		if m.Role != "user" {
			continue
		}
		for _, topic := range signals.DetectTopics(m.Content) {
			if !seen[topic] {
				seen[topic] = true
				topics = append(topics, topic)
			}
		}
		journey = append(journey, JourneyPoint{
			Timestamp: m.CreatedAt,
			Emotion:   signals.DetectEmotion(m.Content),
			Intensity: signals.EstimateIntensity(m.Content),
		})
	}

	return ConversationContext{
		ConversationID:   conversationID,
		TurnCount:        turnCount,
		RecentTurns:      turns,
		RecentTopics:     topics,
		EmotionalJourney: journey,
		AIObservations:   observations,
	}, nil
}

func (a *Aggregator) buildWellnessContext(ctx context.Context, userID, message string) (WellnessContext, error) {
	// Retrieval degrades internally; a broken search engine must not take
	// the conversation down with it. An empty message has nothing to match
	// against, so skip the search entirely.
	var content []retrieval.Result
	if a.retriever != nil && message != "" {
		content = a.retriever.Search(ctx, message, 0, "")
	}
	if content == nil {
		content = []retrieval.Result{}
	}

	resources, err := a.store.ActiveEmergencyResources()
	if err != nil {
		return WellnessContext{}, fmt.Errorf("emergency resources: %w", err)
	}

	return WellnessContext{
		Content: content,
		RecommendedPractices: []string{
			"daily_prayer",
			"scripture_meditation",
			"breathing_exercises",
			"gratitude_journaling",
		},
		EmergencyResources: resources,
	}, nil
}

func (a *Aggregator) buildRiskContext(userID, message string) (RiskContext, error) {
	escalations, err := a.store.RecentEscalations(userID, 10)
	if err != nil {
		return RiskContext{}, fmt.Errorf("recent escalations: %w", err)
	}

	return RiskContext{
		Assessment:  a.classifier.Assess(message),
		Escalations: escalations,
	}, nil
}

// Snapshot persists a summarized audit record of the context. Failure is
// logged and swallowed; auditing never blocks the conversation.
func (a *Aggregator) Snapshot(c *Context) {
	snap := &store.Snapshot{
		UserID:             c.UserID,
		ConversationID:     c.ConversationID,
		RiskTier:           c.Risk.Assessment.Tier.String(),
		MoodTrend:          string(c.User.MoodPattern.Trend),
		Topics:             c.Conversation.RecentTopics,
		InterventionNeeded: c.Risk.Assessment.InterventionNeeded,
		CreatedAt:          c.BuiltAt,
	}
	if err := a.store.AppendSnapshot(snap); err != nil {
		log.Printf("[aggregator] snapshot for %s failed: %v", c.UserID, err)
	}
}

// Summary renders a compact single-line description for logs.
func (c *Context) Summary() string {
	parts := []string{
		"tier=" + c.Risk.Assessment.Tier.String(),
		"trend=" + string(c.User.MoodPattern.Trend),
		fmt.Sprintf("avg=%.1f", c.User.MoodPattern.AverageScore),
		fmt.Sprintf("content=%d", len(c.Wellness.Content)),
	}
	return strings.Join(parts, " ")
}
