package store

import "time"

// MoodEntry is a persisted mood log row.
type MoodEntry struct {
	ID          string
	UserID      string
	Score       int
	Description string
	Notes       string
	Tags        []string
	CreatedAt   time.Time
}

// Message is one conversation turn.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	Observations   []string
	CreatedAt      time.Time
}

// WellnessContent is a stored supportive-content document. A missing
// embedding is a valid state: the document stays keyword-searchable.
type WellnessContent struct {
	ID        string
	Title     string
	Body      string
	Category  string
	Tags      []string
	CreatedAt time.Time
}

// ScoredContent pairs a document with its similarity to a query vector.
type ScoredContent struct {
	WellnessContent
	Similarity float64
}

// EmergencyResource is a crisis contact surfaced alongside responses.
type EmergencyResource struct {
	ID       string
	Name     string
	Contact  string
	Category string
	IsActive bool
}

// EscalationRecord is one append-only risk tier increase.
type EscalationRecord struct {
	ID           string
	UserID       string
	PreviousTier string
	CurrentTier  string
	Triggers     []string
	CreatedAt    time.Time
}

// Snapshot is a summarized audit record of one aggregated context.
type Snapshot struct {
	ID                 string
	UserID             string
	ConversationID     string
	RiskTier           string
	MoodTrend          string
	Topics             []string
	InterventionNeeded bool
	CreatedAt          time.Time
}

// DailyProgress is one per-user daily mood rollup.
type DailyProgress struct {
	UserID      string
	Date        string
	MoodAverage float64
	EntryCount  int
}

// DashboardStats summarizes a user's recent mood history for display.
type DashboardStats struct {
	AverageMood  float64
	TotalEntries int
	StreakDays   int
	MoodTrend    float64
}
