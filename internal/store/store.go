// Package store is the sqlite-backed record store for mood history,
// conversations, wellness content, emergency resources, and audit records.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mood_entries (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			mood_score INTEGER NOT NULL CHECK (mood_score BETWEEN 1 AND 10),
			mood_description TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_moods_user_created ON mood_entries(user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('user','assistant')),
			content TEXT NOT NULL,
			observations TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS wellness_content (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			embedding BLOB,
			embedding_dim INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_content_category ON wellness_content(category)`,
		`CREATE TABLE IF NOT EXISTS emergency_resources (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			contact TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS escalation_log (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			previous_tier TEXT NOT NULL,
			current_tier TEXT NOT NULL,
			triggers TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_escalations_user ON escalation_log(user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL DEFAULT '',
			risk_tier TEXT NOT NULL,
			mood_trend TEXT NOT NULL,
			topics TEXT NOT NULL DEFAULT '[]',
			intervention_needed INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_log(user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS user_progress (
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			mood_average REAL NOT NULL,
			entry_count INTEGER NOT NULL,
			PRIMARY KEY (user_id, date)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func newID() string {
	return ulid.Make().String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func marshalStrings(vals []string) string {
	if vals == nil {
		vals = []string{}
	}
	data, _ := json.Marshal(vals)
	return string(data)
}

func unmarshalStrings(data string) []string {
	var vals []string
	if err := json.Unmarshal([]byte(data), &vals); err != nil || vals == nil {
		return []string{}
	}
	return vals
}

// SaveMoodEntry inserts a mood entry, assigning an ID and timestamp if unset.
func (s *Store) SaveMoodEntry(e *MoodEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO mood_entries (id, user_id, mood_score, mood_description, notes, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.Score, e.Description, e.Notes, marshalStrings(e.Tags), formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("save mood entry: %w", err)
	}
	return nil
}

// RecentMoods returns up to limit entries for the user newer than since,
// most recent first. A zero since means no lower bound.
func (s *Store) RecentMoods(userID string, since time.Time, limit int) ([]MoodEntry, error) {
	if limit <= 0 {
		limit = 30
	}
	query := `
		SELECT id, user_id, mood_score, mood_description, notes, tags, created_at
		FROM mood_entries
		WHERE user_id = ?`
	args := []any{userID}
	if !since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(since))
	}
	query += `
		ORDER BY created_at DESC
		LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent moods: %w", err)
	}
	defer rows.Close()

	result := make([]MoodEntry, 0)
	for rows.Next() {
		var e MoodEntry
		var tags, created string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Score, &e.Description, &e.Notes, &tags, &created); err != nil {
			return nil, fmt.Errorf("scan mood entry: %w", err)
		}
		e.Tags = unmarshalStrings(tags)
		e.CreatedAt = parseTime(created)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moods: %w", err)
	}
	return result, nil
}

// SaveMessage appends one conversation turn.
func (s *Store) SaveMessage(m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (id, conversation_id, role, content, observations, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.ConversationID, m.Role, m.Content, marshalStrings(m.Observations), formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// ConversationMessages returns the full ordered history of a conversation.
func (s *Store) ConversationMessages(conversationID string) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, conversation_id, role, content, observations, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	result := make([]Message, 0)
	for rows.Next() {
		var m Message
		var observations, created string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &observations, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Observations = unmarshalStrings(observations)
		m.CreatedAt = parseTime(created)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return result, nil
}

// SaveContent inserts a wellness document. A nil embedding is a valid stored
// state; the document stays reachable via keyword search.
func (s *Store) SaveContent(c *WellnessContent, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	var blob []byte
	dim := 0
	if len(embedding) > 0 {
		blob = encodeVector(embedding)
		dim = len(embedding)
	}
	_, err := s.db.Exec(`
		INSERT INTO wellness_content (id, title, body, category, tags, embedding, embedding_dim, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Title, c.Body, c.Category, marshalStrings(c.Tags), blob, dim, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("save content: %w", err)
	}
	return nil
}

// SimilaritySearch scans stored embeddings and returns documents whose
// cosine similarity to the query vector meets the threshold, descending,
// capped at limit. Documents without embeddings are skipped.
func (s *Store) SimilaritySearch(vector []float32, threshold float64, limit int, category string) ([]ScoredContent, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("similarity search: empty query vector")
	}
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT id, title, body, category, tags, embedding, embedding_dim, created_at
		FROM wellness_content
		WHERE embedding IS NOT NULL AND embedding_dim > 0
	`
	args := make([]any, 0, 1)
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	matches := make([]ScoredContent, 0)
	for rows.Next() {
		var c WellnessContent
		var tags, created string
		var blob []byte
		var dim int
		if err := rows.Scan(&c.ID, &c.Title, &c.Body, &c.Category, &tags, &blob, &dim, &created); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		stored, err := decodeVector(blob, dim)
		if err != nil {
			// A corrupt blob should not sink the whole search.
			continue
		}
		sim, err := cosineSimilarity(vector, stored)
		if err != nil || sim < threshold {
			continue
		}
		c.Tags = unmarshalStrings(tags)
		c.CreatedAt = parseTime(created)
		matches = append(matches, ScoredContent{WellnessContent: c, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// KeywordSearch matches the query as a case-insensitive substring of title,
// body, or tags, in stable insertion order, capped at limit.
func (s *Store) KeywordSearch(query string, limit int, category string) ([]WellnessContent, error) {
	if limit <= 0 {
		limit = 5
	}
	term := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	sqlQuery := `
		SELECT id, title, body, category, tags, created_at
		FROM wellness_content
		WHERE (lower(title) LIKE ? OR lower(body) LIKE ? OR lower(tags) LIKE ?)
	`
	args := []any{term, term, term}
	if category != "" {
		sqlQuery += ` AND category = ?`
		args = append(args, category)
	}
	sqlQuery += ` ORDER BY created_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	result := make([]WellnessContent, 0)
	for rows.Next() {
		var c WellnessContent
		var tags, created string
		if err := rows.Scan(&c.ID, &c.Title, &c.Body, &c.Category, &tags, &created); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		c.Tags = unmarshalStrings(tags)
		c.CreatedAt = parseTime(created)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword search: %w", err)
	}
	return result, nil
}

// SaveEmergencyResource inserts or replaces a crisis contact.
func (s *Store) SaveEmergencyResource(r *EmergencyResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = newID()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO emergency_resources (id, name, contact, category, is_active)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.Name, r.Contact, r.Category, boolToInt(r.IsActive))
	if err != nil {
		return fmt.Errorf("save emergency resource: %w", err)
	}
	return nil
}

// ActiveEmergencyResources returns active crisis contacts ordered by category.
func (s *Store) ActiveEmergencyResources() ([]EmergencyResource, error) {
	rows, err := s.db.Query(`
		SELECT id, name, contact, category, is_active
		FROM emergency_resources
		WHERE is_active = 1
		ORDER BY category, name
	`)
	if err != nil {
		return nil, fmt.Errorf("query emergency resources: %w", err)
	}
	defer rows.Close()

	result := make([]EmergencyResource, 0)
	for rows.Next() {
		var r EmergencyResource
		var active int
		if err := rows.Scan(&r.ID, &r.Name, &r.Contact, &r.Category, &active); err != nil {
			return nil, fmt.Errorf("scan emergency resource: %w", err)
		}
		r.IsActive = active == 1
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emergency resources: %w", err)
	}
	return result, nil
}

// AppendEscalation records one risk tier increase. The log is append-only.
func (s *Store) AppendEscalation(rec *EscalationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO escalation_log (id, user_id, previous_tier, current_tier, triggers, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, rec.PreviousTier, rec.CurrentTier, marshalStrings(rec.Triggers), formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("append escalation: %w", err)
	}
	return nil
}

// RecentEscalations returns the user's latest tier increases, newest first.
func (s *Store) RecentEscalations(userID string, limit int) ([]EscalationRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, previous_tier, current_tier, triggers, created_at
		FROM escalation_log
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query escalations: %w", err)
	}
	defer rows.Close()

	result := make([]EscalationRecord, 0)
	for rows.Next() {
		var rec EscalationRecord
		var triggers, created string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.PreviousTier, &rec.CurrentTier, &triggers, &created); err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		rec.Triggers = unmarshalStrings(triggers)
		rec.CreatedAt = parseTime(created)
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escalations: %w", err)
	}
	return result, nil
}

// AppendSnapshot writes one summarized context audit record.
func (s *Store) AppendSnapshot(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.ID == "" {
		snap.ID = newID()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO audit_log (id, user_id, conversation_id, risk_tier, mood_trend, topics, intervention_needed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.UserID, snap.ConversationID, snap.RiskTier, snap.MoodTrend,
		marshalStrings(snap.Topics), boolToInt(snap.InterventionNeeded), formatTime(snap.CreatedAt))
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

// LastSnapshot returns the user's most recent audit record, or nil.
func (s *Store) LastSnapshot(userID string) (*Snapshot, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, conversation_id, risk_tier, mood_trend, topics, intervention_needed, created_at
		FROM audit_log
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, userID)

	var snap Snapshot
	var topics, created string
	var intervention int
	err := row.Scan(&snap.ID, &snap.UserID, &snap.ConversationID, &snap.RiskTier, &snap.MoodTrend, &topics, &intervention, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last snapshot: %w", err)
	}
	snap.Topics = unmarshalStrings(topics)
	snap.InterventionNeeded = intervention == 1
	snap.CreatedAt = parseTime(created)
	return &snap, nil
}

// PruneAuditLog deletes audit records older than the cutoff.
func (s *Store) PruneAuditLog(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM audit_log WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune audit log: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RollupDailyProgress aggregates each user's mood entries for one day into
// the user_progress table. Re-running a rollup for the same day replaces it.
func (s *Store) RollupDailyProgress(day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := day.UTC().Format("2006-01-02")
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO user_progress (user_id, date, mood_average, entry_count)
		SELECT user_id, ?, AVG(mood_score), COUNT(*)
		FROM mood_entries
		WHERE substr(created_at, 1, 10) = ?
		GROUP BY user_id
	`, date, date)
	if err != nil {
		return fmt.Errorf("rollup daily progress: %w", err)
	}
	return nil
}

// DailyProgressFor returns the user's rollups, newest first.
func (s *Store) DailyProgressFor(userID string, limit int) ([]DailyProgress, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.Query(`
		SELECT user_id, date, mood_average, entry_count
		FROM user_progress
		WHERE user_id = ?
		ORDER BY date DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query daily progress: %w", err)
	}
	defer rows.Close()

	result := make([]DailyProgress, 0)
	for rows.Next() {
		var p DailyProgress
		if err := rows.Scan(&p.UserID, &p.Date, &p.MoodAverage, &p.EntryCount); err != nil {
			return nil, fmt.Errorf("scan daily progress: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily progress: %w", err)
	}
	return result, nil
}

// DashboardStatsFor computes the dashboard summary over the user's most
// recent entries: overall average, entry count, consecutive-day streak, and
// the last-3 versus previous-3 trend delta.
func (s *Store) DashboardStatsFor(userID string) (DashboardStats, error) {
	moods, err := s.RecentMoods(userID, time.Time{}, 10)
	if err != nil {
		return DashboardStats{}, err
	}

	stats := DashboardStats{TotalEntries: len(moods)}
	if len(moods) == 0 {
		return stats, nil
	}

	sum := 0
	for _, m := range moods {
		sum += m.Score
	}
	stats.AverageMood = float64(sum) / float64(len(moods))

	if len(moods) >= 6 {
		recent := float64(moods[0].Score+moods[1].Score+moods[2].Score) / 3
		previous := float64(moods[3].Score+moods[4].Score+moods[5].Score) / 3
		stats.MoodTrend = recent - previous
	}

	stats.StreakDays = streakDays(moods, time.Now().UTC())
	return stats, nil
}

func streakDays(moods []MoodEntry, now time.Time) int {
	day := now.Truncate(24 * time.Hour)
	streak := 0
	for _, m := range moods {
		entryDay := m.CreatedAt.UTC().Truncate(24 * time.Hour)
		switch {
		case entryDay.Equal(day):
			streak++
			day = day.AddDate(0, 0, -1)
		case entryDay.After(day):
			// Another entry on an already-counted day.
			continue
		default:
			return streak
		}
	}
	return streak
}

// Stats reports row counts for status output.
func (s *Store) Stats() (map[string]int, error) {
	tables := []string{"mood_entries", "messages", "wellness_content", "emergency_resources", "escalation_log", "audit_log"}
	counts := make(map[string]int, len(tables))
	for _, table := range tables {
		var n int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
