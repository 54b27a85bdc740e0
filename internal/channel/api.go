package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/serenlab/serenia/internal/bus"
	"github.com/serenlab/serenia/internal/config"
	"github.com/serenlab/serenia/internal/store"
)

const (
	apiChannelName = "api"
	chatTimeout    = 90 * time.Second
)

// WellnessAPI is the store surface the mood and dashboard endpoints need.
type WellnessAPI interface {
	SaveMoodEntry(e *store.MoodEntry) error
	RecentMoods(userID string, since time.Time, limit int) ([]store.MoodEntry, error)
	DashboardStatsFor(userID string) (store.DashboardStats, error)
}

type chatRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

type moodRequest struct {
	UserID      string   `json:"user_id"`
	Score       int      `json:"score"`
	Description string   `json:"description,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// APIChannel serves the HTTP surface. Chat rides the message bus like any
// other channel; each request parks on a reply slot until the gateway's
// outbound message lands or the timeout fires.
type APIChannel struct {
	BaseChannel
	host    string
	port    int
	records WellnessAPI
	server  *http.Server
	pending sync.Map
	nextID  atomic.Int64
}

func NewAPIChannel(cfg config.APIConfig, gwCfg config.GatewayConfig, b *bus.MessageBus, records WellnessAPI) (*APIChannel, error) {
	port := gwCfg.Port
	if port == 0 {
		port = config.DefaultPort
	}

	ch := &APIChannel{
		BaseChannel: NewBaseChannel(apiChannelName, b, cfg.AllowFrom),
		host:        gwCfg.Host,
		port:        port,
		records:     records,
	}
	return ch, nil
}

func (a *APIChannel) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", a.handleChat)
	mux.HandleFunc("/api/mood", a.handleMood)
	mux.HandleFunc("/api/dashboard", a.handleDashboard)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	a.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.host, a.port),
		Handler: mux,
	}

	go func() {
		log.Printf("[api] listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()

	return nil
}

func (a *APIChannel) Stop() error {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown api server: %w", err)
		}
	}
	log.Printf("[api] stopped")
	return nil
}

func (a *APIChannel) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if !a.IsAllowed(req.UserID) {
		writeError(w, http.StatusForbidden, "sender not allowed")
		return
	}

	requestID := fmt.Sprintf("api-%d", a.nextID.Add(1))
	reply := make(chan bus.OutboundMessage, 1)
	a.pending.Store(requestID, reply)
	defer a.pending.Delete(requestID)

	// The chat ID is per-request, so the conversation must be pinned to
	// the user unless the client names one.
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = "api:" + req.UserID
	}

	a.bus.Inbound <- bus.InboundMessage{
		Channel:   apiChannelName,
		SenderID:  req.UserID,
		ChatID:    requestID,
		Content:   req.Message,
		Timestamp: time.Now(),
		Metadata: map[string]any{
			"conversation_id": conversationID,
		},
	}

	select {
	case msg := <-reply:
		w.Header().Set("Content-Type", "application/json")
		if envelope, ok := msg.Metadata["response"]; ok {
			json.NewEncoder(w).Encode(envelope)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": msg.Content})
	case <-time.After(chatTimeout):
		writeError(w, http.StatusGatewayTimeout, "response timed out")
	case <-r.Context().Done():
	}
}

func (a *APIChannel) handleMood(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.handleMoodPost(w, r)
	case http.MethodGet:
		a.handleMoodGet(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *APIChannel) handleMoodPost(w http.ResponseWriter, r *http.Request) {
	var req moodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Score < 1 || req.Score > 10 {
		writeError(w, http.StatusBadRequest, "score must be between 1 and 10")
		return
	}

	entry := &store.MoodEntry{
		UserID:      req.UserID,
		Score:       req.Score,
		Description: req.Description,
		Notes:       req.Notes,
		Tags:        req.Tags,
	}
	if err := a.records.SaveMoodEntry(entry); err != nil {
		log.Printf("[api] save mood entry failed: %v", err)
		writeError(w, http.StatusInternalServerError, "could not save mood entry")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": entry.ID})
}

func (a *APIChannel) handleMoodGet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	moods, err := a.records.RecentMoods(userID, time.Time{}, limit)
	if err != nil {
		log.Printf("[api] fetch moods failed: %v", err)
		writeError(w, http.StatusInternalServerError, "could not fetch mood entries")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(moods)
}

func (a *APIChannel) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	stats, err := a.records.DashboardStatsFor(userID)
	if err != nil {
		log.Printf("[api] dashboard stats failed: %v", err)
		writeError(w, http.StatusInternalServerError, "could not compute dashboard stats")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// Send resolves the HTTP request waiting on the message's chat ID.
func (a *APIChannel) Send(msg bus.OutboundMessage) error {
	slot, ok := a.pending.Load(msg.ChatID)
	if !ok {
		return fmt.Errorf("no pending request %s", msg.ChatID)
	}
	select {
	case slot.(chan bus.OutboundMessage) <- msg:
	default:
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}
