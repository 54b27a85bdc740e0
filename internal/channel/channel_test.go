package channel

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/serenlab/serenia/internal/bus"
	"github.com/serenlab/serenia/internal/config"
	"github.com/serenlab/serenia/internal/store"
)

func TestBaseChannel_Name(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch := NewBaseChannel("test", b, nil)
	if ch.Name() != "test" {
		t.Errorf("Name = %q, want test", ch.Name())
	}
}

func TestBaseChannel_IsAllowed_NoFilter(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch := NewBaseChannel("test", b, nil)
	if !ch.IsAllowed("anyone") {
		t.Error("should allow anyone when allowFrom is empty")
	}
}

func TestBaseChannel_IsAllowed_WithFilter(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch := NewBaseChannel("test", b, []string{"user1", "user2"})

	if !ch.IsAllowed("user1") {
		t.Error("should allow user1")
	}
	if !ch.IsAllowed("user2") {
		t.Error("should allow user2")
	}
	if ch.IsAllowed("user3") {
		t.Error("should reject user3")
	}
}

func TestNewTelegramChannel_NoToken(t *testing.T) {
	b := bus.NewMessageBus(10)
	_, err := NewTelegramChannel(config.TelegramConfig{}, b)
	if err == nil {
		t.Error("expected error for empty token")
	}
}

func TestNewTelegramChannel_Valid(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, err := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.Name() != "telegram" {
		t.Errorf("Name = %q, want telegram", ch.Name())
	}
}

// mockBot records sent messages
type mockBot struct {
	sent []tgbotapi.Chattable
}

func (m *mockBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (m *mockBot) StopReceivingUpdates() {}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.sent = append(m.sent, c)
	return tgbotapi.Message{}, nil
}

func (m *mockBot) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "serenia_test_bot"}
}

func TestTelegramHandleMessage(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, err := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	if err != nil {
		t.Fatalf("NewTelegramChannel: %v", err)
	}

	ch.handleMessage(&tgbotapi.Message{
		From: &tgbotapi.User{ID: 42, UserName: "ana"},
		Chat: &tgbotapi.Chat{ID: 42},
		Text: "me siento triste",
		Date: int(time.Now().Unix()),
	})

	select {
	case msg := <-b.Inbound:
		if msg.Channel != "telegram" || msg.SenderID != "42" {
			t.Errorf("inbound = %+v", msg)
		}
		if msg.Content != "me siento triste" {
			t.Errorf("content = %q", msg.Content)
		}
	default:
		t.Fatal("expected inbound message")
	}
}

func TestTelegramHandleMessage_Rejected(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, err := NewTelegramChannel(config.TelegramConfig{Token: "fake-token", AllowFrom: []string{"1"}}, b)
	if err != nil {
		t.Fatalf("NewTelegramChannel: %v", err)
	}

	ch.handleMessage(&tgbotapi.Message{
		From: &tgbotapi.User{ID: 42},
		Chat: &tgbotapi.Chat{ID: 42},
		Text: "hola",
	})

	select {
	case msg := <-b.Inbound:
		t.Fatalf("unexpected inbound message: %+v", msg)
	default:
	}
}

func TestTelegramSend_Chunking(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, err := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	if err != nil {
		t.Fatalf("NewTelegramChannel: %v", err)
	}
	bot := &mockBot{}
	ch.SetBot(bot)

	long := strings.Repeat("palabra ", 1000) // ~8000 chars
	if err := ch.Send(bus.OutboundMessage{ChatID: "42", Content: long}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(bot.sent) < 2 {
		t.Errorf("expected chunked send, got %d messages", len(bot.sent))
	}
}

func TestTelegramSend_InvalidChatID(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, err := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	if err != nil {
		t.Fatalf("NewTelegramChannel: %v", err)
	}
	ch.SetBot(&mockBot{})

	if err := ch.Send(bus.OutboundMessage{ChatID: "not-a-number", Content: "x"}); err == nil {
		t.Error("expected error for invalid chat id")
	}
}

// fakeRecords implements WellnessAPI for handler tests
type fakeRecords struct {
	saved *store.MoodEntry
	moods []store.MoodEntry
	stats store.DashboardStats
}

func (f *fakeRecords) SaveMoodEntry(e *store.MoodEntry) error {
	e.ID = "mood-1"
	f.saved = e
	return nil
}

func (f *fakeRecords) RecentMoods(userID string, since time.Time, limit int) ([]store.MoodEntry, error) {
	return f.moods, nil
}

func (f *fakeRecords) DashboardStatsFor(userID string) (store.DashboardStats, error) {
	return f.stats, nil
}

func newTestAPIChannel(t *testing.T, b *bus.MessageBus, records WellnessAPI) *APIChannel {
	t.Helper()
	ch, err := NewAPIChannel(config.APIConfig{Enabled: true}, config.GatewayConfig{Port: 18890}, b, records)
	if err != nil {
		t.Fatalf("NewAPIChannel: %v", err)
	}
	return ch
}

func TestAPIChat_Validation(t *testing.T) {
	ch := newTestAPIChannel(t, bus.NewMessageBus(10), &fakeRecords{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"missing user", `{"message":"hola"}`, http.StatusBadRequest},
		{"missing message", `{"user_id":"u1"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(tt.body))
			ch.handleChat(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAPIChat_RoundTrip(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch := newTestAPIChannel(t, b, &fakeRecords{})

	// Echo the gateway side: answer each inbound with an outbound envelope.
	go func() {
		msg := <-b.Inbound
		ch.Send(bus.OutboundMessage{
			Channel: "api",
			ChatID:  msg.ChatID,
			Content: "aquí estoy para ti",
			Metadata: map[string]any{
				"response": map[string]any{"text": "aquí estoy para ti", "risk_tier": "low"},
			},
		})
	}()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(`{"user_id":"u1","message":"hola"}`))
	ch.handleChat(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp["risk_tier"] != "low" {
		t.Errorf("response = %v", resp)
	}
}

func TestAPIMood_Post(t *testing.T) {
	records := &fakeRecords{}
	ch := newTestAPIChannel(t, bus.NewMessageBus(10), records)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/mood", bytes.NewBufferString(`{"user_id":"u1","score":7,"description":"tranquilo"}`))
	ch.handleMood(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if records.saved == nil || records.saved.Score != 7 {
		t.Errorf("saved = %+v", records.saved)
	}
}

func TestAPIMood_ScoreValidation(t *testing.T) {
	ch := newTestAPIChannel(t, bus.NewMessageBus(10), &fakeRecords{})

	for _, body := range []string{
		`{"user_id":"u1","score":0}`,
		`{"user_id":"u1","score":11}`,
		`{"score":5}`,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/mood", bytes.NewBufferString(body))
		ch.handleMood(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestAPIMood_Get(t *testing.T) {
	records := &fakeRecords{moods: []store.MoodEntry{{UserID: "u1", Score: 6}}}
	ch := newTestAPIChannel(t, bus.NewMessageBus(10), records)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/mood?user_id=u1", nil)
	ch.handleMood(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var moods []store.MoodEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &moods); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(moods) != 1 || moods[0].Score != 6 {
		t.Errorf("moods = %+v", moods)
	}
}

func TestAPIDashboard(t *testing.T) {
	records := &fakeRecords{stats: store.DashboardStats{AverageMood: 6.5, TotalEntries: 4, StreakDays: 2}}
	ch := newTestAPIChannel(t, bus.NewMessageBus(10), records)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard?user_id=u1", nil)
	ch.handleDashboard(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats store.DashboardStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if stats.AverageMood != 6.5 || stats.StreakDays != 2 {
		t.Errorf("stats = %+v", stats)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	ch.handleDashboard(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing user_id: status = %d, want 400", rec.Code)
	}
}

func TestChannelManager_Empty(t *testing.T) {
	b := bus.NewMessageBus(10)
	m, err := NewChannelManager(config.ChannelsConfig{}, config.GatewayConfig{}, b, &fakeRecords{})
	if err != nil {
		t.Fatalf("NewChannelManager error: %v", err)
	}
	if len(m.EnabledChannels()) != 0 {
		t.Errorf("expected 0 enabled channels, got %d", len(m.EnabledChannels()))
	}
}

func TestChannelManager_APIEnabled(t *testing.T) {
	b := bus.NewMessageBus(10)
	cfg := config.ChannelsConfig{API: config.APIConfig{Enabled: true}}
	m, err := NewChannelManager(cfg, config.GatewayConfig{Port: 18890}, b, &fakeRecords{})
	if err != nil {
		t.Fatalf("NewChannelManager error: %v", err)
	}
	names := m.EnabledChannels()
	if len(names) != 1 || names[0] != "api" {
		t.Errorf("channels = %v", names)
	}
}
