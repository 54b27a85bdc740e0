package gateway

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/serenlab/serenia/internal/aggregator"
	"github.com/serenlab/serenia/internal/config"
	"github.com/serenlab/serenia/internal/responder"
	"github.com/serenlab/serenia/internal/store"
)

type fakeGenerator struct {
	text string
	err  error
}

func (f *fakeGenerator) Generate(ctx context.Context, c *aggregator.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "serenia.db")
	cfg.Channels.API.Enabled = false
	return cfg
}

func newTestGateway(t *testing.T, opts Options) *Gateway {
	t.Helper()
	g, err := NewWithOptions(testConfig(t), opts)
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	t.Cleanup(func() { g.store.Close() })
	return g
}

func TestProcessCrisisMessage(t *testing.T) {
	g := newTestGateway(t, Options{})

	resp := g.Process(context.Background(), "u1", "c1", "no quiero vivir")
	if resp.RiskTier != "crisis" {
		t.Errorf("tier = %q, want crisis", resp.RiskTier)
	}
	if !resp.InterventionNeeded {
		t.Error("expected intervention needed")
	}
	if !strings.Contains(resp.Text, responder.CrisisHotline) {
		t.Errorf("crisis reply must name the hotline: %q", resp.Text)
	}

	// Both turns of the conversation are persisted.
	messages, err := g.store.ConversationMessages("c1")
	if err != nil {
		t.Fatalf("ConversationMessages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[0].Role != "user" || messages[1].Role != "assistant" {
		t.Errorf("roles = %s, %s", messages[0].Role, messages[1].Role)
	}
	tierObserved := false
	for _, obs := range messages[1].Observations {
		if obs == "tier:crisis" {
			tierObserved = true
		}
	}
	if !tierObserved {
		t.Errorf("assistant observations = %v", messages[1].Observations)
	}
}

func TestProcessUsesGenerator(t *testing.T) {
	g := newTestGateway(t, Options{Generator: &fakeGenerator{text: "estoy contigo"}})

	resp := g.Process(context.Background(), "u1", "c1", "hola")
	if resp.Text != "estoy contigo" || !resp.Generated {
		t.Errorf("resp = %+v", resp)
	}
}

func TestProcessGeneratorFailureFallsBack(t *testing.T) {
	g := newTestGateway(t, Options{Generator: &fakeGenerator{err: errors.New("api down")}})

	resp := g.Process(context.Background(), "u1", "c1", "me siento triste")
	if resp.Generated {
		t.Error("failed generation must not be marked generated")
	}
	if resp.Text == "" {
		t.Error("expected template fallback")
	}
	if resp.RiskTier != "medium" {
		t.Errorf("tier = %q, want medium", resp.RiskTier)
	}
}

func TestProcessRecordsEscalation(t *testing.T) {
	g := newTestGateway(t, Options{})

	// Seed a prior low-tier snapshot so the crisis message is an increase.
	err := g.store.AppendSnapshot(&store.Snapshot{
		UserID:    "u1",
		RiskTier:  "low",
		MoodTrend: "stable",
		CreatedAt: time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("AppendSnapshot: %v", err)
	}

	g.Process(context.Background(), "u1", "c1", "quiero acabar con todo")

	records, err := g.store.RecentEscalations("u1", 10)
	if err != nil {
		t.Fatalf("RecentEscalations: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d escalations, want 1", len(records))
	}
	if records[0].PreviousTier != "low" || records[0].CurrentTier != "crisis" {
		t.Errorf("escalation = %+v", records[0])
	}
}

func TestProcessNoEscalationOnSameTier(t *testing.T) {
	g := newTestGateway(t, Options{})

	g.Process(context.Background(), "u1", "c1", "hola")

	records, err := g.store.RecentEscalations("u1", 10)
	if err != nil {
		t.Fatalf("RecentEscalations: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d escalations, want 0", len(records))
	}
}

func TestProcessWritesSnapshot(t *testing.T) {
	g := newTestGateway(t, Options{})

	g.Process(context.Background(), "u1", "c1", "me siento ansioso")

	// The snapshot is written asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := g.store.LastSnapshot("u1")
		if err != nil {
			t.Fatalf("LastSnapshot: %v", err)
		}
		if snap != nil {
			if snap.RiskTier != "medium" {
				t.Errorf("snapshot tier = %q, want medium", snap.RiskTier)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("snapshot never written")
}

func TestNewWithRulesPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Risk.RulesPath = filepath.Join(t.TempDir(), "missing.json")

	if _, err := NewWithOptions(cfg, Options{}); err == nil {
		t.Error("expected error for missing rules file")
	}
}
