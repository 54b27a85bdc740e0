// Package gateway wires storage, retrieval, aggregation, and response
// generation behind the message bus and keeps the channels running.
package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/serenlab/serenia/internal/aggregator"
	"github.com/serenlab/serenia/internal/bus"
	"github.com/serenlab/serenia/internal/channel"
	"github.com/serenlab/serenia/internal/config"
	"github.com/serenlab/serenia/internal/cron"
	"github.com/serenlab/serenia/internal/responder"
	"github.com/serenlab/serenia/internal/retrieval"
	"github.com/serenlab/serenia/internal/risk"
	"github.com/serenlab/serenia/internal/signals"
	"github.com/serenlab/serenia/internal/store"
)

const (
	rollupJobName = "daily-mood-rollup"
	pruneJobName  = "audit-log-prune"

	rollupExpr = "0 0 1 * * *"
	pruneExpr  = "0 30 1 * * *"
)

// Options allow injecting the model-facing pieces for testing.
type Options struct {
	Generator  responder.Generator
	Embedder   retrieval.Embedder
	SignalChan chan os.Signal
}

type Gateway struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	store      *store.Store
	retriever  *retrieval.Service
	aggregator *aggregator.Aggregator
	classifier *risk.Classifier
	responder  *responder.Orchestrator
	channels   *channel.ChannelManager
	cron       *cron.Service
	signalChan chan os.Signal
}

// New creates a Gateway with default options.
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing.
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg}

	g.bus = bus.NewMessageBus(config.DefaultBufSize)

	st, err := store.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	g.store = st

	// Risk rules
	rules := risk.DefaultRules()
	if cfg.Risk.RulesPath != "" {
		rules, err = risk.LoadRules(cfg.Risk.RulesPath)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("load risk rules: %w", err)
		}
		log.Printf("[gateway] loaded risk rules from %s", cfg.Risk.RulesPath)
	}
	g.classifier = risk.NewClassifier(rules)

	// The embedder and generator are optional: without an API key the
	// engine still runs on keyword search and template replies.
	embedder := opts.Embedder
	if embedder == nil && cfg.Provider.APIKey != "" {
		embedder = retrieval.NewOpenAIEmbedderWithModel(cfg.Provider.APIKey, cfg.Provider.EmbeddingModel)
	}
	if embedder == nil {
		log.Printf("[gateway] no API key configured, semantic search disabled")
	}

	g.retriever = retrieval.NewService(st, embedder)
	g.retriever.SetThreshold(cfg.Retrieval.SimilarityThreshold)
	g.retriever.SetNominalRelevance(cfg.Retrieval.KeywordRelevance)

	g.aggregator = aggregator.New(st, g.retriever, g.classifier)

	generator := opts.Generator
	if generator == nil && cfg.Provider.APIKey != "" {
		generator = responder.NewOpenAIGenerator(cfg.Provider.APIKey, cfg.Provider.BaseURL, cfg.Provider.ChatModel)
	}
	g.responder = responder.NewOrchestrator(generator)

	g.signalChan = opts.SignalChan

	// Maintenance jobs
	g.cron = cron.NewService()
	g.cron.Register(rollupJobName, rollupExpr, func() error {
		return st.RollupDailyProgress(time.Now().UTC().AddDate(0, 0, -1))
	})
	g.cron.Register(pruneJobName, pruneExpr, func() error {
		cutoff := time.Now().UTC().AddDate(0, 0, -cfg.Storage.AuditRetentionDays)
		n, err := st.PruneAuditLog(cutoff)
		if err != nil {
			return err
		}
		log.Printf("[gateway] pruned %d audit records", n)
		return nil
	})

	chMgr, err := channel.NewChannelManager(cfg.Channels, cfg.Gateway, g.bus, st)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	return g, nil
}

// Run starts the gateway and blocks until the context is cancelled or a
// termination signal arrives.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := g.cron.Start(ctx); err != nil {
		return fmt.Errorf("start cron: %w", err)
	}

	go g.bus.DispatchOutbound(ctx)
	go g.processLoop(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] running with channels: %v", g.channels.EnabledChannels())

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
	}
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("[gateway] received signal %v, shutting down", sig)
	case <-ctx.Done():
	}

	return g.shutdown()
}

func (g *Gateway) shutdown() error {
	g.channels.StopAll()
	g.cron.Stop()
	if err := g.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	log.Printf("[gateway] stopped")
	return nil
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			go g.handleInbound(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	conversationID := msg.SessionKey()
	if msg.Metadata != nil {
		if id, ok := msg.Metadata["conversation_id"].(string); ok && id != "" {
			conversationID = id
		}
	}

	resp := g.Process(ctx, msg.SenderID, conversationID, msg.Content)

	g.bus.Outbound <- bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: resp.Text,
		Metadata: map[string]any{
			"response": resp,
		},
	}
}

// Process runs one message through the full pipeline: persist the turn,
// aggregate context, respond, record escalations, snapshot for audit.
func (g *Gateway) Process(ctx context.Context, userID, conversationID, message string) *responder.Response {
	if err := g.store.SaveMessage(&store.Message{
		ConversationID: conversationID,
		Role:           "user",
		Content:        message,
	}); err != nil {
		log.Printf("[gateway] save user message failed: %v", err)
	}

	lastSnap, err := g.store.LastSnapshot(userID)
	if err != nil {
		log.Printf("[gateway] load last snapshot failed: %v", err)
		lastSnap = nil
	}

	c, err := g.aggregator.Build(ctx, userID, conversationID, message)
	if err != nil {
		// A degraded context still gets a safe, tier-correct reply.
		log.Printf("[gateway] context build failed for %s: %v", userID, err)
		c = &aggregator.Context{
			UserID:         userID,
			ConversationID: conversationID,
			Message:        message,
			Risk:           aggregator.RiskContext{Assessment: g.classifier.Assess(message)},
			BuiltAt:        time.Now().UTC(),
		}
	} else {
		g.recordEscalation(lastSnap, c)
		go g.aggregator.Snapshot(c)
	}

	log.Printf("[gateway] %s %s", userID, c.Summary())
	resp := g.responder.Respond(ctx, c)

	if err := g.store.SaveMessage(&store.Message{
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        resp.Text,
		Observations: []string{
			"tier:" + resp.RiskTier,
			"emotion:" + resp.Emotion,
			"trend:" + string(c.User.MoodPattern.Trend),
		},
	}); err != nil {
		log.Printf("[gateway] save assistant message failed: %v", err)
	}

	return resp
}

// recordEscalation appends an escalation record when the risk tier rose
// since the user's previous snapshot.
func (g *Gateway) recordEscalation(lastSnap *store.Snapshot, c *aggregator.Context) {
	current := c.Risk.Assessment.Tier

	previous := risk.TierLow
	if lastSnap != nil {
		previous = risk.ParseTier(lastSnap.RiskTier)
	}

	if current <= previous {
		return
	}

	triggers := c.Risk.Assessment.RiskFactors
	if len(triggers) == 0 {
		if emotion := signals.DetectEmotion(c.Message); emotion != signals.EmotionNeutral {
			triggers = []string{emotion}
		}
	}

	rec := &store.EscalationRecord{
		UserID:       c.UserID,
		PreviousTier: previous.String(),
		CurrentTier:  current.String(),
		Triggers:     triggers,
	}
	if err := g.store.AppendEscalation(rec); err != nil {
		log.Printf("[gateway] append escalation failed: %v", err)
		return
	}
	log.Printf("[gateway] escalation for %s: %s -> %s", c.UserID, rec.PreviousTier, rec.CurrentTier)
}

// Retriever exposes the retrieval service for content seeding.
func (g *Gateway) Retriever() *retrieval.Service {
	return g.retriever
}

// Store exposes the record store for CLI commands.
func (g *Gateway) Store() *store.Store {
	return g.store
}
