// Package responder turns an aggregated context into the reply sent to the
// user. Generation is optional; a fixed template per risk tier guarantees a
// safe reply even with every backend down.
package responder

import (
	"context"
	"log"
	"time"

	"github.com/serenlab/serenia/internal/aggregator"
	"github.com/serenlab/serenia/internal/risk"
	"github.com/serenlab/serenia/internal/signals"
)

const generateTimeout = 30 * time.Second

// CrisisHotline is surfaced in every crisis-tier reply.
const CrisisHotline = "1-800-273-8255"

// Response is the full reply envelope: the text, the safety read that
// produced it, and the insights a client can render alongside.
type Response struct {
	Text               string   `json:"text"`
	RiskTier           string   `json:"risk_tier"`
	InterventionNeeded bool     `json:"intervention_needed"`
	SuggestedActions   []string `json:"suggested_actions"`
	Emotion            string   `json:"emotion"`
	Intensity          int      `json:"intensity"`
	Insights           Insights `json:"insights"`
	Generated          bool     `json:"generated"`
}

// Insights is the context summary attached to each response.
type Insights struct {
	MoodAverage       float64  `json:"mood_average"`
	MoodTrend         string   `json:"mood_trend"`
	RiskFactors       []string `json:"risk_factors"`
	ProtectiveFactors []string `json:"protective_factors"`
	Topics            []string `json:"topics"`
	ContentUsed       []string `json:"content_used"`
}

var tierTemplates = map[risk.Tier]string{
	risk.TierCrisis: "Siento mucho que estés pasando por un momento tan difícil. Tu vida tiene un valor inmenso y no estás solo en esto. Por favor, comunícate ahora mismo con la línea de crisis " + CrisisHotline + ": hay personas preparadas para acompañarte en este momento. ¿Hay alguien de confianza cerca de ti a quien puedas llamar?",
	risk.TierHigh:   "Escucho el peso de lo que estás cargando y quiero que sepas que tus sentimientos importan. No tienes que atravesar esto en soledad. Hablar con alguien de confianza o con un profesional puede aliviar esa carga. Estoy aquí para acompañarte; cuéntame más de lo que estás viviendo.",
	risk.TierMedium: "Gracias por confiarme cómo te sientes. Es completamente válido pasar por momentos de tristeza o ansiedad. A veces una pausa para respirar profundo, orar o escribir lo que sentimos ayuda a encontrar un poco de calma. ¿Qué crees que te ayudaría en este momento?",
	risk.TierLow:    "Gracias por compartir conmigo. Estoy aquí para escucharte y acompañarte en lo que necesites. ¿Cómo ha estado tu día?",
}

var tierActions = map[risk.Tier][]string{
	risk.TierCrisis: {
		"Busca ayuda inmediata: llama a la línea de crisis " + CrisisHotline,
		"Contacta a una persona de confianza ahora mismo",
		"No te quedes solo: acude a un servicio de urgencias si el riesgo persiste",
	},
	risk.TierHigh: {
		"Habla hoy con alguien de confianza sobre lo que sientes",
		"Considera agendar una cita con un profesional de salud mental",
		"Dedica unos minutos a la oración o a un ejercicio de respiración",
	},
	risk.TierMedium: {
		"Toma una pausa para un ejercicio de respiración profunda",
		"Escribe en tu diario lo que estás sintiendo",
		"Dedica un momento a la oración o a la meditación",
	},
	risk.TierLow: {
		"Registra tu estado de ánimo de hoy",
		"Anota tres cosas por las que te sientes agradecido",
	},
}

type Orchestrator struct {
	generator Generator
}

// NewOrchestrator builds the orchestrator. A nil generator is a supported
// deployment mode: every reply then comes from the tier templates.
func NewOrchestrator(generator Generator) *Orchestrator {
	o := &Orchestrator{generator: generator}
	if generator == nil {
		log.Printf("[responder] no generator configured, using template replies")
	}
	return o
}

// Respond produces the reply for an aggregated context. The risk tier and
// emotion read always run; only the reply text depends on the generator,
// and any generator failure falls back to the tier template.
func (o *Orchestrator) Respond(ctx context.Context, c *aggregator.Context) *Response {
	assessment := c.Risk.Assessment

	resp := &Response{
		RiskTier:           assessment.Tier.String(),
		InterventionNeeded: assessment.InterventionNeeded,
		SuggestedActions:   actionsFor(assessment.Tier),
		Emotion:            signals.DetectEmotion(c.Message),
		Intensity:          signals.EstimateIntensity(c.Message),
		Insights:           buildInsights(c),
	}

	resp.Text = o.generateText(ctx, c)
	if resp.Text == "" {
		resp.Text = tierTemplates[assessment.Tier]
	} else {
		resp.Generated = true
	}
	return resp
}

func (o *Orchestrator) generateText(ctx context.Context, c *aggregator.Context) string {
	if o.generator == nil {
		return ""
	}

	genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	text, err := o.generator.Generate(genCtx, c)
	if err != nil {
		log.Printf("[responder] generation failed for %s, using template: %v", c.UserID, err)
		return ""
	}
	return text
}

func actionsFor(tier risk.Tier) []string {
	actions, ok := tierActions[tier]
	if !ok {
		actions = tierActions[risk.TierLow]
	}
	out := make([]string, len(actions))
	copy(out, actions)
	return out
}

func buildInsights(c *aggregator.Context) Insights {
	used := make([]string, 0, len(c.Wellness.Content))
	for _, r := range c.Wellness.Content {
		used = append(used, r.Content.Title)
	}
	return Insights{
		MoodAverage:       c.User.MoodPattern.AverageScore,
		MoodTrend:         string(c.User.MoodPattern.Trend),
		RiskFactors:       c.Risk.Assessment.RiskFactors,
		ProtectiveFactors: c.Risk.Assessment.ProtectiveFactors,
		Topics:            c.Conversation.RecentTopics,
		ContentUsed:       used,
	}
}
