package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Tier is the emotional risk classification outcome for a message.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
	TierCrisis
)

var tierNames = map[Tier]string{
	TierLow:    "low",
	TierMedium: "medium",
	TierHigh:   "high",
	TierCrisis: "crisis",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "low"
}

// ParseTier maps a stored tier name back to its Tier. Unknown names parse as low.
func ParseTier(s string) Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "crisis":
		return TierCrisis
	case "high":
		return TierHigh
	case "medium":
		return TierMedium
	default:
		return TierLow
	}
}

// TierRule binds one tier to its trigger keywords.
type TierRule struct {
	Tier     Tier     `json:"-"`
	Name     string   `json:"tier"`
	Keywords []string `json:"keywords"`
}

// FactorRule names one risk or protective factor and its trigger keywords.
type FactorRule struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// RuleSet is the full keyword configuration for classification and factor
// extraction. Tiers are evaluated in slice order, so the crisis rule must
// come first.
type RuleSet struct {
	Tiers             []TierRule   `json:"tiers"`
	RiskFactors       []FactorRule `json:"riskFactors"`
	ProtectiveFactors []FactorRule `json:"protectiveFactors"`
}

// DefaultRules returns the built-in Spanish keyword tables.
func DefaultRules() *RuleSet {
	return &RuleSet{
		Tiers: []TierRule{
			{
				Tier: TierCrisis,
				Name: "crisis",
				Keywords: []string{
					"suicidio", "suicidarme", "matarme", "acabar con todo",
					"no quiero vivir", "mejor muerto", "terminar con mi vida",
					"hacerme daño", "lastimarme", "cortarme",
				},
			},
			{
				Tier: TierHigh,
				Name: "high",
				Keywords: []string{
					"desesperado", "sin esperanza", "no veo salida", "no puedo más",
					"todo está perdido", "nadie me entiende", "solo", "abandonado",
				},
			},
			{
				Tier: TierMedium,
				Name: "medium",
				Keywords: []string{
					"deprimido", "ansioso", "triste", "preocupado", "estresado",
					"agobiado", "abrumado", "confundido", "perdido",
				},
			},
		},
		RiskFactors: []FactorRule{
			{Name: "suicidal_ideation", Keywords: []string{"suicid", "matarme"}},
			{Name: "social_isolation", Keywords: []string{"solo", "abandonado"}},
			{Name: "hopelessness", Keywords: []string{"desesperado", "sin esperanza"}},
		},
		ProtectiveFactors: []FactorRule{
			{Name: "spiritual_connection", Keywords: []string{"dios", "fe", "orar"}},
			{Name: "social_support", Keywords: []string{"familia", "amigos"}},
		},
	}
}

// LoadRules reads a RuleSet from a JSON file. Tier names in the file are
// resolved against the known tiers; unknown names are rejected so a typo in
// the table cannot silently demote crisis detection.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var rules RuleSet
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(rules.Tiers) == 0 {
		return nil, fmt.Errorf("rules file has no tiers")
	}
	for i := range rules.Tiers {
		switch strings.ToLower(strings.TrimSpace(rules.Tiers[i].Name)) {
		case "crisis":
			rules.Tiers[i].Tier = TierCrisis
		case "high":
			rules.Tiers[i].Tier = TierHigh
		case "medium":
			rules.Tiers[i].Tier = TierMedium
		case "low":
			rules.Tiers[i].Tier = TierLow
		default:
			return nil, fmt.Errorf("unknown tier name in rules: %q", rules.Tiers[i].Name)
		}
	}
	return &rules, nil
}
