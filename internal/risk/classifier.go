package risk

import "strings"

// Assessment is the derived risk state for one message. It is recreated per
// message, never mutated.
type Assessment struct {
	Tier               Tier
	RiskFactors        []string
	ProtectiveFactors  []string
	InterventionNeeded bool
}

// Classifier maps free text to a risk tier and extracts informational
// factors. All methods are pure over the injected rule set.
type Classifier struct {
	rules *RuleSet
}

// NewClassifier creates a classifier over the given rules. A nil rule set
// selects the built-in defaults.
func NewClassifier(rules *RuleSet) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify returns the first tier whose keyword set matches the text.
// Tiers are checked in rule order (crisis first), so a message containing
// both crisis and medium keywords always classifies as crisis. Text with
// no keyword match classifies as low.
func (c *Classifier) Classify(text string) Tier {
	lower := strings.ToLower(text)
	for _, rule := range c.rules.Tiers {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Tier
			}
		}
	}
	return TierLow
}

// RiskFactors returns the named risk factors whose keywords appear in the
// text. Factors are informational: they do not influence the tier.
func (c *Classifier) RiskFactors(text string) []string {
	return matchFactors(text, c.rules.RiskFactors)
}

// ProtectiveFactors returns the named protective factors present in the text.
func (c *Classifier) ProtectiveFactors(text string) []string {
	return matchFactors(text, c.rules.ProtectiveFactors)
}

// Assess runs classification and factor extraction in one pass.
// InterventionNeeded is true at tier high or crisis.
func (c *Classifier) Assess(text string) Assessment {
	tier := c.Classify(text)
	return Assessment{
		Tier:               tier,
		RiskFactors:        c.RiskFactors(text),
		ProtectiveFactors:  c.ProtectiveFactors(text),
		InterventionNeeded: tier >= TierHigh,
	}
}

func matchFactors(text string, rules []FactorRule) []string {
	lower := strings.ToLower(text)
	found := make([]string, 0)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				found = append(found, rule.Name)
				break
			}
		}
	}
	return found
}
