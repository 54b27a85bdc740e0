// Package mood analyzes historical mood entries into trend patterns.
package mood

import "time"

// Scores run 1..10; 5 is the neutral midpoint assumed when no history exists.
const (
	NeutralScore = 5

	trendWindow     = 7
	minTrendSamples = 14
	trendDelta      = 0.5
	lowAverage      = 4.0
	lowScore        = 3
	frequentLowMin  = 3
)

// Sample is one logged mood entry, immutable once created.
type Sample struct {
	Score       int
	Description string
	Tags        []string
	CreatedAt   time.Time
}

// Trend describes the direction of recent mood movement.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// Pattern is the derived view over a user's recent mood history.
type Pattern struct {
	AverageScore   float64
	Trend          Trend
	RiskIndicators []string
}

// Analyze derives a Pattern from samples ordered most-recent-first.
// With no samples the average defaults to the neutral midpoint and the trend
// is stable. A non-stable trend needs at least 14 samples: the mean of the
// most recent 7 is compared against the mean of the preceding 7, and a gap
// larger than 0.5 in either direction tips the trend. The three risk
// indicators are independent and additive.
func Analyze(samples []Sample) Pattern {
	p := Pattern{
		AverageScore:   float64(NeutralScore),
		Trend:          TrendStable,
		RiskIndicators: []string{},
	}
	if len(samples) > 0 {
		sum := 0
		for _, s := range samples {
			sum += s.Score
		}
		p.AverageScore = float64(sum) / float64(len(samples))
	}

	if len(samples) >= minTrendSamples {
		recent := windowMean(samples[:trendWindow])
		previous := windowMean(samples[trendWindow : 2*trendWindow])
		switch {
		case recent > previous+trendDelta:
			p.Trend = TrendImproving
		case recent < previous-trendDelta:
			p.Trend = TrendDeclining
		}
	}

	if p.AverageScore < lowAverage {
		p.RiskIndicators = append(p.RiskIndicators, "low_mood_average")
	}
	if p.Trend == TrendDeclining {
		p.RiskIndicators = append(p.RiskIndicators, "declining_trend")
	}
	recentLow := 0
	for _, s := range samples[:min(trendWindow, len(samples))] {
		if s.Score <= lowScore {
			recentLow++
		}
	}
	if recentLow >= frequentLowMin {
		p.RiskIndicators = append(p.RiskIndicators, "frequent_low_moods")
	}

	return p
}

func windowMean(samples []Sample) float64 {
	sum := 0
	for _, s := range samples {
		sum += s.Score
	}
	return float64(sum) / float64(len(samples))
}
