/*
Package scoring combines raw brand visibility measurements into normalized scores.

Key Functions:
  - PositionScore: maps an average ranking onto 0-100.
  - Aggregate: weights the per-dimension measurements into an overall score.
  - FromSignals: derives the measurements from per-answer observations.
*/
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
)

// Weights are the contributions of each dimension to the overall score
type Weights struct {
	Visibility   float64 `json:"visibility" yaml:"visibility"`
	Sentiment    float64 `json:"sentiment" yaml:"sentiment"`
	ShareOfVoice float64 `json:"share_of_voice" yaml:"share_of_voice"`
	Position     float64 `json:"position" yaml:"position"`
}

// DefaultWeights returns the standard 30/20/30/20 split
func DefaultWeights() Weights {
	return Weights{
		Visibility:   0.30,
		Sentiment:    0.20,
		ShareOfVoice: 0.30,
		Position:     0.20,
	}
}

// Validate checks that all weights are non-negative and sum to 1.0
func (w Weights) Validate() error {
	for name, value := range map[string]float64{
		"visibility":     w.Visibility,
		"sentiment":      w.Sentiment,
		"share_of_voice": w.ShareOfVoice,
		"position":       w.Position,
	} {
		if value < 0 {
			return fmt.Errorf("weight %s must not be negative, got %v", name, value)
		}
	}

	sum := w.Visibility + w.Sentiment + w.ShareOfVoice + w.Position
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// Measurements are the raw per-dimension numbers for one analysis.
// Samples is the number of observations behind them; zero means no signal.
type Measurements struct {
	VisibilityScore float64
	SentimentScore  float64
	ShareOfVoice    float64
	AveragePosition float64
	Samples         int
	Mentions        int
	Competitors     []types.CompetitorScore
}

// PositionScore converts an average rank (1 = best) into a 0-100 score.
// Ranks inside the top ten earn ten points per place; beyond that a harsher
// linear penalty applies. A non-positive rank means the brand was never
// ranked and scores zero.
func PositionScore(averagePosition float64) float64 {
	switch {
	case averagePosition <= 0:
		return 0
	case averagePosition <= 10:
		return (11 - averagePosition) * 10
	default:
		return math.Max(0, 100-averagePosition*2)
	}
}

// Aggregate produces the scored result for m under weights w
func Aggregate(m Measurements, w Weights) types.AnalysisResult {
	result := types.AnalysisResult{
		QueriesRun:  m.Samples,
		Mentions:    m.Mentions,
		Competitors: m.Competitors,
		AnalyzedAt:  time.Now().UTC(),
	}
	if m.Samples == 0 {
		return result
	}

	positionScore := PositionScore(m.AveragePosition)
	overall := m.VisibilityScore*w.Visibility +
		m.SentimentScore*w.Sentiment +
		m.ShareOfVoice*w.ShareOfVoice +
		positionScore*w.Position

	result.VisibilityScore = Round1(m.VisibilityScore)
	result.SentimentScore = Round1(m.SentimentScore)
	result.ShareOfVoice = Round1(m.ShareOfVoice)
	result.AveragePosition = Round1(m.AveragePosition)
	result.PositionScore = Round1(positionScore)
	result.OverallScore = Round1(overall)
	return result
}

// Round1 rounds v to one decimal place
func Round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*10) / 10
}

// Signal is what one provider answer to one query revealed about the brand
type Signal struct {
	Provider string
	Query    string
	// Mentioned is true when the brand appears in the answer
	Mentioned bool
	// Position is the 1-based rank of the brand in a listed answer, 0 if unranked
	Position int
	// Sentiment is the answer's tone towards the brand in [-1, 1]
	Sentiment float64
	// CompetitorMentions counts mentions per competitor name
	CompetitorMentions map[string]int
}

// FromSignals derives measurements from observed signals. Every ratio is
// guarded so an empty or mention-free set yields zeros, never NaN.
func FromSignals(signals []Signal) Measurements {
	m := Measurements{Samples: len(signals)}
	if len(signals) == 0 {
		return m
	}

	var (
		sentimentSum  float64
		rankedCount   int
		positionSum   int
		competitorSum = make(map[string]int)
	)
	for _, s := range signals {
		if s.Mentioned {
			m.Mentions++
			sentimentSum += clamp(s.Sentiment, -1, 1)
			if s.Position > 0 {
				rankedCount++
				positionSum += s.Position
			}
		}
		for name, count := range s.CompetitorMentions {
			competitorSum[strings.TrimSpace(name)] += count
		}
	}

	m.VisibilityScore = ratio(float64(m.Mentions), float64(len(signals))) * 100
	if m.Mentions > 0 {
		// Map mean sentiment from [-1, 1] onto [0, 100]
		m.SentimentScore = (sentimentSum/float64(m.Mentions) + 1) * 50
	}
	if rankedCount > 0 {
		m.AveragePosition = float64(positionSum) / float64(rankedCount)
	}

	totalVoice := m.Mentions
	for _, count := range competitorSum {
		totalVoice += count
	}
	m.ShareOfVoice = ratio(float64(m.Mentions), float64(totalVoice)) * 100

	for name, count := range competitorSum {
		if name == "" || count == 0 {
			continue
		}
		m.Competitors = append(m.Competitors, types.CompetitorScore{
			Name:         name,
			Mentions:     count,
			ShareOfVoice: Round1(ratio(float64(count), float64(totalVoice)) * 100),
		})
	}
	sort.Slice(m.Competitors, func(i, j int) bool {
		if m.Competitors[i].Mentions != m.Competitors[j].Mentions {
			return m.Competitors[i].Mentions > m.Competitors[j].Mentions
		}
		return m.Competitors[i].Name < m.Competitors[j].Name
	})

	return m
}

func ratio(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
