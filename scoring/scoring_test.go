package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionScore(t *testing.T) {
	tests := []struct {
		name     string
		position float64
		expected float64
	}{
		{name: "rank one", position: 1, expected: 100},
		{name: "rank two", position: 2, expected: 90},
		{name: "rank ten", position: 10, expected: 10},
		{name: "just past cutoff", position: 11, expected: 78},
		{name: "rank twenty", position: 20, expected: 60},
		{name: "deep rank floors at zero", position: 60, expected: 0},
		{name: "unranked", position: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, PositionScore(tt.position), 1e-9)
		})
	}
}

func TestAggregateReferenceScenario(t *testing.T) {
	result := Aggregate(Measurements{
		VisibilityScore: 80,
		SentimentScore:  70,
		ShareOfVoice:    25,
		AveragePosition: 2,
		Samples:         10,
	}, DefaultWeights())

	assert.Equal(t, 90.0, result.PositionScore)
	assert.Equal(t, 63.5, result.OverallScore)
	assert.Equal(t, 80.0, result.VisibilityScore)
	assert.Equal(t, 70.0, result.SentimentScore)
	assert.Equal(t, 25.0, result.ShareOfVoice)
	assert.Equal(t, 2.0, result.AveragePosition)
}

func TestAggregateRoundsToOneDecimal(t *testing.T) {
	result := Aggregate(Measurements{
		VisibilityScore: 33.3333,
		SentimentScore:  66.6666,
		ShareOfVoice:    12.345,
		AveragePosition: 3.333,
		Samples:         3,
	}, DefaultWeights())

	assert.Equal(t, 33.3, result.VisibilityScore)
	assert.Equal(t, 66.7, result.SentimentScore)
	assert.Equal(t, 12.3, result.ShareOfVoice)
	assert.Equal(t, 3.3, result.AveragePosition)
	assert.Equal(t, 76.7, result.PositionScore)
}

func TestAggregateZeroSignal(t *testing.T) {
	result := Aggregate(Measurements{}, DefaultWeights())

	for name, value := range map[string]float64{
		"visibility":     result.VisibilityScore,
		"sentiment":      result.SentimentScore,
		"share_of_voice": result.ShareOfVoice,
		"position":       result.PositionScore,
		"overall":        result.OverallScore,
	} {
		assert.False(t, math.IsNaN(value), name)
		assert.Zero(t, value, name)
	}
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{name: "default", weights: DefaultWeights(), wantErr: false},
		{name: "custom", weights: Weights{Visibility: 0.4, Sentiment: 0.1, ShareOfVoice: 0.25, Position: 0.25}, wantErr: false},
		{name: "sum too small", weights: Weights{Visibility: 0.3, Sentiment: 0.2, ShareOfVoice: 0.3}, wantErr: true},
		{name: "negative", weights: Weights{Visibility: 1.2, Sentiment: -0.2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromSignals(t *testing.T) {
	signals := []Signal{
		{Mentioned: true, Position: 1, Sentiment: 1, CompetitorMentions: map[string]int{"Acme": 1}},
		{Mentioned: true, Position: 3, Sentiment: 0, CompetitorMentions: map[string]int{"Acme": 1, "Globex": 1}},
		{Mentioned: false, CompetitorMentions: map[string]int{"Acme": 1}},
		{Mentioned: false},
	}

	m := FromSignals(signals)

	assert.Equal(t, 4, m.Samples)
	assert.Equal(t, 2, m.Mentions)
	assert.InDelta(t, 50.0, m.VisibilityScore, 1e-9)
	assert.InDelta(t, 75.0, m.SentimentScore, 1e-9)
	assert.InDelta(t, 2.0, m.AveragePosition, 1e-9)
	// 2 brand mentions out of 2 + 3 + 1 total
	assert.InDelta(t, 100.0/3, m.ShareOfVoice, 1e-9)

	require.Len(t, m.Competitors, 2)
	assert.Equal(t, "Acme", m.Competitors[0].Name)
	assert.Equal(t, 3, m.Competitors[0].Mentions)
	assert.Equal(t, 50.0, m.Competitors[0].ShareOfVoice)
	assert.Equal(t, "Globex", m.Competitors[1].Name)
}

func TestFromSignalsWithoutMentions(t *testing.T) {
	m := FromSignals([]Signal{{Mentioned: false}, {Mentioned: false}})

	assert.Equal(t, 2, m.Samples)
	assert.Zero(t, m.VisibilityScore)
	assert.Zero(t, m.SentimentScore)
	assert.Zero(t, m.ShareOfVoice)
	assert.Zero(t, m.AveragePosition)

	result := Aggregate(m, DefaultWeights())
	assert.Zero(t, result.OverallScore)
	assert.False(t, math.IsNaN(result.OverallScore))
}
