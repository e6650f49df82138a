package analysis

import (
	"testing"

	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/stretchr/testify/assert"
)

func TestBrandMatcher(t *testing.T) {
	m := NewBrandMatcher("Acme", "https://www.acme.io/pricing")

	assert.True(t, m.Matches("I recommend ACME for small teams"))
	assert.True(t, m.Matches("See acme.io for details"))
	assert.False(t, m.Matches("Globex is popular"))
}

func TestExtractSignal(t *testing.T) {
	brand := NewBrandMatcher("Acme", "https://acme.com")
	answer := Answer{
		Provider: "openai",
		Query:    "best crm?",
		Text: "Here are the top CRMs:\n" +
			"1. Globex - popular with enterprises\n" +
			"2. **Acme** - the best and most intuitive option for small teams\n" +
			"3. Initech - limited integrations\n" +
			"Globex and Initech both have free tiers.",
	}

	signal := ExtractSignal(answer, brand, []string{"Globex", "Initech", "Umbrella", "acme"})

	assert.True(t, signal.Mentioned)
	assert.Equal(t, 2, signal.Position)
	assert.Equal(t, 1.0, signal.Sentiment)
	assert.Equal(t, map[string]int{"Globex": 1, "Initech": 1}, signal.CompetitorMentions)
	assert.Equal(t, "openai", signal.Provider)
}

func TestExtractSignalUnrankedAndNegative(t *testing.T) {
	brand := NewBrandMatcher("Acme", "")
	signal := ExtractSignal(Answer{Text: "Acme is expensive and slow, but reliable."}, brand, nil)

	assert.True(t, signal.Mentioned)
	assert.Equal(t, 0, signal.Position)
	assert.InDelta(t, -1.0/3, signal.Sentiment, 1e-9)
}

func TestExtractSignalNotMentioned(t *testing.T) {
	signal := ExtractSignal(Answer{Text: "1. Globex\n2. Initech"}, NewBrandMatcher("Acme", ""), []string{"Globex"})

	assert.False(t, signal.Mentioned)
	assert.Zero(t, signal.Position)
	assert.Zero(t, signal.Sentiment)
	assert.Equal(t, 1, signal.CompetitorMentions["Globex"])
}

func TestParseCompetitors(t *testing.T) {
	reply := "1. **Globex** - enterprise CRM\n" +
		"2. Initech: sales automation\n" +
		"- Umbrella Corp (formerly Umbrella)\n" +
		"3. Acme\n" +
		"4. globex\n" +
		"\n" +
		"5. Hooli.\n" +
		"6. Stark Industries"

	names := ParseCompetitors(reply, NewBrandMatcher("Acme", ""), 4)

	assert.Equal(t, []string{"Globex", "Initech", "Umbrella Corp", "Hooli"}, names)
}

func TestBuildQueries(t *testing.T) {
	subject := types.AnalysisSubject{BrandName: "Acme", BrandURL: "https://acme.com", Qualifier: "CRM software"}

	queries := BuildQueries(subject, SiteProfile{}, 0)
	assert.Len(t, queries, 6)
	assert.Contains(t, queries[0], "best CRM software")
	assert.Contains(t, queries[4], "alternatives to Acme")

	fromKeywords := BuildQueries(types.AnalysisSubject{BrandName: "Acme"}, SiteProfile{Keywords: []string{"sales pipeline"}}, 2)
	assert.Len(t, fromKeywords, 2)
	assert.Contains(t, fromKeywords[0], "sales pipeline")

	fallback := BuildQueries(types.AnalysisSubject{BrandName: "Acme"}, SiteProfile{}, 1)
	assert.Contains(t, fallback[0], "products and services like Acme")
}
