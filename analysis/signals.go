package analysis

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/iankiku/agentsauthority-chatbot-sub003/scoring"
)

// Answer is one provider reply to one query
type Answer struct {
	Provider string `json:"provider"`
	Query    string `json:"query"`
	Text     string `json:"text"`
}

var (
	listItemExpr = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+`)
	markupExpr   = regexp.MustCompile(`[*_` + "`" + `#]+`)
	wordExpr     = regexp.MustCompile(`[a-z']+`)
)

var positiveWords = map[string]bool{
	"best": true, "leading": true, "excellent": true, "recommended": true,
	"popular": true, "trusted": true, "reliable": true, "great": true,
	"innovative": true, "strong": true, "favorite": true, "robust": true,
	"intuitive": true, "affordable": true, "powerful": true,
}

var negativeWords = map[string]bool{
	"worst": true, "poor": true, "expensive": true, "avoid": true,
	"complaints": true, "unreliable": true, "outdated": true, "bad": true,
	"limited": true, "slow": true, "buggy": true, "difficult": true,
	"lacking": true, "overpriced": true, "weak": true,
}

// BrandMatcher recognizes a brand by name or by its site's domain
type BrandMatcher struct {
	terms []string
}

// NewBrandMatcher builds a matcher for brandName and brandURL
func NewBrandMatcher(brandName, brandURL string) BrandMatcher {
	var terms []string
	if name := strings.ToLower(strings.TrimSpace(brandName)); name != "" {
		terms = append(terms, name)
	}
	if u, err := url.Parse(brandURL); err == nil {
		if host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."); host != "" {
			terms = append(terms, host)
		}
	}
	return BrandMatcher{terms: terms}
}

// Matches reports whether text names the brand
func (m BrandMatcher) Matches(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range m.terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// ExtractSignal reads one answer for brand visibility, rank, tone and
// competitor mentions
func ExtractSignal(answer Answer, brand BrandMatcher, competitors []string) scoring.Signal {
	signal := scoring.Signal{
		Provider:           answer.Provider,
		Query:              answer.Query,
		CompetitorMentions: make(map[string]int),
	}

	lines := strings.Split(answer.Text, "\n")
	rank := 0
	var brandSentences []string
	for _, line := range lines {
		isItem := listItemExpr.MatchString(line)
		if isItem {
			rank++
		}
		if !brand.Matches(line) {
			continue
		}
		signal.Mentioned = true
		if isItem && signal.Position == 0 {
			signal.Position = rank
		}
		brandSentences = append(brandSentences, line)
	}

	if signal.Mentioned {
		signal.Sentiment = sentiment(strings.Join(brandSentences, " "))
	}

	lower := strings.ToLower(answer.Text)
	for _, competitor := range competitors {
		name := strings.ToLower(strings.TrimSpace(competitor))
		if name == "" || brand.Matches(name) {
			continue
		}
		if strings.Contains(lower, name) {
			signal.CompetitorMentions[competitor]++
		}
	}

	return signal
}

// sentiment scores text in [-1, 1] from the balance of tone words
func sentiment(text string) float64 {
	var positive, negative int
	for _, word := range wordExpr.FindAllString(strings.ToLower(text), -1) {
		switch {
		case positiveWords[word]:
			positive++
		case negativeWords[word]:
			negative++
		}
	}
	if positive+negative == 0 {
		return 0
	}
	return float64(positive-negative) / float64(positive+negative)
}

// ParseCompetitors reads a list answer into at most limit distinct names
func ParseCompetitors(text string, brand BrandMatcher, limit int) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, line := range strings.Split(text, "\n") {
		line = listItemExpr.ReplaceAllString(line, "")
		line = markupExpr.ReplaceAllString(line, "")
		for _, sep := range []string{" - ", " – ", ":", "(", ","} {
			if idx := strings.Index(line, sep); idx > 0 {
				line = line[:idx]
			}
		}
		name := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(line), "."))
		if name == "" || len(name) > 60 || brand.Matches(name) {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, name)
		if len(names) >= limit {
			break
		}
	}
	return names
}
