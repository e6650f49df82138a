package analysis

import (
	"fmt"
	"strings"

	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
)

// BuildQueries writes the buyer-intent prompts sent to every provider.
// The category comes from the qualifier, then the site keywords, then the
// brand itself.
func BuildQueries(subject types.AnalysisSubject, profile SiteProfile, limit int) []string {
	category := strings.TrimSpace(subject.Qualifier)
	if category == "" && len(profile.Keywords) > 0 {
		category = profile.Keywords[0]
	}
	if category == "" {
		category = "products and services like " + subject.BrandName
	}

	queries := []string{
		fmt.Sprintf("What are the best %s available today? List the top options in order.", category),
		fmt.Sprintf("Which %s would you recommend for a growing business? Rank your recommendations.", category),
		fmt.Sprintf("Compare the leading %s providers and list them from best to worst.", category),
		fmt.Sprintf("What are the most trusted %s brands right now?", category),
		fmt.Sprintf("What are the main alternatives to %s? List them in order.", subject.BrandName),
		fmt.Sprintf("What do customers say about %s?", subject.BrandName),
	}
	if limit > 0 && limit < len(queries) {
		queries = queries[:limit]
	}
	return queries
}

// competitorPrompt asks a provider to name the brand's rivals
func competitorPrompt(subject types.AnalysisSubject, profile SiteProfile) string {
	about := profile.Description
	if about == "" {
		about = profile.Title
	}
	prompt := fmt.Sprintf("List the top 5 direct competitors of %s (%s)", subject.BrandName, subject.BrandURL)
	if subject.Qualifier != "" {
		prompt += " in the " + subject.Qualifier + " market"
	}
	if about != "" {
		prompt += ". The company describes itself as: " + about
	}
	return prompt + ". Reply with one company name per line and nothing else."
}
