package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/cache"
	"github.com/iankiku/agentsauthority-chatbot-sub003/pipeline"
	"github.com/iankiku/agentsauthority-chatbot-sub003/scoring"
	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// State keys shared between stages
const (
	keyProfile     = "profile"
	keyQueries     = "queries"
	keyCompetitors = "competitors"
	keyMentions    = "mentions"
	keyAnswers     = "answers"
)

// Analyzer owns the collaborators used by the default stage plan
type Analyzer struct {
	Providers  []Provider
	Inspector  SiteInspector
	Mentions   MentionSource
	Cache      *cache.FreshnessCache
	Weights    scoring.Weights
	MaxQueries int
	// ScanConcurrency bounds in-flight provider calls per job
	ScanConcurrency int
	Logger          *logrus.Logger
}

// Stages returns the standard seven-stage plan. Cumulative progress before
// each stage is 0, 15, 30, 50, 80, 90 and 95.
func (a *Analyzer) Stages() []pipeline.Stage {
	return []pipeline.Stage{
		{Name: "discovery", Label: "Discovering brand", Weight: 15, Run: a.discover},
		{Name: "queries", Label: "Generating queries", Weight: 15, Run: a.generateQueries},
		{Name: "competitors", Label: "Identifying competitors", Weight: 20, Run: a.identifyCompetitors},
		{Name: "scan", Label: "Scanning AI providers", Weight: 30, Run: a.scanProviders},
		{Name: "analyze", Label: "Analyzing responses", Weight: 10, Run: a.analyzeResponses},
		{Name: "score", Label: "Calculating scores", Weight: 5, Run: a.calculateScores},
		{Name: "finalize", Label: "Finalizing report", Weight: 5, Run: a.finalize},
	}
}

func (a *Analyzer) logger(state *pipeline.State, stage string) *logrus.Entry {
	return a.Logger.WithFields(logrus.Fields{
		"job_id": state.JobID,
		"stage":  stage,
	})
}

// discover reads the brand's site, reusing a recent profile when cached.
// An unreachable site is not fatal; the analysis continues on the name alone.
func (a *Analyzer) discover(ctx context.Context, state *pipeline.State) error {
	subject := state.Subject
	var profile SiteProfile

	if a.Cache != nil && a.Cache.GetJSON(ctx, cache.ClassBrandDiscovery, &profile, subject.BrandURL) {
		state.Set(keyProfile, profile)
		return nil
	}

	profile = SiteProfile{URL: subject.BrandURL, SiteName: subject.BrandName}
	if a.Inspector != nil {
		inspected, err := a.Inspector.Inspect(ctx, subject.BrandURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger(state, "discovery").WithError(err).Warn("Site inspection failed, continuing without profile")
		} else {
			profile = inspected
			if a.Cache != nil {
				if err := a.Cache.PutJSON(ctx, cache.ClassBrandDiscovery, profile, subject.BrandURL); err != nil {
					a.logger(state, "discovery").WithError(err).Warn("Failed to cache site profile")
				}
			}
		}
	}

	state.Set(keyProfile, profile)
	return nil
}

func (a *Analyzer) generateQueries(_ context.Context, state *pipeline.State) error {
	queries := BuildQueries(state.Subject, profileOf(state), a.MaxQueries)
	if len(queries) == 0 {
		return fmt.Errorf("no queries generated for %s", state.Subject.BrandName)
	}
	state.Set(keyQueries, queries)
	return nil
}

// identifyCompetitors asks the first provider for rivals and collects press
// mentions alongside
func (a *Analyzer) identifyCompetitors(ctx context.Context, state *pipeline.State) error {
	if len(a.Providers) == 0 {
		return &types.ExternalServiceError{Service: "providers", Message: "No AI providers configured"}
	}

	subject := state.Subject
	brand := NewBrandMatcher(subject.BrandName, subject.BrandURL)

	if err := state.Throttle(ctx); err != nil {
		return err
	}
	reply, err := a.Providers[0].Ask(ctx, competitorPrompt(subject, profileOf(state)))
	if err != nil {
		return err
	}
	competitors := ParseCompetitors(reply, brand, 5)
	state.Set(keyCompetitors, competitors)

	if a.Mentions != nil {
		mentions, err := a.Mentions.Mentions(ctx, subject.BrandName)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger(state, "competitors").WithError(err).Warn("Press mentions unavailable")
		}
		state.Set(keyMentions, mentions)
	}

	a.logger(state, "competitors").WithField("competitors", competitors).Debug("Competitors identified")
	return nil
}

// scanProviders asks every provider every query concurrently. Each provider's
// answers are cached for the subject so a rerun within the TTL skips them.
func (a *Analyzer) scanProviders(ctx context.Context, state *pipeline.State) error {
	queries := stringsOf(state, keyQueries)
	subject := state.Subject

	type providerScan struct {
		provider Provider
		identity []string
		answers  []Answer
		cached   bool
	}

	scans := make([]*providerScan, 0, len(a.Providers))
	g, gCtx := errgroup.WithContext(ctx)
	if a.ScanConcurrency > 0 {
		g.SetLimit(a.ScanConcurrency)
	}

	for _, provider := range a.Providers {
		scan := &providerScan{
			provider: provider,
			identity: append([]string{provider.Name()}, subject.Identity()...),
		}
		scans = append(scans, scan)

		if a.Cache != nil && a.Cache.GetJSON(ctx, cache.ClassProviderScan, &scan.answers, scan.identity...) && len(scan.answers) > 0 {
			scan.cached = true
			continue
		}

		scan.answers = make([]Answer, len(queries))
		for i, query := range queries {
			i, query := i, query
			g.Go(func() error {
				if err := state.Throttle(gCtx); err != nil {
					return err
				}
				text, err := scan.provider.Ask(gCtx, query)
				if err != nil {
					return err
				}
				scan.answers[i] = Answer{Provider: scan.provider.Name(), Query: query, Text: text}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}

	var answers []Answer
	for _, scan := range scans {
		answers = append(answers, scan.answers...)
		if scan.cached || a.Cache == nil {
			continue
		}
		if err := a.Cache.PutJSON(ctx, cache.ClassProviderScan, scan.answers, scan.identity...); err != nil {
			a.logger(state, "scan").WithFields(logrus.Fields{
				"provider": scan.provider.Name(),
				"error":    err.Error(),
			}).Warn("Failed to cache provider scan")
		}
	}

	a.logger(state, "scan").WithField("answers", len(answers)).Debug("Provider scan finished")
	state.Set(keyAnswers, answers)
	return nil
}

func (a *Analyzer) analyzeResponses(_ context.Context, state *pipeline.State) error {
	brand := NewBrandMatcher(state.Subject.BrandName, state.Subject.BrandURL)
	competitors := stringsOf(state, keyCompetitors)

	answers, _ := value[[]Answer](state, keyAnswers)
	for _, answer := range answers {
		state.AddSignals(ExtractSignal(answer, brand, competitors))
	}

	measurements := scoring.FromSignals(state.Signals)
	state.Measurements = &measurements
	return nil
}

func (a *Analyzer) calculateScores(_ context.Context, state *pipeline.State) error {
	if state.Measurements == nil {
		return fmt.Errorf("no measurements to score")
	}
	weights := a.Weights
	if weights == (scoring.Weights{}) {
		weights = scoring.DefaultWeights()
	}
	result := scoring.Aggregate(*state.Measurements, weights)
	state.Result = &result
	return nil
}

func (a *Analyzer) finalize(_ context.Context, state *pipeline.State) error {
	if state.Result == nil {
		return fmt.Errorf("no result to finalize")
	}

	for _, provider := range a.Providers {
		state.Result.Providers = append(state.Result.Providers, provider.Name())
	}
	mentions, _ := value[[]Mention](state, keyMentions)
	state.Result.PressMentions = len(mentions)
	state.Result.AnalyzedAt = time.Now().UTC()
	return nil
}

func profileOf(state *pipeline.State) SiteProfile {
	profile, ok := value[SiteProfile](state, keyProfile)
	if !ok {
		return SiteProfile{URL: state.Subject.BrandURL, SiteName: state.Subject.BrandName}
	}
	return profile
}

func stringsOf(state *pipeline.State, key string) []string {
	values, _ := value[[]string](state, key)
	return values
}

func value[T any](state *pipeline.State, key string) (T, bool) {
	var zero T
	raw, ok := state.Value(key)
	if !ok {
		return zero, false
	}
	typed, ok := raw.(T)
	return typed, ok
}
