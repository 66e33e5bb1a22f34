package service

import (
	"cicdassess/internal/aggregate"
	"cicdassess/internal/cache"
	"cicdassess/internal/logger"
	"cicdassess/internal/model"
	"cicdassess/internal/observability"
	"cicdassess/internal/repository"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	overallExperienceCap   = 5
	areaExperienceCap      = 10
	summarizeExperienceCap = 20

	noAreaExperiences    = "No detailed experiences shared for this area."
	areaSummaryFallback  = "Summary unavailable for this area."
	noExperiencesYet     = "No experiences shared yet."
	noDetailedExperience = "No detailed experiences shared."
)

const overallSystemPrompt = `You are a CI/CD expert analyzing team assessment results. Provide actionable, specific insights. Be concise but thorough. Format your response as JSON with two fields:
- "summary": A 2-3 sentence executive summary of the team's CI/CD maturity. IMPORTANT: Do NOT include any numerical scores, percentages, or statistics in the summary. Focus on qualitative observations about strengths, weaknesses, and overall state.
- "actionItems": An array of 4-6 specific, prioritized action items based on the weakest areas

Return ONLY valid JSON, no markdown or extra text.`

const areaSystemPrompt = `You are a CI/CD expert. Summarize the key themes from team experiences in 2-3 sentences. Be specific and actionable. Do NOT include any numerical scores or statistics in your response.`

const enhanceSystemPrompt = `You are a technical writing assistant helping improve CI/CD maturity assessment responses.
Your job is to enhance the user's description to be clearer, more specific, and professionally worded while preserving their original meaning and context.
Keep it concise (2-3 sentences max). Don't add information they didn't provide. Use their perspective (first person plural "we").`

const summarizeSystemPrompt = `You are a technical analyst summarizing CI/CD assessment feedback. Be concise and actionable. Focus on patterns, common challenges, and key insights. Output 2-3 sentences max.`

// OverallKind tags how the overall generation was interpreted
type OverallKind int

const (
	OverallParsed OverallKind = iota
	OverallFallback
)

func (k OverallKind) String() string {
	if k == OverallParsed {
		return "parsed"
	}
	return "fallback"
}

// OverallResult is the interpreted overall generation
type OverallResult struct {
	Kind        OverallKind
	Summary     string
	ActionItems []string
}

// RefreshOutcome reports what a refresh did. Empty means there was nothing to analyze
// and nothing was written.
type RefreshOutcome struct {
	Empty       bool
	Analysis    *model.Analysis
	Overall     OverallKind
	FailedAreas int
}

// EnhanceRequest asks for a rewrite of one experience text
type EnhanceRequest struct {
	QuestionTitle  string `json:"questionTitle"`
	SelectedOption string `json:"selectedOption"`
	Experience     string `json:"experience"`
}

// SummarizeRequest asks for a summary of one area's experiences
type SummarizeRequest struct {
	QuestionTitle string   `json:"questionTitle"`
	Experiences   []string `json:"experiences"`
	AvgScore      float64  `json:"avgScore"`
}

// AnalysisService owns the singleton analysis: it is the only writer of AnalysisRepo
type AnalysisService struct {
	feedback    repository.FeedbackRepo
	repo        repository.AnalysisRepo
	cache       cache.AnalysisCache
	gen         TextGenerator
	concurrency int
	log         *logger.Logger
	broadcaster Broadcaster
	now         func() time.Time
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(feedback repository.FeedbackRepo, repo repository.AnalysisRepo, analysisCache cache.AnalysisCache, gen TextGenerator, concurrency int, log *logger.Logger) *AnalysisService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &AnalysisService{
		feedback:    feedback,
		repo:        repo,
		cache:       analysisCache,
		gen:         gen,
		concurrency: concurrency,
		log:         log.With("component", "analysis"),
		broadcaster: nopBroadcaster{},
		now:         time.Now,
	}
}

// SetBroadcaster sets the broadcaster for dashboard events
func (s *AnalysisService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Refresh regenerates the analysis from every stored submission and replaces the stored one
func (s *AnalysisService) Refresh(ctx context.Context) (*RefreshOutcome, error) {
	ctx, span := observability.Tracer().Start(ctx, "analysis.refresh")
	defer span.End()

	outcome, err := s.refresh(ctx)
	switch {
	case err != nil:
		span.RecordError(err)
		observability.AnalysisRefreshes.WithLabelValues("error").Inc()
	case outcome.Empty:
		observability.AnalysisRefreshes.WithLabelValues("empty").Inc()
	default:
		span.SetAttributes(
			attribute.Int("analysis.responses", outcome.Analysis.TotalResponses),
			attribute.String("analysis.overall", outcome.Overall.String()),
			attribute.Int("analysis.failed_areas", outcome.FailedAreas),
		)
		observability.AnalysisRefreshes.WithLabelValues("ok").Inc()
	}
	return outcome, err
}

func (s *AnalysisService) refresh(ctx context.Context) (*RefreshOutcome, error) {
	subs, err := s.feedback.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load feedback: %w", err)
	}
	if len(subs) == 0 {
		return &RefreshOutcome{Empty: true}, nil
	}

	sum := aggregate.Summarize(subs)
	areas := areasWithData(sum.Questions)

	text, err := s.gen.Generate(ctx, overallSystemPrompt, buildOverallPrompt(sum, areas))
	if err != nil {
		observability.AIRequests.WithLabelValues("overall", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	observability.AIRequests.WithLabelValues("overall", "ok").Inc()

	overall := ParseOverall(text)
	if overall.Kind == OverallFallback {
		s.log.Warn("overall analysis was not valid JSON, storing raw text")
	}

	areaSummaries, failed := s.summarizeAreas(ctx, areas)

	dominant := sum.DominantLevel
	if dominant == "" {
		dominant = model.LevelInitial
	}
	analysis := &model.Analysis{
		TotalResponses:        sum.TotalResponses,
		AvgScore:              sum.AvgScore,
		DominantMaturityLevel: dominant,
		Summary:               overall.Summary,
		ActionItems:           overall.ActionItems,
		AreaSummaries:         areaSummaries,
		GeneratedAt:           s.now().UTC(),
	}
	if err := s.repo.Replace(ctx, analysis); err != nil {
		return nil, fmt.Errorf("store analysis: %w", err)
	}
	if err := s.cache.Set(ctx, analysis); err != nil {
		// drop the old entry so Latest falls through to Mongo
		s.log.Warn("failed to cache analysis", "error", err)
		if err := s.cache.Delete(ctx); err != nil {
			s.log.Error("failed to evict stale analysis", "error", err)
		}
	}
	s.broadcaster.Broadcast(EventAnalysisUpdated, analysis)
	s.log.Info("analysis refreshed", "responses", analysis.TotalResponses, "overall", overall.Kind.String(), "failedAreas", failed)

	return &RefreshOutcome{Analysis: analysis, Overall: overall.Kind, FailedAreas: failed}, nil
}

// summarizeAreas runs one bounded-concurrency call per area. A failing call gets a
// fallback sentence and does not stop the others.
func (s *AnalysisService) summarizeAreas(ctx context.Context, areas []aggregate.QuestionStats) ([]model.AreaSummary, int) {
	out := make([]model.AreaSummary, len(areas))
	failed := make([]bool, len(areas))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, area := range areas {
		out[i] = model.AreaSummary{QuestionID: area.QuestionID, Title: area.Title, AvgScore: area.AvgScore}
		if len(area.Experiences) == 0 {
			out[i].Summary = noAreaExperiences
			continue
		}
		g.Go(func() error {
			text, err := s.gen.Generate(ctx, areaSystemPrompt, buildAreaPrompt(area))
			if err != nil {
				observability.AIRequests.WithLabelValues("area", "error").Inc()
				s.log.Warn("area summary failed", "questionId", area.QuestionID, "error", err)
				out[i].Summary = areaSummaryFallback
				failed[i] = true
				return nil
			}
			observability.AIRequests.WithLabelValues("area", "ok").Inc()
			out[i].Summary = text
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	return out, n
}

// Latest returns the stored analysis, reading through the Redis cache. nil when none exists.
func (s *AnalysisService) Latest(ctx context.Context) (*model.Analysis, error) {
	if cached, err := s.cache.Get(ctx); err != nil {
		s.log.Warn("analysis cache read failed", "error", err)
	} else if cached != nil {
		return cached, nil
	}

	a, err := s.repo.GetLatest(ctx)
	if err != nil || a == nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, a); err != nil {
		s.log.Warn("failed to cache analysis", "error", err)
	}
	return a, nil
}

// Enhance rewrites a respondent's experience text
func (s *AnalysisService) Enhance(ctx context.Context, req EnhanceRequest) (string, error) {
	if strings.TrimSpace(req.Experience) == "" {
		return "", fmt.Errorf("%w: experience is required", ErrInvalidRequest)
	}
	prompt := fmt.Sprintf("Question: %s\nSelected answer: %s\nUser's experience: %s\n\nEnhance this description to be clearer and more professionally worded:",
		req.QuestionTitle, req.SelectedOption, req.Experience)

	text, err := s.gen.Generate(ctx, enhanceSystemPrompt, prompt)
	if err != nil {
		observability.AIRequests.WithLabelValues("enhance", "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	observability.AIRequests.WithLabelValues("enhance", "ok").Inc()
	return text, nil
}

// Summarize condenses up to 20 non-blank experiences for one area
func (s *AnalysisService) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	if len(req.Experiences) == 0 {
		return noExperiencesYet, nil
	}
	kept := nonBlank(req.Experiences, summarizeExperienceCap)
	if len(kept) == 0 {
		return noDetailedExperience, nil
	}

	prompt := fmt.Sprintf("Area: %s\nAverage Score: %.2f/4\n\nTeam experiences:\n%s\n\nSummarize the key themes and patterns from these experiences:",
		req.QuestionTitle, req.AvgScore, numbered(kept))

	text, err := s.gen.Generate(ctx, summarizeSystemPrompt, prompt)
	if err != nil {
		observability.AIRequests.WithLabelValues("summarize", "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	observability.AIRequests.WithLabelValues("summarize", "ok").Inc()
	return text, nil
}

// ParseOverall interprets the overall generation. Valid JSON yields OverallParsed; anything
// else is kept verbatim as the summary with no action items.
func ParseOverall(text string) OverallResult {
	var parsed struct {
		Summary     string            `json:"summary"`
		ActionItems []json.RawMessage `json:"actionItems"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &parsed); err != nil {
		return OverallResult{Kind: OverallFallback, Summary: text, ActionItems: []string{}}
	}

	items := make([]string, 0, len(parsed.ActionItems))
	for _, raw := range parsed.ActionItems {
		if item := actionItemText(raw); item != "" {
			items = append(items, item)
		}
	}
	return OverallResult{Kind: OverallParsed, Summary: parsed.Summary, ActionItems: items}
}

// actionItemText accepts a plain string or an object with an action or text field
func actionItemText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Action string `json:"action"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Action != "" {
			return obj.Action
		}
		if obj.Text != "" {
			return obj.Text
		}
	}
	return string(raw)
}

func stripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	} else {
		t = strings.TrimPrefix(t, "```")
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

func areasWithData(stats []aggregate.QuestionStats) []aggregate.QuestionStats {
	out := make([]aggregate.QuestionStats, 0, len(stats))
	for _, q := range stats {
		if q.ResponseCount > 0 {
			out = append(out, q)
		}
	}
	return out
}

func buildOverallPrompt(sum aggregate.Summary, areas []aggregate.QuestionStats) string {
	var b strings.Builder
	b.WriteString("Analyze this CI/CD assessment data:\n\n")
	fmt.Fprintf(&b, "Total Responses: %d\n", sum.TotalResponses)
	fmt.Fprintf(&b, "Average Score: %.1f/32\n", sum.AvgScore)
	fmt.Fprintf(&b, "Dominant Maturity Level: %s\n\n", sum.DominantLevel)

	b.WriteString("Maturity Distribution:\n")
	for _, level := range model.MaturityLevels {
		if n := sum.MaturityDistribution[level]; n > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", level, n)
		}
	}

	b.WriteString("\nScores and Experiences by Area:\n")
	for i, area := range areas {
		if i > 0 {
			b.WriteString("\n")
		}
		sample := strings.Join(capStrings(area.Experiences, overallExperienceCap), "\n  - ")
		if sample == "" {
			sample = "No experiences shared"
		}
		fmt.Fprintf(&b, "**%s** (avg: %.2f/4):\n  - %s\n", area.Title, area.AvgScore, sample)
	}
	b.WriteString("\nGenerate a summary and action items:")
	return b.String()
}

func buildAreaPrompt(area aggregate.QuestionStats) string {
	return fmt.Sprintf("Area: %s\n\nTeam experiences:\n%s\n\nSummarize the key patterns and challenges:",
		area.Title, numbered(capStrings(area.Experiences, areaExperienceCap)))
}

func numbered(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, item)
	}
	return strings.Join(lines, "\n")
}

func capStrings(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func nonBlank(items []string, n int) []string {
	out := make([]string, 0, n)
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		out = append(out, item)
		if len(out) == n {
			break
		}
	}
	return out
}
