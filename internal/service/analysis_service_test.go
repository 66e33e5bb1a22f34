package service

import (
	"cicdassess/internal/logger"
	"cicdassess/internal/model"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type analysisFixture struct {
	svc      *AnalysisService
	feedback *FeedbackService
	repo     *memAnalysisRepo
	cache    *memAnalysisCache
	gen      *stubGenerator
	events   *recordingBroadcaster
}

func newAnalysisFixture(fn func(system, prompt string) (string, error)) *analysisFixture {
	fbRepo := newMemFeedbackRepo()
	f := &analysisFixture{
		feedback: NewFeedbackService(fbRepo, nil, testSurveyConfig(), logger.Nop()),
		repo:     &memAnalysisRepo{},
		cache:    &memAnalysisCache{},
		gen:      &stubGenerator{fn: fn},
		events:   &recordingBroadcaster{},
	}
	f.svc = NewAnalysisService(fbRepo, f.repo, f.cache, f.gen, 3, logger.Nop())
	f.svc.SetBroadcaster(f.events)
	return f
}

func (f *analysisFixture) submit(t *testing.T, values [8]int, experiences map[string]string) {
	t.Helper()
	if _, err := f.feedback.Submit(context.Background(), SubmitRequest{Nickname: "n", Role: "engineer", Answers: selections(values, experiences)}); err != nil {
		t.Fatal(err)
	}
}

func okGenerator(system, prompt string) (string, error) {
	if isOverallCall(system) {
		return "```json\n{\"summary\":\"Teams ship manually.\",\"actionItems\":[\"Add CI\",{\"action\":\"Automate tests\"},{\"text\":\"Script deploys\"}]}\n```", nil
	}
	return "area summary", nil
}

func TestRefreshEmptyPerformsNoWrite(t *testing.T) {
	f := newAnalysisFixture(okGenerator)
	outcome, err := f.svc.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Empty || outcome.Analysis != nil {
		t.Fatalf("outcome=%+v", outcome)
	}
	if f.repo.replaces != 0 || f.cache.sets != 0 || f.gen.callCount() != 0 {
		t.Fatalf("replaces=%d sets=%d calls=%d", f.repo.replaces, f.cache.sets, f.gen.callCount())
	}
	if len(f.events.types()) != 0 {
		t.Fatal("empty refresh must not notify dashboards")
	}
}

func TestRefreshStoresAnalysis(t *testing.T) {
	f := newAnalysisFixture(okGenerator)
	f.submit(t, [8]int{1, 1, 1, 1, 1, 1, 2, 2}, map[string]string{"q1": "no CI at all", "q3": "ssh and pray"})
	f.submit(t, [8]int{4, 4, 4, 4, 4, 4, 3, 3}, map[string]string{"q1": "trunk based"})

	outcome, err := f.svc.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	a := outcome.Analysis
	if outcome.Empty || outcome.Overall != OverallParsed || outcome.FailedAreas != 0 {
		t.Fatalf("outcome=%+v", outcome)
	}
	if a.TotalResponses != 2 || a.AvgScore != 20 || a.DominantMaturityLevel != model.LevelInitial {
		t.Fatalf("analysis=%+v", a)
	}
	if a.Summary != "Teams ship manually." || !reflect.DeepEqual(a.ActionItems, []string{"Add CI", "Automate tests", "Script deploys"}) {
		t.Fatalf("summary=%q items=%v", a.Summary, a.ActionItems)
	}
	if len(a.AreaSummaries) != 8 {
		t.Fatalf("areas=%d", len(a.AreaSummaries))
	}
	for _, area := range a.AreaSummaries {
		want := noAreaExperiences
		if area.QuestionID == "q1" || area.QuestionID == "q3" {
			want = "area summary"
		}
		if area.Summary != want {
			t.Errorf("%s summary=%q want %q", area.QuestionID, area.Summary, want)
		}
	}
	if a.AreaSummaries[0].QuestionID != "q1" || a.AreaSummaries[0].AvgScore != 2.5 {
		t.Fatalf("first area=%+v", a.AreaSummaries[0])
	}
	// one overall call plus one per area with experiences
	if f.gen.callCount() != 3 {
		t.Fatalf("calls=%d", f.gen.callCount())
	}
	if f.repo.replaces != 1 || f.cache.sets != 1 {
		t.Fatalf("replaces=%d sets=%d", f.repo.replaces, f.cache.sets)
	}
	if ev := f.events.types(); len(ev) != 1 || ev[0] != EventAnalysisUpdated {
		t.Fatalf("events=%v", ev)
	}

	// a second refresh replaces, never appends
	if _, err := f.svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.repo.replaces != 2 || f.repo.current.TotalResponses != 2 {
		t.Fatalf("replaces=%d", f.repo.replaces)
	}
}

func TestRefreshAreaFailureIsIsolated(t *testing.T) {
	f := newAnalysisFixture(func(system, prompt string) (string, error) {
		if isOverallCall(system) {
			return `{"summary":"ok","actionItems":[]}`, nil
		}
		if strings.Contains(prompt, "Area: Test Automation") {
			return "", errGatewayDown
		}
		return "fine", nil
	})
	exp := map[string]string{"q1": "a", "q2": "b", "q3": "c"}
	f.submit(t, [8]int{2, 2, 2, 2, 2, 2, 2, 2}, exp)

	outcome, err := f.svc.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if outcome.FailedAreas != 1 {
		t.Fatalf("failed=%d", outcome.FailedAreas)
	}
	got := map[string]string{}
	for _, area := range outcome.Analysis.AreaSummaries {
		got[area.QuestionID] = area.Summary
	}
	if got["q1"] != "fine" || got["q3"] != "fine" || got["q2"] != areaSummaryFallback {
		t.Fatalf("areas=%v", got)
	}
	if f.repo.replaces != 1 {
		t.Fatalf("replaces=%d", f.repo.replaces)
	}
}

func TestRefreshOverallFailureIsUpstreamError(t *testing.T) {
	f := newAnalysisFixture(func(system, prompt string) (string, error) {
		return "", errGatewayDown
	})
	f.submit(t, [8]int{2, 2, 2, 2, 2, 2, 2, 2}, nil)

	_, err := f.svc.Refresh(context.Background())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err=%v", err)
	}
	if f.repo.replaces != 0 {
		t.Fatal("failed refresh must not replace the analysis")
	}
}

func TestRefreshKeepsRawTextWhenNotJSON(t *testing.T) {
	f := newAnalysisFixture(func(system, prompt string) (string, error) {
		if isOverallCall(system) {
			return "The team is early in its journey.", nil
		}
		return "x", nil
	})
	f.submit(t, [8]int{2, 2, 2, 2, 2, 2, 2, 2}, nil)

	outcome, err := f.svc.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Overall != OverallFallback || outcome.Analysis.Summary != "The team is early in its journey." || len(outcome.Analysis.ActionItems) != 0 {
		t.Fatalf("outcome=%+v analysis=%+v", outcome, outcome.Analysis)
	}
}

func TestParseOverall(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		kind  OverallKind
		sum   string
		items []string
	}{
		{"plain json", `{"summary":"s","actionItems":["a","b"]}`, OverallParsed, "s", []string{"a", "b"}},
		{"fenced", "```json\n{\"summary\":\"s\",\"actionItems\":[]}\n```", OverallParsed, "s", []string{}},
		{"bare fence", "```\n{\"summary\":\"s\"}\n```", OverallParsed, "s", []string{}},
		{"object items", `{"summary":"s","actionItems":[{"action":"a"},{"text":"t"},{"priority":1}]}`, OverallParsed, "s", []string{"a", "t", `{"priority":1}`}},
		{"missing summary", `{"actionItems":["a"]}`, OverallParsed, "", []string{"a"}},
		{"not json", "just prose", OverallFallback, "just prose", []string{}},
		{"array", `["a"]`, OverallFallback, `["a"]`, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseOverall(tc.in)
			if got.Kind != tc.kind || got.Summary != tc.sum || !reflect.DeepEqual(got.ActionItems, tc.items) {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestLatestReadsThroughCache(t *testing.T) {
	f := newAnalysisFixture(okGenerator)
	ctx := context.Background()

	a, err := f.svc.Latest(ctx)
	if err != nil || a != nil {
		t.Fatalf("a=%v err=%v", a, err)
	}

	f.repo.current = &model.Analysis{TotalResponses: 3, Summary: "stored"}
	a, err = f.svc.Latest(ctx)
	if err != nil || a == nil || a.Summary != "stored" {
		t.Fatalf("a=%v err=%v", a, err)
	}
	if f.cache.sets != 1 {
		t.Fatalf("sets=%d", f.cache.sets)
	}
	gets := f.repo.gets
	if _, err := f.svc.Latest(ctx); err != nil {
		t.Fatal(err)
	}
	if f.repo.gets != gets {
		t.Fatal("second read should be served from cache")
	}
}

func TestRefreshEvictsCacheWhenSetFails(t *testing.T) {
	f := newAnalysisFixture(okGenerator)
	ctx := context.Background()
	f.cache.item = &model.Analysis{TotalResponses: 1, Summary: "old"}
	f.cache.setErr = errors.New("redis down")
	f.submit(t, [8]int{2, 2, 2, 2, 2, 2, 2, 2}, nil)

	if _, err := f.svc.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if f.cache.deletes != 1 {
		t.Fatalf("deletes=%d", f.cache.deletes)
	}

	a, err := f.svc.Latest(ctx)
	if err != nil || a == nil || a.Summary != "Teams ship manually." {
		t.Fatalf("Latest served %+v, %v; want the fresh analysis from the repo", a, err)
	}
}

func TestSummarize(t *testing.T) {
	f := newAnalysisFixture(func(system, prompt string) (string, error) { return "themes", nil })
	ctx := context.Background()

	got, err := f.svc.Summarize(ctx, SummarizeRequest{QuestionTitle: "Build & Integration"})
	if err != nil || got != noExperiencesYet {
		t.Fatalf("got=%q err=%v", got, err)
	}
	got, err = f.svc.Summarize(ctx, SummarizeRequest{Experiences: []string{" ", ""}})
	if err != nil || got != noDetailedExperience {
		t.Fatalf("got=%q err=%v", got, err)
	}

	many := make([]string, 25)
	for i := range many {
		many[i] = "exp"
	}
	got, err = f.svc.Summarize(ctx, SummarizeRequest{QuestionTitle: "Build & Integration", Experiences: many, AvgScore: 2.5})
	if err != nil || got != "themes" {
		t.Fatalf("got=%q err=%v", got, err)
	}
	prompt := f.gen.calls[len(f.gen.calls)-1]
	if !strings.Contains(prompt, "20. exp") || strings.Contains(prompt, "21. exp") || !strings.Contains(prompt, "2.50/4") {
		t.Fatalf("prompt=%q", prompt)
	}
}

func TestEnhance(t *testing.T) {
	f := newAnalysisFixture(func(system, prompt string) (string, error) { return "We run CI on every push.", nil })
	ctx := context.Background()

	if _, err := f.svc.Enhance(ctx, EnhanceRequest{QuestionTitle: "q"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err=%v", err)
	}
	got, err := f.svc.Enhance(ctx, EnhanceRequest{QuestionTitle: "Build", SelectedOption: "B", Experience: "ci on push"})
	if err != nil || got != "We run CI on every push." {
		t.Fatalf("got=%q err=%v", got, err)
	}

	down := newAnalysisFixture(func(system, prompt string) (string, error) { return "", errGatewayDown })
	if _, err := down.svc.Enhance(ctx, EnhanceRequest{Experience: "x"}); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err=%v", err)
	}
}
