package service

import (
	"cicdassess/internal/config"
	"cicdassess/internal/logger"
	"cicdassess/internal/model"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func testSurveyConfig() config.SurveyConfig {
	return config.SurveyConfig{
		Roles:           []string{"engineer", "product"},
		DryRunNicknames: []string{"tombombadil"},
		PublicBaseURL:   "https://survey.example.com/",
	}
}

func newTestFeedbackService() (*FeedbackService, *memFeedbackRepo, *stubQueue, *recordingBroadcaster) {
	repo := newMemFeedbackRepo()
	queue := &stubQueue{}
	b := &recordingBroadcaster{}
	svc := NewFeedbackService(repo, queue, testSurveyConfig(), logger.Nop())
	svc.SetBroadcaster(b)
	return svc, repo, queue, b
}

func TestSubmitThenLookupRoundTrip(t *testing.T) {
	svc, _, queue, b := newTestFeedbackService()
	ctx := context.Background()

	res, err := svc.Submit(ctx, SubmitRequest{
		Nickname: "  ada ",
		Role:     "Engineer",
		Answers:  selections([8]int{1, 2, 3, 4, 1, 2, 3, 4}, map[string]string{"q1": "we build on laptops"}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalScore != 20 || res.MaturityLevel != model.LevelEmerging {
		t.Fatalf("result=%+v", res)
	}
	if len(res.EditKey) != 6 || res.EditURL != "https://survey.example.com/edit/"+res.EditKey {
		t.Fatalf("key=%q url=%q", res.EditKey, res.EditURL)
	}

	got, err := svc.GetByEditKey(ctx, strings.ToLower(res.EditKey))
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != res.ID || got.Nickname != "ada" || got.Role != "engineer" {
		t.Fatalf("got=%+v", got)
	}
	if got.TotalScore != 20 || got.MaturityLevel != model.LevelEmerging || got.UpdatedAt != nil {
		t.Fatalf("got=%+v", got)
	}
	if len(got.Answers) != 8 || got.Answers[0].Experience != "we build on laptops" || got.Answers[3].SelectedLabel != "D" {
		t.Fatalf("answers=%+v", got.Answers)
	}

	if r := queue.enqueued(); len(r) != 1 || r[0] != "submit" {
		t.Fatalf("enqueued=%v", r)
	}
	if ev := b.types(); len(ev) != 1 || ev[0] != EventFeedbackSubmitted {
		t.Fatalf("events=%v", ev)
	}
}

func TestUpdateRecomputesScoreAndLevel(t *testing.T) {
	svc, _, queue, _ := newTestFeedbackService()
	ctx := context.Background()

	res, err := svc.Submit(ctx, SubmitRequest{Nickname: "bo", Role: "product", Answers: selections([8]int{2, 2, 2, 2, 2, 2, 2, 2}, nil)})
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalScore != 16 || res.MaturityLevel != model.LevelEmerging {
		t.Fatalf("result=%+v", res)
	}

	updated, err := svc.Update(ctx, res.EditKey, SubmitRequest{Nickname: "bo2", Role: "product", Answers: selections([8]int{4, 2, 2, 2, 2, 2, 2, 2}, nil)})
	if err != nil {
		t.Fatal(err)
	}
	if updated.TotalScore != 18 || updated.MaturityLevel != model.LevelEmerging {
		t.Fatalf("updated=%d %s", updated.TotalScore, updated.MaturityLevel)
	}
	if updated.UpdatedAt == nil || !updated.UpdatedAt.After(updated.SubmittedAt) {
		t.Fatalf("updatedAt=%v submittedAt=%v", updated.UpdatedAt, updated.SubmittedAt)
	}
	if updated.Nickname != "bo2" || updated.EditKey != res.EditKey || updated.ID != res.ID {
		t.Fatalf("updated=%+v", updated)
	}
	if r := queue.enqueued(); len(r) != 2 || r[1] != "update" {
		t.Fatalf("enqueued=%v", r)
	}
}

func TestUnknownKeyIsNotFound(t *testing.T) {
	svc, _, _, _ := newTestFeedbackService()
	ctx := context.Background()

	for _, key := range []string{"ABCDEF", "short", "", "ABCDE0"} {
		if _, err := svc.GetByEditKey(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetByEditKey(%q) err=%v", key, err)
		}
	}
	_, err := svc.Update(ctx, "ABCDEF", SubmitRequest{Nickname: "x", Role: "engineer", Answers: selections([8]int{1, 1, 1, 1, 1, 1, 1, 1}, nil)})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update err=%v", err)
	}
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	full := selections([8]int{1, 1, 1, 1, 1, 1, 1, 1}, nil)
	cases := []struct {
		name string
		req  SubmitRequest
	}{
		{"missing nickname", SubmitRequest{Nickname: "  ", Role: "engineer", Answers: full}},
		{"missing role", SubmitRequest{Nickname: "a", Answers: full}},
		{"unknown role", SubmitRequest{Nickname: "a", Role: "manager", Answers: full}},
		{"incomplete", SubmitRequest{Nickname: "a", Role: "engineer", Answers: full[:7]}},
		{"bad value", SubmitRequest{Nickname: "a", Role: "engineer", Answers: selections([8]int{1, 1, 1, 1, 1, 1, 1, 5}, nil)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, queue, _ := newTestFeedbackService()
			_, err := svc.Submit(context.Background(), tc.req)
			if !errors.Is(err, ErrInvalidSubmission) {
				t.Fatalf("err=%v", err)
			}
			if repo.inserts != 0 || len(queue.enqueued()) != 0 {
				t.Fatal("invalid submission must not be stored or trigger a refresh")
			}
		})
	}
}

func TestDryRunIsScoredButNotStored(t *testing.T) {
	svc, repo, queue, _ := newTestFeedbackService()
	res, err := svc.Submit(context.Background(), SubmitRequest{Nickname: "TomBombadil", Role: "engineer", Answers: selections([8]int{4, 4, 4, 4, 4, 4, 4, 4}, nil)})
	if err != nil {
		t.Fatal(err)
	}
	if !res.DryRun || res.EditKey != "" || res.TotalScore != 32 || res.MaturityLevel != model.LevelOptimizing {
		t.Fatalf("res=%+v", res)
	}
	if repo.inserts != 0 || len(queue.enqueued()) != 0 {
		t.Fatal("dry run must not be stored")
	}
}

func TestSubmitRetriesOnKeyCollision(t *testing.T) {
	svc, repo, _, _ := newTestFeedbackService()
	ctx := context.Background()
	keys := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	svc.newKey = func() (string, error) {
		k := keys[0]
		keys = keys[1:]
		return k, nil
	}

	first, err := svc.Submit(ctx, SubmitRequest{Nickname: "a", Role: "engineer", Answers: selections([8]int{1, 1, 1, 1, 1, 1, 1, 1}, nil)})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Submit(ctx, SubmitRequest{Nickname: "b", Role: "engineer", Answers: selections([8]int{1, 1, 1, 1, 1, 1, 1, 1}, nil)})
	if err != nil {
		t.Fatal(err)
	}
	if first.EditKey != "AAAAAA" || second.EditKey != "BBBBBB" || repo.inserts != 2 {
		t.Fatalf("first=%s second=%s inserts=%d", first.EditKey, second.EditKey, repo.inserts)
	}
}

func TestSubmitGivesUpWhenKeysExhausted(t *testing.T) {
	svc, _, _, _ := newTestFeedbackService()
	ctx := context.Background()
	svc.newKey = func() (string, error) { return "CCCCCC", nil }

	req := SubmitRequest{Nickname: "a", Role: "engineer", Answers: selections([8]int{1, 1, 1, 1, 1, 1, 1, 1}, nil)}
	if _, err := svc.Submit(ctx, req); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Submit(ctx, req); !errors.Is(err, errKeySpaceExhausted) {
		t.Fatalf("err=%v", err)
	}
}

func TestSubmitSucceedsWhenQueueFails(t *testing.T) {
	svc, repo, queue, _ := newTestFeedbackService()
	queue.err = errors.New("redis down")
	_, err := svc.Submit(context.Background(), SubmitRequest{Nickname: "a", Role: "engineer", Answers: selections([8]int{1, 1, 1, 1, 1, 1, 1, 1}, nil)})
	if err != nil {
		t.Fatalf("queue failure must not fail the submission: %v", err)
	}
	if repo.inserts != 1 {
		t.Fatalf("inserts=%d", repo.inserts)
	}
}

func TestApplyFilter(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	subs := []*model.Feedback{
		{Nickname: "Alice", Role: "engineer", TotalScore: 20, MaturityLevel: model.LevelEmerging, SubmittedAt: base.Add(3 * time.Hour)},
		{Nickname: "bob", Role: "product", TotalScore: 10, MaturityLevel: model.LevelInitial, SubmittedAt: base.Add(2 * time.Hour)},
		{Nickname: "alina", Role: "engineer", TotalScore: 30, MaturityLevel: model.LevelOptimizing, SubmittedAt: base.Add(1 * time.Hour)},
	}
	names := func(fs []*model.Feedback) string {
		out := make([]string, len(fs))
		for i, f := range fs {
			out[i] = f.Nickname
		}
		return strings.Join(out, ",")
	}

	cases := []struct {
		filter ListFilter
		want   string
	}{
		{ListFilter{}, "Alice,bob,alina"},
		{ListFilter{Order: "asc"}, "alina,bob,Alice"},
		{ListFilter{Search: "AL"}, "Alice,alina"},
		{ListFilter{Role: "engineer", Sort: "score", Order: "asc"}, "Alice,alina"},
		{ListFilter{Sort: "score"}, "alina,Alice,bob"},
		{ListFilter{Level: model.LevelInitial}, "bob"},
		{ListFilter{Search: "zed"}, ""},
	}
	for _, tc := range cases {
		if got := names(ApplyFilter(subs, tc.filter)); got != tc.want {
			t.Errorf("filter %+v: got %q want %q", tc.filter, got, tc.want)
		}
	}
	if (ListFilter{Sort: "score", Order: "asc"}).Narrows() {
		t.Error("sorting alone does not narrow")
	}
}

func TestStats(t *testing.T) {
	svc, _, _, _ := newTestFeedbackService()
	ctx := context.Background()
	for _, v := range [][8]int{{1, 1, 1, 1, 1, 1, 2, 2}, {4, 4, 4, 4, 4, 4, 3, 3}} {
		if _, err := svc.Submit(ctx, SubmitRequest{Nickname: "x", Role: "engineer", Answers: selections(v, nil)}); err != nil {
			t.Fatal(err)
		}
	}
	sum, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !sum.HasData || sum.AvgScore != 20 || sum.DominantLevel != model.LevelInitial {
		t.Fatalf("summary=%+v", sum)
	}
}
